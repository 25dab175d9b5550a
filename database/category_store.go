package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"panelcatalog/catalog"
	apperrors "panelcatalog/server/errors"
)

const categoryColumns = `id, catalogue_id, slug, name, parent_id`

func scanCategory(row interface{ Scan(...interface{}) error }) (*catalog.Category, error) {
	var c catalog.Category
	var parent sql.NullInt64
	if err := row.Scan(&c.ID, &c.CatalogueID, &c.Slug, &c.Name, &parent); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := catalog.CategoryID(parent.Int64)
		c.ParentID = &id
	}
	return &c, nil
}

// GetCategoryBySlug resolves a category by catalogue and slug. The helpers
// below take a Querier so the tree reorganizer can use them mid-transaction.
func GetCategoryBySlug(ctx context.Context, q Querier, catalogueID catalog.CatalogueID, slug string) (*catalog.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE catalogue_id = ? AND slug = ?`,
		catalogueID, slug)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category %q not found", slug), err)
	}
	if err != nil {
		return nil, classifyStoreError(err, "failed to get category by slug")
	}
	return c, nil
}

// GetCategory resolves a category by id.
func GetCategory(ctx context.Context, q Querier, id catalog.CategoryID) (*catalog.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category %d not found", id), err)
	}
	if err != nil {
		return nil, classifyStoreError(err, "failed to get category")
	}
	return c, nil
}

// InsertCategory inserts a node and returns its id.
func InsertCategory(ctx context.Context, q Querier, c catalog.Category) (catalog.CategoryID, error) {
	var parent interface{}
	if c.ParentID != nil {
		parent = int64(*c.ParentID)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO categories (catalogue_id, slug, name, parent_id) VALUES (?, ?, ?, ?)`,
		c.CatalogueID, c.Slug, c.Name, parent)
	if err != nil {
		return 0, classifyStoreError(err, fmt.Sprintf("failed to insert category %q", c.Slug))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewTransientStoreError("failed to read category id", err)
	}
	return catalog.CategoryID(id), nil
}

// UpdateCategoryParent reparents a node.
func UpdateCategoryParent(ctx context.Context, q Querier, id catalog.CategoryID, parentID *catalog.CategoryID) error {
	var parent interface{}
	if parentID != nil {
		parent = int64(*parentID)
	}
	_, err := q.ExecContext(ctx, `UPDATE categories SET parent_id = ? WHERE id = ?`, parent, id)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to reparent category %d", id))
	}
	return nil
}

// DeleteCategory removes a node. Callers are responsible for having moved
// children and panels first.
func DeleteCategory(ctx context.Context, q Querier, id catalog.CategoryID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to delete category %d", id))
	}
	return nil
}

// ListCategories returns every node of a catalogue's tree.
func ListCategories(ctx context.Context, q Querier, catalogueID catalog.CatalogueID) ([]catalog.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE catalogue_id = ? ORDER BY id`, catalogueID)
	if err != nil {
		return nil, classifyStoreError(err, "failed to list categories")
	}
	defer rows.Close()

	var result []catalog.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classifyStoreError(err, "failed to scan category")
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err, "error iterating categories")
	}
	return result, nil
}

// CountCategoryChildren returns the number of direct children.
func CountCategoryChildren(ctx context.Context, q Querier, id catalog.CategoryID) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE parent_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, classifyStoreError(err, "failed to count category children")
	}
	return n, nil
}

// CountCategoryPanels returns the number of panels assigned to the node.
func CountCategoryPanels(ctx context.Context, q Querier, id catalog.CategoryID) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM panels WHERE category_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, classifyStoreError(err, "failed to count category panels")
	}
	return n, nil
}

// ReparentChildren moves all direct children of source under target.
func ReparentChildren(ctx context.Context, q Querier, source, target catalog.CategoryID) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE categories SET parent_id = ? WHERE parent_id = ?`, target, source)
	if err != nil {
		return 0, classifyStoreError(err, "failed to reparent children")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecategorizePanels moves all panels of source to target.
func RecategorizePanels(ctx context.Context, q Querier, source, target catalog.CategoryID) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE panels SET category_id = ?, updated_at = CURRENT_TIMESTAMP WHERE category_id = ?`,
		target, source)
	if err != nil {
		return 0, classifyStoreError(err, "failed to recategorize panels")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
