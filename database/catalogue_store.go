package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"panelcatalog/catalog"
	apperrors "panelcatalog/server/errors"
)

// CreateCatalogue inserts a catalogue. Slug collisions are validation
// errors, not transient ones.
func (db *CatalogDB) CreateCatalogue(ctx context.Context, slug, name string) (catalog.CatalogueID, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(opCtx,
		`INSERT INTO catalogues (slug, name, active) VALUES (?, ?, 1)`, slug, name)
	if err != nil {
		return 0, classifyStoreError(err, fmt.Sprintf("failed to create catalogue %q", slug))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.NewTransientStoreError("failed to read catalogue id", err)
	}
	return catalog.CatalogueID(id), nil
}

// GetCatalogueBySlug resolves a catalogue by its slug.
func (db *CatalogDB) GetCatalogueBySlug(ctx context.Context, slug string) (*catalog.Catalogue, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	var c catalog.Catalogue
	err := db.conn.QueryRowContext(opCtx,
		`SELECT id, slug, name, active, created_at FROM catalogues WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Slug, &c.Name, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("catalogue %q not found", slug), err)
	}
	if err != nil {
		return nil, classifyStoreError(err, "failed to get catalogue")
	}
	return &c, nil
}

// GetCatalogue resolves a catalogue by id.
func (db *CatalogDB) GetCatalogue(ctx context.Context, id catalog.CatalogueID) (*catalog.Catalogue, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	var c catalog.Catalogue
	err := db.conn.QueryRowContext(opCtx,
		`SELECT id, slug, name, active, created_at FROM catalogues WHERE id = ?`, id).
		Scan(&c.ID, &c.Slug, &c.Name, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("catalogue %d not found", id), err)
	}
	if err != nil {
		return nil, classifyStoreError(err, "failed to get catalogue")
	}
	return &c, nil
}

// ListCatalogues returns all catalogues ordered by slug.
func (db *CatalogDB) ListCatalogues(ctx context.Context) ([]catalog.Catalogue, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT id, slug, name, active, created_at FROM catalogues ORDER BY slug`)
	if err != nil {
		return nil, classifyStoreError(err, "failed to list catalogues")
	}
	defer rows.Close()

	var result []catalog.Catalogue
	for rows.Next() {
		var c catalog.Catalogue
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, classifyStoreError(err, "failed to scan catalogue")
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err, "error iterating catalogues")
	}
	return result, nil
}
