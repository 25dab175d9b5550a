package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"panelcatalog/catalog"
	apperrors "panelcatalog/server/errors"
)

const panelColumns = `id, catalogue_id, category_id, reference, canonical_code, name,
	material, finish, decor_name, decor_category, product_type, description,
	manufacturer_ref, image_url, thickness_mm, default_thickness_mm, length_mm, width_mm,
	price_m2, price_panel, price_ml, water_resistant, fire_resistant, active,
	search_terms, fuzzy_text, content_hash, updated_at`

func scanPanel(row interface{ Scan(...interface{}) error }) (*catalog.Panel, error) {
	var p catalog.Panel
	var categoryID sql.NullInt64
	var thicknessJSON, termsJSON string

	err := row.Scan(
		&p.ID, &p.CatalogueID, &categoryID, &p.Reference, &p.CanonicalCode, &p.Name,
		&p.Material, &p.Finish, &p.DecorName, &p.DecorCategory, &p.ProductType, &p.Description,
		&p.ManufacturerRef, &p.ImageURL, &thicknessJSON, &p.DefaultThicknessMM, &p.LengthMM, &p.WidthMM,
		&p.PriceM2, &p.PricePanel, &p.PriceML, &p.WaterResistant, &p.FireResistant, &p.Active,
		&termsJSON, &p.FuzzyText, &p.ContentHash, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		id := catalog.CategoryID(categoryID.Int64)
		p.CategoryID = &id
	}
	if err := json.Unmarshal([]byte(thicknessJSON), &p.ThicknessMM); err != nil {
		return nil, fmt.Errorf("failed to decode thickness set: %w", err)
	}
	if err := json.Unmarshal([]byte(termsJSON), &p.SearchTerms); err != nil {
		return nil, fmt.Errorf("failed to decode search terms: %w", err)
	}
	return &p, nil
}

func panelArgs(p *catalog.Panel) ([]interface{}, error) {
	thicknessJSON, err := json.Marshal(p.ThicknessMM)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thickness set: %w", err)
	}
	if p.ThicknessMM == nil {
		thicknessJSON = []byte("[]")
	}
	terms := p.SearchTerms
	if terms == nil {
		terms = catalog.WeightedTerms{}
	}
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search terms: %w", err)
	}

	var categoryID interface{}
	if p.CategoryID != nil {
		categoryID = int64(*p.CategoryID)
	}

	return []interface{}{
		p.CatalogueID, categoryID, p.Reference, p.CanonicalCode, p.Name,
		p.Material, p.Finish, p.DecorName, p.DecorCategory, p.ProductType, p.Description,
		p.ManufacturerRef, p.ImageURL, string(thicknessJSON), p.DefaultThicknessMM, p.LengthMM, p.WidthMM,
		p.PriceM2, p.PricePanel, p.PriceML, p.WaterResistant, p.FireResistant, p.Active,
		string(termsJSON), p.FuzzyText, p.ContentHash,
	}, nil
}

// InsertPanel inserts a panel and sets its ID.
func (db *CatalogDB) InsertPanel(ctx context.Context, p *catalog.Panel) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	args, err := panelArgs(p)
	if err != nil {
		return apperrors.NewValidationError("failed to encode panel", err)
	}

	res, err := db.conn.ExecContext(opCtx, `INSERT INTO panels (
		catalogue_id, category_id, reference, canonical_code, name,
		material, finish, decor_name, decor_category, product_type, description,
		manufacturer_ref, image_url, thickness_mm, default_thickness_mm, length_mm, width_mm,
		price_m2, price_panel, price_ml, water_resistant, fire_resistant, active,
		search_terms, fuzzy_text, content_hash, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		args...)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to insert panel %q", p.Reference))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.NewTransientStoreError("failed to read panel id", err)
	}
	p.ID = catalog.PanelID(id)
	return nil
}

// UpdatePanel rewrites every mutable field of the panel. Used by the
// deduplicator after a field-by-field merge.
func (db *CatalogDB) UpdatePanel(ctx context.Context, p *catalog.Panel) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	args, err := panelArgs(p)
	if err != nil {
		return apperrors.NewValidationError("failed to encode panel", err)
	}
	args = append(args, int64(p.ID))

	_, err = db.conn.ExecContext(opCtx, `UPDATE panels SET
		catalogue_id = ?, category_id = ?, reference = ?, canonical_code = ?, name = ?,
		material = ?, finish = ?, decor_name = ?, decor_category = ?, product_type = ?, description = ?,
		manufacturer_ref = ?, image_url = ?, thickness_mm = ?, default_thickness_mm = ?, length_mm = ?, width_mm = ?,
		price_m2 = ?, price_panel = ?, price_ml = ?, water_resistant = ?, fire_resistant = ?, active = ?,
		search_terms = ?, fuzzy_text = ?, content_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, args...)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to update panel %d", p.ID))
	}
	return nil
}

// GetPanel fetches one panel by id.
func (db *CatalogDB) GetPanel(ctx context.Context, id catalog.PanelID) (*catalog.Panel, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(opCtx, `SELECT `+panelColumns+` FROM panels WHERE id = ?`, id)
	p, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("panel %d not found", id), err)
	}
	if err != nil {
		return nil, classifyStoreError(err, "failed to get panel")
	}
	return p, nil
}

// GetPanelsByIDs batch-loads panels with one IN query.
func (db *CatalogDB) GetPanelsByIDs(ctx context.Context, ids []catalog.PanelID) (map[catalog.PanelID]*catalog.Panel, error) {
	result := make(map[catalog.PanelID]*catalog.Panel, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT `+panelColumns+` FROM panels WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, classifyStoreError(err, "failed to batch-load panels")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, classifyStoreError(err, "failed to scan panel")
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err, "error iterating panels")
	}
	return result, nil
}

// ListPanelsByCatalogue returns all panels of a catalogue in id order.
func (db *CatalogDB) ListPanelsByCatalogue(ctx context.Context, catalogueID catalog.CatalogueID) ([]catalog.Panel, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT `+panelColumns+` FROM panels WHERE catalogue_id = ? ORDER BY id`, catalogueID)
	if err != nil {
		return nil, classifyStoreError(err, "failed to list panels")
	}
	defer rows.Close()
	return collectPanels(rows)
}

// ListPanelsByCategory returns all panels currently in a category.
func (db *CatalogDB) ListPanelsByCategory(ctx context.Context, categoryID catalog.CategoryID) ([]catalog.Panel, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT `+panelColumns+` FROM panels WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, classifyStoreError(err, "failed to list panels by category")
	}
	defer rows.Close()
	return collectPanels(rows)
}

// ListPanelsTouchedSince returns panels updated at or after the given
// timestamp (RFC3339 or SQLite datetime), in id order.
func (db *CatalogDB) ListPanelsTouchedSince(ctx context.Context, catalogueID catalog.CatalogueID, since string) ([]catalog.Panel, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT `+panelColumns+` FROM panels WHERE catalogue_id = ? AND updated_at >= ? ORDER BY id`,
		catalogueID, since)
	if err != nil {
		return nil, classifyStoreError(err, "failed to list touched panels")
	}
	defer rows.Close()
	return collectPanels(rows)
}

// ListPanelPage returns up to limit panels with id > afterID in ascending
// id order. Paging by immutable id keeps a crashed batch resumable: page
// boundaries never depend on a field the batch itself mutates.
func (db *CatalogDB) ListPanelPage(ctx context.Context, catalogueID catalog.CatalogueID, afterID catalog.PanelID, limit int) ([]catalog.Panel, error) {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(opCtx,
		`SELECT `+panelColumns+` FROM panels WHERE catalogue_id = ? AND id > ? ORDER BY id LIMIT ?`,
		catalogueID, afterID, limit)
	if err != nil {
		return nil, classifyStoreError(err, "failed to page panels")
	}
	defer rows.Close()
	return collectPanels(rows)
}

// DeletePanels hard-deletes the given panels.
func (db *CatalogDB) DeletePanels(ctx context.Context, ids []catalog.PanelID) error {
	if len(ids) == 0 {
		return nil
	}

	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	_, err := db.conn.ExecContext(opCtx,
		`DELETE FROM panels WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return classifyStoreError(err, "failed to delete panels")
	}
	return nil
}

// UpdatePanelCategory moves one panel to a category (nil = uncategorized).
func (db *CatalogDB) UpdatePanelCategory(ctx context.Context, id catalog.PanelID, categoryID *catalog.CategoryID) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	var cat interface{}
	if categoryID != nil {
		cat = int64(*categoryID)
	}
	_, err := db.conn.ExecContext(opCtx,
		`UPDATE panels SET category_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, cat, id)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to update category of panel %d", id))
	}
	return nil
}

// DeactivatePanel marks a non-product entry inactive.
func (db *CatalogDB) DeactivatePanel(ctx context.Context, id catalog.PanelID) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(opCtx,
		`UPDATE panels SET active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to deactivate panel %d", id))
	}
	return nil
}

// UpdatePanelSearch writes the derived search fields without touching
// source fields or updated_at: a reindex is not a content change.
func (db *CatalogDB) UpdatePanelSearch(ctx context.Context, id catalog.PanelID, terms catalog.WeightedTerms, fuzzyText, contentHash string) error {
	opCtx, cancel := db.opCtx(ctx)
	defer cancel()

	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return apperrors.NewValidationError("failed to encode search terms", err)
	}

	_, err = db.conn.ExecContext(opCtx,
		`UPDATE panels SET search_terms = ?, fuzzy_text = ?, content_hash = ? WHERE id = ?`,
		string(termsJSON), fuzzyText, contentHash, id)
	if err != nil {
		return classifyStoreError(err, fmt.Sprintf("failed to update search fields of panel %d", id))
	}
	return nil
}

func collectPanels(rows *sql.Rows) ([]catalog.Panel, error) {
	var result []catalog.Panel
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, classifyStoreError(err, "failed to scan panel")
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err, "error iterating panels")
	}
	return result, nil
}
