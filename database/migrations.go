package database

import (
	"fmt"
	"log"
)

// migration is one named schema step. Steps must stay idempotent
// (CREATE ... IF NOT EXISTS) because the tracker only guards against
// re-running, not against half-applied restores.
type migration struct {
	name string
	stmt string
}

var migrations = []migration{
	{
		name: "create_catalogues",
		stmt: `CREATE TABLE IF NOT EXISTS catalogues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		name: "create_categories",
		stmt: `CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			catalogue_id INTEGER NOT NULL REFERENCES catalogues(id),
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			parent_id INTEGER REFERENCES categories(id),
			UNIQUE(catalogue_id, slug)
		)`,
	},
	{
		name: "create_panels",
		stmt: `CREATE TABLE IF NOT EXISTS panels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			catalogue_id INTEGER NOT NULL REFERENCES catalogues(id),
			category_id INTEGER REFERENCES categories(id),
			reference TEXT NOT NULL,
			canonical_code TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			material TEXT NOT NULL DEFAULT '',
			finish TEXT NOT NULL DEFAULT '',
			decor_name TEXT NOT NULL DEFAULT '',
			decor_category TEXT NOT NULL DEFAULT '',
			product_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			manufacturer_ref TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			thickness_mm TEXT NOT NULL DEFAULT '[]',
			default_thickness_mm REAL NOT NULL DEFAULT 0,
			length_mm INTEGER NOT NULL DEFAULT 0,
			width_mm INTEGER NOT NULL DEFAULT 0,
			price_m2 REAL,
			price_panel REAL,
			price_ml REAL,
			water_resistant INTEGER NOT NULL DEFAULT 0,
			fire_resistant INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			search_terms TEXT NOT NULL DEFAULT '{}',
			fuzzy_text TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		name: "index_panels_canonical_code",
		stmt: `CREATE INDEX IF NOT EXISTS idx_panels_catalogue_code
			ON panels(catalogue_id, canonical_code)`,
	},
	{
		name: "index_panels_category",
		stmt: `CREATE INDEX IF NOT EXISTS idx_panels_category
			ON panels(category_id)`,
	},
	{
		name: "index_categories_parent",
		stmt: `CREATE INDEX IF NOT EXISTS idx_categories_parent
			ON categories(parent_id)`,
	},
}

// migrate applies pending migrations, tracking applied names.
func (db *CatalogDB) migrate() error {
	_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create migration tracker: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}

		if _, err := db.conn.Exec(m.stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
		if _, err := db.conn.Exec(`INSERT INTO schema_migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}
		log.Printf("[Migration] Applied %s", m.name)
	}

	return nil
}
