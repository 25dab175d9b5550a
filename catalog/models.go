package catalog

import "time"

// CatalogueID identifies a supplier-scoped catalogue.
type CatalogueID int64

// CategoryID identifies a node in a catalogue's category tree.
type CategoryID int64

// PanelID identifies a panel record.
type PanelID int64

// Catalogue is a supplier-scoped namespace. Each catalogue owns its own
// category tree and its own set of panels; nothing in the engine ever
// merges or classifies across catalogue boundaries.
type Catalogue struct {
	ID        CatalogueID `json:"id"`
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Category is one node of a per-catalogue tree. ParentID is nil for roots.
// Slug is unique within the catalogue and is the stable identifier used by
// classification rule targets.
type Category struct {
	ID          CategoryID  `json:"id"`
	CatalogueID CatalogueID `json:"catalogue_id"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	ParentID    *CategoryID `json:"parent_id"`
}

// Panel is a catalog product record: a wood panel, edge band or worktop
// listing. Reference is the supplier-scoped identifier and may collide
// across suppliers; CanonicalCode is derived from it and is never a key.
type Panel struct {
	ID            PanelID     `json:"id"`
	CatalogueID   CatalogueID `json:"catalogue_id"`
	CategoryID    *CategoryID `json:"category_id"`
	Reference     string      `json:"reference"`
	CanonicalCode string      `json:"canonical_code"`
	Name          string      `json:"name"`

	// Free-text descriptive fields.
	Material        string `json:"material"`
	Finish          string `json:"finish"`
	DecorName       string `json:"decor_name"`
	DecorCategory   string `json:"decor_category"`
	ProductType     string `json:"product_type"`
	Description     string `json:"description"`
	ManufacturerRef string `json:"manufacturer_ref"`
	ImageURL        string `json:"image_url"`

	// Numeric attributes. Thickness is a set of available values in mm
	// plus one default; dimensions are in mm.
	ThicknessMM        []float64 `json:"thickness_mm"`
	DefaultThicknessMM float64   `json:"default_thickness_mm"`
	LengthMM           int       `json:"length_mm"`
	WidthMM            int       `json:"width_mm"`

	// Unit prices by pricing basis, null when the supplier gives none.
	PriceM2    *float64 `json:"price_m2"`
	PricePanel *float64 `json:"price_panel"`
	PriceML    *float64 `json:"price_ml"`

	WaterResistant bool `json:"water_resistant"`
	FireResistant  bool `json:"fire_resistant"`
	Active         bool `json:"active"`

	// Derived search fields, maintained by the search indexer.
	SearchTerms WeightedTerms `json:"search_terms"`
	FuzzyText   string        `json:"fuzzy_text"`
	ContentHash string        `json:"content_hash"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TermWeight is the tier of a search term. Lower letters rank higher.
type TermWeight string

const (
	WeightA TermWeight = "A" // name, reference, manufacturer ref
	WeightB TermWeight = "B" // decor name, finish
	WeightC TermWeight = "C" // product type, material
)

// WeightedTerms maps a search term to its best (highest) tier.
type WeightedTerms map[string]TermWeight

// CandidateRecord is what a scraper hands over at the ingestion boundary.
// The engine owns everything past this point; in particular it never
// trusts the scraper's notion of duplication.
type CandidateRecord struct {
	CatalogueSlug   string    `json:"catalogue_slug"`
	Reference       string    `json:"reference"`
	Name            string    `json:"name"`
	Material        string    `json:"material"`
	Finish          string    `json:"finish"`
	DecorName       string    `json:"decor_name"`
	DecorCategory   string    `json:"decor_category"`
	ProductType     string    `json:"product_type"`
	Description     string    `json:"description"`
	ManufacturerRef string    `json:"manufacturer_ref"`
	ImageURL        string    `json:"image_url"`
	ThicknessMM     []float64 `json:"thickness_mm"`
	LengthMM        int       `json:"length_mm"`
	WidthMM         int       `json:"width_mm"`
	PriceM2         *float64  `json:"price_m2"`
	PricePanel      *float64  `json:"price_panel"`
	PriceML         *float64  `json:"price_ml"`
	WaterResistant  bool      `json:"water_resistant"`
	FireResistant   bool      `json:"fire_resistant"`
}
