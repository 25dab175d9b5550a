package quality

import (
	"context"
	"fmt"

	"panelcatalog/catalog"
	"panelcatalog/database"
	"panelcatalog/normalization"
	"panelcatalog/search"
)

// FindingKind names a contract the catalog is breaking.
type FindingKind string

const (
	// FindingUncategorized is an active panel with no category.
	FindingUncategorized FindingKind = "uncategorized"
	// FindingStaleSearch is a panel whose stored derived search fields no
	// longer match its current content.
	FindingStaleSearch FindingKind = "stale_search"
	// FindingDuplicateCode is a canonical code shared by two or more
	// panels of the same catalogue.
	FindingDuplicateCode FindingKind = "duplicate_code"
	// FindingCrossCatalogueCategory is a panel whose category belongs to
	// another catalogue.
	FindingCrossCatalogueCategory FindingKind = "cross_catalogue_category"
)

// Finding is one detected contract violation.
type Finding struct {
	Kind    FindingKind       `json:"kind"`
	PanelID catalog.PanelID   `json:"panel_id,omitempty"`
	Panels  []catalog.PanelID `json:"panels,omitempty"`
	Detail  string            `json:"detail"`
}

// Report is the outcome of one catalogue analysis.
type Report struct {
	Catalogue string    `json:"catalogue"`
	Panels    int       `json:"panels"`
	Findings  []Finding `json:"findings"`
}

// Clean reports whether every check passed.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Analyzer verifies the consumer contract after a completed pass: every
// active panel categorized, search fields fresh, no duplicate
// canonical-code siblings within the catalogue.
type Analyzer struct {
	db *database.CatalogDB
}

// NewAnalyzer creates an analyzer over the catalog store.
func NewAnalyzer(db *database.CatalogDB) *Analyzer {
	return &Analyzer{db: db}
}

// AnalyzeCatalogue runs all checks over one catalogue.
func (a *Analyzer) AnalyzeCatalogue(ctx context.Context, slug string) (*Report, error) {
	cat, err := a.db.GetCatalogueBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	panels, err := a.db.ListPanelsByCatalogue(ctx, cat.ID)
	if err != nil {
		return nil, err
	}
	categories, err := database.ListCategories(ctx, a.db.Conn(), cat.ID)
	if err != nil {
		return nil, err
	}
	ownCategories := make(map[catalog.CategoryID]bool, len(categories))
	for _, c := range categories {
		ownCategories[c.ID] = true
	}

	report := &Report{Catalogue: slug, Panels: len(panels)}
	byCode := make(map[string][]catalog.PanelID)

	for i := range panels {
		p := &panels[i]
		if !p.Active {
			continue
		}

		if p.CategoryID == nil {
			report.Findings = append(report.Findings, Finding{
				Kind:    FindingUncategorized,
				PanelID: p.ID,
				Detail:  fmt.Sprintf("active panel %q has no category", p.Reference),
			})
		} else if !ownCategories[*p.CategoryID] {
			report.Findings = append(report.Findings, Finding{
				Kind:    FindingCrossCatalogueCategory,
				PanelID: p.ID,
				Detail:  fmt.Sprintf("panel %q references category %d outside its catalogue", p.Reference, *p.CategoryID),
			})
		}

		if search.ContentHash(p) != p.ContentHash {
			report.Findings = append(report.Findings, Finding{
				Kind:    FindingStaleSearch,
				PanelID: p.ID,
				Detail:  fmt.Sprintf("panel %q has stale derived search fields", p.Reference),
			})
		}

		code := p.CanonicalCode
		if code == "" {
			code, _ = normalization.ExtractCanonicalCode(p.Reference)
		}
		if code != "" {
			byCode[code] = append(byCode[code], p.ID)
		}
	}

	for code, ids := range byCode {
		if len(ids) > 1 {
			report.Findings = append(report.Findings, Finding{
				Kind:   FindingDuplicateCode,
				Panels: ids,
				Detail: fmt.Sprintf("canonical code %s shared by %d active panels", code, len(ids)),
			})
		}
	}

	return report, nil
}
