package quality

import (
	"context"
	"path/filepath"
	"testing"

	"panelcatalog/catalog"
	"panelcatalog/database"
	"panelcatalog/search"
	apperrors "panelcatalog/server/errors"
)

type fixture struct {
	db    *database.CatalogDB
	catID catalog.CatalogueID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catID, err := db.CreateCatalogue(context.Background(), "unilin", "Unilin")
	if err != nil {
		t.Fatalf("CreateCatalogue: %v", err)
	}
	return &fixture{db: db, catID: catID}
}

func (f *fixture) insert(t *testing.T, p catalog.Panel) catalog.PanelID {
	t.Helper()
	p.CatalogueID = f.catID
	if err := f.db.InsertPanel(context.Background(), &p); err != nil {
		t.Fatalf("InsertPanel: %v", err)
	}
	return p.ID
}

// cleanPanel is a panel that passes every check: categorized, fresh hash.
func (f *fixture) cleanPanel(t *testing.T, categoryID catalog.CategoryID, reference string) catalog.PanelID {
	t.Helper()
	p := catalog.Panel{
		CatalogueID: f.catID,
		CategoryID:  &categoryID,
		Reference:   reference,
		Name:        "Panneau " + reference,
		Active:      true,
	}
	p.ContentHash = search.ContentHash(&p)
	if err := f.db.InsertPanel(context.Background(), &p); err != nil {
		t.Fatalf("InsertPanel: %v", err)
	}
	return p.ID
}

func (f *fixture) categoryID(t *testing.T, catID catalog.CatalogueID, slug string) catalog.CategoryID {
	t.Helper()
	id, err := database.InsertCategory(context.Background(), f.db.Conn(), catalog.Category{
		CatalogueID: catID, Slug: slug, Name: slug,
	})
	if err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	return id
}

func findingKinds(r *Report) map[FindingKind]int {
	kinds := make(map[FindingKind]int)
	for _, f := range r.Findings {
		kinds[f.Kind]++
	}
	return kinds
}

func TestAnalyzeCatalogue_Clean(t *testing.T) {
	f := newFixture(t)
	catID := f.categoryID(t, f.catID, "panneaux")
	f.cleanPanel(t, catID, "105083-a")
	f.cleanPanel(t, catID, "204711-b")

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	if !report.Clean() {
		t.Errorf("findings on a clean catalogue: %+v", report.Findings)
	}
	if report.Panels != 2 {
		t.Errorf("panels = %d, want 2", report.Panels)
	}
}

func TestAnalyzeCatalogue_Uncategorized(t *testing.T) {
	f := newFixture(t)
	p := catalog.Panel{Reference: "105083-a", Name: "Panneau", Active: true}
	p.ContentHash = search.ContentHash(&p)
	f.insert(t, p)

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	if findingKinds(report)[FindingUncategorized] != 1 {
		t.Errorf("findings = %+v, want one uncategorized", report.Findings)
	}
}

func TestAnalyzeCatalogue_InactiveExempt(t *testing.T) {
	f := newFixture(t)
	// Inactive, uncategorized, stale hash: none of it counts.
	f.insert(t, catalog.Panel{Reference: "105083-a", Name: "Panneau", Active: false})

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	if !report.Clean() {
		t.Errorf("inactive panel produced findings: %+v", report.Findings)
	}
}

func TestAnalyzeCatalogue_StaleSearch(t *testing.T) {
	f := newFixture(t)
	catID := f.categoryID(t, f.catID, "panneaux")
	p := catalog.Panel{
		CategoryID:  &catID,
		Reference:   "105083-a",
		Name:        "Panneau",
		Active:      true,
		ContentHash: "stale",
	}
	f.insert(t, p)

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	if findingKinds(report)[FindingStaleSearch] != 1 {
		t.Errorf("findings = %+v, want one stale_search", report.Findings)
	}
}

func TestAnalyzeCatalogue_DuplicateCode(t *testing.T) {
	f := newFixture(t)
	catID := f.categoryID(t, f.catID, "panneaux")
	f.cleanPanel(t, catID, "105083-unilin")
	f.cleanPanel(t, catID, "BCB-105083")

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	kinds := findingKinds(report)
	if kinds[FindingDuplicateCode] != 1 {
		t.Errorf("findings = %+v, want one duplicate_code", report.Findings)
	}
}

func TestAnalyzeCatalogue_CrossCatalogueCategory(t *testing.T) {
	f := newFixture(t)
	otherCat, err := f.db.CreateCatalogue(context.Background(), "egger", "Egger")
	if err != nil {
		t.Fatalf("CreateCatalogue: %v", err)
	}
	foreignID := f.categoryID(t, otherCat, "panneaux")

	p := catalog.Panel{CategoryID: &foreignID, Reference: "105083-a", Name: "Panneau", Active: true}
	p.ContentHash = search.ContentHash(&p)
	f.insert(t, p)

	report, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "unilin")
	if err != nil {
		t.Fatalf("AnalyzeCatalogue: %v", err)
	}
	if findingKinds(report)[FindingCrossCatalogueCategory] != 1 {
		t.Errorf("findings = %+v, want one cross_catalogue_category", report.Findings)
	}
}

func TestAnalyzeCatalogue_UnknownCatalogue(t *testing.T) {
	f := newFixture(t)

	_, err := NewAnalyzer(f.db).AnalyzeCatalogue(context.Background(), "absent")
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Errorf("err = %v, want not_found", err)
	}
}
