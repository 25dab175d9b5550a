package reporting

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"panelcatalog/catalog"
	"panelcatalog/dedup"
	"panelcatalog/pipeline"
	"panelcatalog/search"
	"panelcatalog/taxonomy"
)

func sampleReport() *pipeline.DiffReport {
	return &pipeline.DiffReport{
		RunID:     "run-1",
		Mode:      pipeline.ModeApply,
		Catalogue: "unilin",
		Merges: []dedup.MergePlan{
			{CanonicalCode: "105083", SurvivorID: 1, RemovedIDs: []catalog.PanelID{2}},
		},
		Collisions: []dedup.CrossCatalogueCollision{
			{CanonicalCode: "204711", Catalogues: []catalog.CatalogueID{1, 2}},
		},
		Removed: []catalog.PanelID{2},
		Reclassifications: []pipeline.Reclassification{
			{PanelID: 1, Reference: "105083-unilin", Domain: "panneaux", From: "", To: "panneaux-hydrofuges"},
			{PanelID: 3, Reference: "301555-y", Domain: "panneaux", To: "-", Deactivate: true},
		},
		TreeOps: []taxonomy.TreeOp{
			{Op: "create", NodeID: 10, Slug: "panneaux-hydrofuges"},
		},
		Reindex: &search.BatchResult{
			Reindexed:    1,
			ReindexedIDs: []catalog.PanelID{1},
		},
		Failures: []pipeline.Failure{
			{Stage: "classify", PanelID: 9, Error: "db locked"},
		},
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.json")
	if err := Export(sampleReport(), FormatJSON, path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var wrapped struct {
		ExportedAt string               `json:"exported_at"`
		Report     *pipeline.DiffReport `json:"report"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if wrapped.ExportedAt == "" {
		t.Error("exported_at missing")
	}
	if wrapped.Report.RunID != "run-1" || len(wrapped.Report.Merges) != 1 {
		t.Errorf("report roundtrip lost data: %+v", wrapped.Report)
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.csv")
	if err := Export(sampleReport(), FormatCSV, path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	// Header + merge + collision + 2 reclassifications + tree op +
	// reindex + failure.
	if len(rows) != 8 {
		t.Fatalf("got %d rows, want 8", len(rows))
	}
	if rows[0][0] != "Action" {
		t.Errorf("header = %v", rows[0])
	}

	actions := make(map[string]int)
	for _, row := range rows[1:] {
		actions[row[0]]++
	}
	for _, want := range []string{"merge", "collision-skipped", "reclassify", "deactivate", "tree-create", "reindex", "failure"} {
		if actions[want] == 0 {
			t.Errorf("no %q row in export", want)
		}
	}
}

func TestExportExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.xlsx")
	if err := Export(sampleReport(), FormatExcel, path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Pass Diff")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("got %d rows, want 8", len(rows))
	}
	if rows[1][0] != "merge" || rows[1][2] != "105083" {
		t.Errorf("first data row = %v", rows[1])
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if err := Export(sampleReport(), "xml", "out.xml"); err == nil {
		t.Error("unknown format accepted")
	}
}
