package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"panelcatalog/pipeline"
)

// ExportFormat selects the diff export format.
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

// Export writes a pass diff to a file in the given format.
func Export(report *pipeline.DiffReport, format ExportFormat, filename string) error {
	switch format {
	case FormatJSON:
		return exportJSON(report, filename)
	case FormatCSV:
		return exportCSV(report, filename)
	case FormatExcel:
		return exportExcel(report, filename)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func exportJSON(report *pipeline.DiffReport, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	wrapped := map[string]interface{}{
		"exported_at": time.Now().Format(time.RFC3339),
		"report":      report,
	}
	if err := encoder.Encode(wrapped); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// diffRows flattens the per-record decisions of a diff into uniform rows,
// one per decision, so the tabular formats share one shape.
func diffRows(report *pipeline.DiffReport) [][]string {
	var rows [][]string

	for _, m := range report.Merges {
		removed := make([]string, len(m.RemovedIDs))
		for i, id := range m.RemovedIDs {
			removed[i] = strconv.FormatInt(int64(id), 10)
		}
		rows = append(rows, []string{
			"merge", strconv.FormatInt(int64(m.SurvivorID), 10), m.CanonicalCode,
			fmt.Sprintf("removes %v", removed),
		})
	}
	for _, c := range report.Collisions {
		rows = append(rows, []string{
			"collision-skipped", "", c.CanonicalCode,
			fmt.Sprintf("spans catalogues %v", c.Catalogues),
		})
	}
	for _, r := range report.Reclassifications {
		action := "reclassify"
		if r.Deactivate {
			action = "deactivate"
		}
		rows = append(rows, []string{
			action, strconv.FormatInt(int64(r.PanelID), 10), r.Reference,
			fmt.Sprintf("%q -> %q (domain %s)", r.From, r.To, r.Domain),
		})
	}
	for _, op := range report.TreeOps {
		rows = append(rows, []string{
			"tree-" + op.Op, strconv.FormatInt(int64(op.NodeID), 10), op.Slug,
			fmt.Sprintf("target %d, %d children, %d panels", op.TargetID, op.Children, op.Panels),
		})
	}
	if report.Reindex != nil {
		for _, id := range report.Reindex.ReindexedIDs {
			rows = append(rows, []string{
				"reindex", strconv.FormatInt(int64(id), 10), "", "derived search fields refreshed",
			})
		}
	}
	for _, f := range report.Failures {
		rows = append(rows, []string{
			"failure", strconv.FormatInt(int64(f.PanelID), 10), f.Stage, f.Error,
		})
	}

	return rows
}

var diffHeaders = []string{"Action", "Panel ID", "Key", "Detail"}

func exportCSV(report *pipeline.DiffReport, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(diffHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, row := range diffRows(report) {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

func exportExcel(report *pipeline.DiffReport, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Pass Diff"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range diffHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range diffRows(report) {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range diffHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 24)
	}

	f.SetActiveSheet(index)

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
