package pipeline

import (
	"time"

	"panelcatalog/catalog"
	"panelcatalog/dedup"
	"panelcatalog/search"
	"panelcatalog/taxonomy"
)

// Mode selects between computing a diff and writing it. Every stage takes
// the same Mode; there are no per-stage dry-run flags.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeApply  Mode = "apply"
)

// Reclassification is one planned or applied category change.
type Reclassification struct {
	PanelID    catalog.PanelID `json:"panel_id"`
	Reference  string          `json:"reference"`
	Domain     string          `json:"domain"`
	From       string          `json:"from"` // current category slug, "" = uncategorized
	To         string          `json:"to"`
	ViaHint    bool            `json:"via_hint,omitempty"`
	Deactivate bool            `json:"deactivate,omitempty"`
}

// Failure is one record or operation that failed and was skipped. Nothing
// is ever dropped silently: every skip is attributable to a stage.
type Failure struct {
	Stage   string          `json:"stage"`
	PanelID catalog.PanelID `json:"panel_id,omitempty"`
	Error   string          `json:"error"`
}

// DiffReport is the single diff type shared by every stage, in dry-run
// (what would happen) and apply (what happened) alike. Dry-run then apply
// with no intervening state change produces exactly this diff.
type DiffReport struct {
	RunID     string    `json:"run_id"`
	Mode      Mode      `json:"mode"`
	Catalogue string    `json:"catalogue"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_ms"`

	Merges     []dedup.MergePlan               `json:"merges,omitempty"`
	Collisions []dedup.CrossCatalogueCollision `json:"collisions,omitempty"`
	Removed    []catalog.PanelID               `json:"removed,omitempty"`

	Reclassifications []Reclassification `json:"reclassifications,omitempty"`
	ClassifyNoOps     int                `json:"classify_no_ops"`

	TreeOps []taxonomy.TreeOp `json:"tree_ops,omitempty"`

	Reindex *search.BatchResult `json:"reindex,omitempty"`

	Failures []Failure `json:"failures,omitempty"`
}

// FailureCount is the pass's final status: zero means a clean pass.
func (d *DiffReport) FailureCount() int {
	n := len(d.Failures)
	if d.Reindex != nil {
		n += len(d.Reindex.Failed)
	}
	return n
}
