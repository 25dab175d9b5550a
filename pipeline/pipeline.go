package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"panelcatalog/catalog"
	"panelcatalog/classification"
	"panelcatalog/database"
	"panelcatalog/dedup"
	"panelcatalog/retry"
	"panelcatalog/search"
	apperrors "panelcatalog/server/errors"
	"panelcatalog/taxonomy"
)

// Selector picks the working set of a pass.
type Selector struct {
	// CatalogueSlug is required: catalogues are the partition boundary,
	// no pass ever spans two.
	CatalogueSlug string `json:"catalogue_slug"`
	// CategorySlug restricts the set to one category when non-empty.
	CategorySlug string `json:"category_slug,omitempty"`
	// TouchedSince restricts the set to records updated at or after the
	// given timestamp when non-empty.
	TouchedSince string `json:"touched_since,omitempty"`
}

// StageSet toggles the pass's stages. Stages always execute in the fixed
// order dedup, classify, reindex: each stage's output is a precondition
// for the correctness of the next, so the order is enforced by the driver,
// not by operator discipline.
type StageSet struct {
	Dedup    bool `json:"dedup"`
	Classify bool `json:"classify"`
	Reindex  bool `json:"reindex"`
}

// AllStages runs the full pass.
func AllStages() StageSet {
	return StageSet{Dedup: true, Classify: true, Reindex: true}
}

// Config configures a pipeline.
type Config struct {
	// TrustOrder ranks source tags for the deduplicator's trusted fields.
	TrustOrder []string
	// DefaultDomain names the classification domain used when a panel's
	// product type matches no domain.
	DefaultDomain string
	// Reindex options (page size, workers, write rate).
	Reindex search.BatchOptions
}

// Pipeline drives the reconciliation stages over a working set.
type Pipeline struct {
	db        *database.CatalogDB
	dedup     *dedup.Deduplicator
	engines   map[string]*classification.Engine
	reorg     *taxonomy.Reorganizer
	reindexer *search.Reindexer
	cfg       Config
}

// New builds a pipeline. engines maps domain names (product families) to
// classification engines; cfg.DefaultDomain must be one of them.
func New(db *database.CatalogDB, engines map[string]*classification.Engine, cfg Config) (*Pipeline, error) {
	if cfg.DefaultDomain == "" {
		return nil, apperrors.NewValidationError("pipeline config: default domain is required", nil)
	}
	if _, ok := engines[cfg.DefaultDomain]; !ok {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("pipeline config: default domain %q not present in rule set", cfg.DefaultDomain), nil)
	}

	return &Pipeline{
		db:        db,
		dedup:     dedup.NewDeduplicator(db, cfg.TrustOrder),
		engines:   engines,
		reorg:     taxonomy.NewReorganizer(db),
		reindexer: search.NewReindexer(db),
		cfg:       cfg,
	}, nil
}

// Reorganizer exposes the tree reorganizer for explicit tree-setup
// operations outside a pass.
func (pl *Pipeline) Reorganizer() *taxonomy.Reorganizer {
	return pl.reorg
}

// Run executes the selected stages over the working set. In dry-run mode
// the returned diff reports what apply would do; in apply mode it reports
// what was done. The two are computed by the same code path.
func (pl *Pipeline) Run(ctx context.Context, sel Selector, stages StageSet, mode Mode) (*DiffReport, error) {
	if !stages.Dedup && !stages.Classify && !stages.Reindex {
		return nil, apperrors.NewValidationError("pass selects no stages", nil)
	}

	cat, err := pl.db.GetCatalogueBySlug(ctx, sel.CatalogueSlug)
	if err != nil {
		return nil, err
	}

	report := &DiffReport{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Catalogue: cat.Slug,
		StartedAt: time.Now(),
	}
	log.Printf("[Pass %s] Starting %s pass on catalogue %q (dedup=%t classify=%t reindex=%t)",
		report.RunID, mode, cat.Slug, stages.Dedup, stages.Classify, stages.Reindex)

	records, err := pl.loadWorkingSet(ctx, cat, sel)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pass %s] Working set: %d records", report.RunID, len(records))

	if stages.Dedup {
		records, err = pl.runDedup(ctx, records, mode, report)
		if err != nil {
			return report, err
		}
	}

	if stages.Classify {
		if err := pl.runClassify(ctx, cat, records, mode, report); err != nil {
			return report, err
		}
	}

	if stages.Reindex {
		opts := pl.cfg.Reindex
		if mode == ModeDryRun {
			opts.DryRun = true
			// An earlier dry-run dedup stage left the store untouched, so
			// the reindex diff must be taken against the working set a
			// subsequent apply would produce: losers gone, survivors
			// carrying their merged fields.
			if len(report.Merges) > 0 {
				opts.PlannedRemovals = make(map[catalog.PanelID]bool, len(report.Removed))
				for _, id := range report.Removed {
					opts.PlannedRemovals[id] = true
				}
				opts.PlannedStates = make(map[catalog.PanelID]catalog.Panel, len(report.Merges))
				for _, plan := range report.Merges {
					opts.PlannedStates[plan.SurvivorID] = plan.Merged
				}
			}
		}
		result, err := pl.reindexer.BatchReindex(ctx, cat.ID, opts)
		report.Reindex = result
		if err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(report.StartedAt).Milliseconds()
	log.Printf("[Pass %s] Done in %dms: %d merges, %d reclassifications, %d tree ops, %d failures",
		report.RunID, report.Duration, len(report.Merges), len(report.Reclassifications),
		len(report.TreeOps), report.FailureCount())
	return report, nil
}

// loadWorkingSet resolves the selector into records.
func (pl *Pipeline) loadWorkingSet(ctx context.Context, cat *catalog.Catalogue, sel Selector) ([]catalog.Panel, error) {
	switch {
	case sel.CategorySlug != "":
		category, err := database.GetCategoryBySlug(ctx, pl.db.Conn(), cat.ID, sel.CategorySlug)
		if err != nil {
			return nil, err
		}
		return pl.db.ListPanelsByCategory(ctx, category.ID)
	case sel.TouchedSince != "":
		return pl.db.ListPanelsTouchedSince(ctx, cat.ID, sel.TouchedSince)
	default:
		return pl.db.ListPanelsByCatalogue(ctx, cat.ID)
	}
}

// runDedup plans and (in apply mode) executes merges, then shrinks the
// working set: losers disappear, survivors carry their merged fields so
// classification never sees a pre-merge identity.
func (pl *Pipeline) runDedup(ctx context.Context, records []catalog.Panel, mode Mode, report *DiffReport) ([]catalog.Panel, error) {
	plans, collisions := pl.dedup.Plan(records)
	report.Merges = plans
	report.Collisions = collisions

	if mode == ModeApply && len(plans) > 0 {
		removed, err := pl.dedup.Apply(ctx, plans)
		report.Removed = removed
		if err != nil {
			return records, err
		}
	} else {
		for _, plan := range plans {
			report.Removed = append(report.Removed, plan.RemovedIDs...)
		}
	}

	removedSet := make(map[catalog.PanelID]bool, len(report.Removed))
	for _, id := range report.Removed {
		removedSet[id] = true
	}
	merged := make(map[catalog.PanelID]catalog.Panel, len(plans))
	for _, plan := range plans {
		merged[plan.SurvivorID] = plan.Merged
	}

	surviving := records[:0]
	for _, p := range records {
		if removedSet[p.ID] {
			continue
		}
		if m, ok := merged[p.ID]; ok {
			p = m
		}
		surviving = append(surviving, p)
	}
	return surviving, nil
}

// runClassify assigns each surviving record its target category, creating
// missing categories through the reorganizer.
func (pl *Pipeline) runClassify(ctx context.Context, cat *catalog.Catalogue, records []catalog.Panel, mode Mode, report *DiffReport) error {
	categories, err := database.ListCategories(ctx, pl.db.Conn(), cat.ID)
	if err != nil {
		return err
	}
	slugByID := make(map[catalog.CategoryID]string, len(categories))
	idBySlug := make(map[string]catalog.CategoryID, len(categories))
	for _, c := range categories {
		slugByID[c.ID] = c.Slug
		idBySlug[c.Slug] = c.ID
	}
	plannedCreates := make(map[string]bool)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &records[i]

		domain := pl.domainFor(p)
		engine := pl.engines[domain]

		currentSlug := ""
		if p.CategoryID != nil {
			currentSlug = slugByID[*p.CategoryID]
		}

		decision := engine.Classify(*p, currentSlug)
		if decision.NoOp {
			report.ClassifyNoOps++
			continue
		}

		rec := Reclassification{
			PanelID:    p.ID,
			Reference:  p.Reference,
			Domain:     domain,
			From:       currentSlug,
			To:         decision.Target,
			ViaHint:    decision.ViaHint,
			Deactivate: decision.Deactivate,
		}
		report.Reclassifications = append(report.Reclassifications, rec)
		log.Printf("[Classify] Panel %d (%s): %q -> %q (domain %s)",
			p.ID, p.Reference, currentSlug, decision.Target, domain)

		if mode == ModeDryRun {
			if !decision.Deactivate {
				_, exists := idBySlug[decision.Target]
				if !exists && !plannedCreates[decision.Target] {
					plannedCreates[decision.Target] = true
					report.TreeOps = append(report.TreeOps, taxonomy.TreeOp{
						Op: "create", CatalogueID: cat.ID, Slug: decision.Target,
					})
				}
			}
			continue
		}

		if err := pl.applyDecision(ctx, cat, p, decision, idBySlug, report); err != nil {
			if apperrors.KindOf(err) == apperrors.KindInvariant {
				log.Printf("[Classify] INVARIANT VIOLATION on panel %d: %v", p.ID, err)
			}
			report.Failures = append(report.Failures, Failure{
				Stage: "classify", PanelID: p.ID, Error: err.Error(),
			})
		}
	}
	return nil
}

// applyDecision writes one classification decision.
func (pl *Pipeline) applyDecision(ctx context.Context, cat *catalog.Catalogue, p *catalog.Panel, decision classification.Decision, idBySlug map[string]catalog.CategoryID, report *DiffReport) error {
	if decision.Deactivate {
		return retry.Do(ctx, func() error {
			return pl.db.DeactivatePanel(ctx, p.ID)
		}, retry.DefaultConfig())
	}

	targetID, ok := idBySlug[decision.Target]
	if !ok {
		created, err := pl.reorg.EnsureCategory(ctx, cat.ID, decision.Target, titleFromSlug(decision.Target), "")
		if err != nil {
			return err
		}
		targetID = created
		idBySlug[decision.Target] = created
		report.TreeOps = append(report.TreeOps, taxonomy.TreeOp{
			Op: "create", CatalogueID: cat.ID, NodeID: created, Slug: decision.Target,
		})
	}

	return retry.Do(ctx, func() error {
		return pl.db.UpdatePanelCategory(ctx, p.ID, &targetID)
	}, retry.DefaultConfig())
}

// domainFor maps a panel to its classification domain by folded product
// type, falling back to the configured default domain.
func (pl *Pipeline) domainFor(p *catalog.Panel) string {
	if p.ProductType != "" {
		if _, ok := pl.engines[normalizeDomainKey(p.ProductType)]; ok {
			return normalizeDomainKey(p.ProductType)
		}
	}
	return pl.cfg.DefaultDomain
}
