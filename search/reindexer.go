package search

import (
	"context"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"panelcatalog/catalog"
	"panelcatalog/retry"
)

// Store is the slice of the catalog store reindexing needs.
type Store interface {
	ListPanelPage(ctx context.Context, catalogueID catalog.CatalogueID, afterID catalog.PanelID, limit int) ([]catalog.Panel, error)
	UpdatePanelSearch(ctx context.Context, id catalog.PanelID, terms catalog.WeightedTerms, fuzzyText, contentHash string) error
}

// BatchOptions configures a batch reindex run.
type BatchOptions struct {
	// PageSize is the fixed page length; pages are disjoint ascending-id
	// ranges so a crashed run resumes without reprocessing or skipping.
	PageSize int
	// Workers bounds the page worker pool.
	Workers int
	// WritesPerSecond throttles store writes; 0 means unthrottled.
	WritesPerSecond float64
	// ResumeAfterID restarts a crashed run after the last fully processed
	// page boundary.
	ResumeAfterID catalog.PanelID
	// DryRun computes the diff without writing.
	DryRun bool
	// PlannedRemovals lists panels a pending apply would delete. Pages
	// skip them so the diff matches the store an apply pass would leave.
	PlannedRemovals map[catalog.PanelID]bool
	// PlannedStates substitutes a panel's planned post-merge fields for
	// its stored ones before diffing.
	PlannedStates map[catalog.PanelID]catalog.Panel
}

// DefaultBatchOptions returns the engine defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{PageSize: 1000, Workers: 4}
}

// RecordFailure is one record that exhausted its retries.
type RecordFailure struct {
	PanelID catalog.PanelID `json:"panel_id"`
	Error   string          `json:"error"`
}

// BatchResult summarizes a batch reindex.
type BatchResult struct {
	Pages     int             `json:"pages"`
	Records   int             `json:"records"`
	Reindexed int             `json:"reindexed"`
	Skipped   int             `json:"skipped"` // content hash unchanged
	Failed    []RecordFailure `json:"failed,omitempty"`
	// ResumeAfterID is the highest page boundary below which every page
	// completed; a restarted run passes it back in.
	ResumeAfterID catalog.PanelID `json:"resume_after_id"`
	// ReindexedIDs lists the panels whose derived fields were (or, in dry
	// run, would be) rewritten.
	ReindexedIDs []catalog.PanelID `json:"reindexed_ids,omitempty"`
}

// Reindexer maintains the derived search fields.
type Reindexer struct {
	store   Store
	indexer *Indexer
}

// NewReindexer creates a reindexer.
func NewReindexer(store Store) *Reindexer {
	return &Reindexer{store: store, indexer: NewIndexer()}
}

// Indexer exposes the derivation for single-record use and tests.
func (r *Reindexer) Indexer() *Indexer {
	return r.indexer
}

// Reindex refreshes one panel's derived fields. Returns false when the
// content hash matches the stored one and nothing was written.
func (r *Reindexer) Reindex(ctx context.Context, p *catalog.Panel) (bool, error) {
	terms, fuzzy, hash := r.indexer.Derive(p)
	if hash == p.ContentHash {
		return false, nil
	}

	err := retry.Do(ctx, func() error {
		return r.store.UpdatePanelSearch(ctx, p.ID, terms, fuzzy, hash)
	}, retry.DefaultConfig())
	if err != nil {
		return false, err
	}

	p.SearchTerms = terms
	p.FuzzyText = fuzzy
	p.ContentHash = hash
	return true, nil
}

// pageJob is one fetched page handed to a worker.
type pageJob struct {
	startAfter catalog.PanelID // page lower boundary (exclusive)
	endID      catalog.PanelID // highest id in the page
	panels     []catalog.Panel
}

// BatchReindex walks the catalogue in fixed-size id-ordered pages and
// refreshes every record whose indexed fields changed. Pages are disjoint
// id ranges, so independent pages run on a bounded worker pool; the
// producer fetches pages sequentially, which keeps boundaries stable
// regardless of worker timing.
func (r *Reindexer) BatchReindex(ctx context.Context, catalogueID catalog.CatalogueID, opts BatchOptions) (*BatchResult, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultBatchOptions().PageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultBatchOptions().Workers
	}

	var limiter *rate.Limiter
	if opts.WritesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.WritesPerSecond), 1)
	}

	result := &BatchResult{ResumeAfterID: opts.ResumeAfterID}
	var mu sync.Mutex
	completed := make(map[catalog.PanelID]catalog.PanelID) // page startAfter -> endID

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan pageJob)

	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			for job := range jobs {
				pageReindexed, pageSkipped, failures, ids, err := r.processPage(gctx, job, limiter, opts.DryRun)
				if err != nil {
					return err
				}

				mu.Lock()
				result.Pages++
				result.Records += len(job.panels)
				result.Reindexed += pageReindexed
				result.Skipped += pageSkipped
				result.Failed = append(result.Failed, failures...)
				result.ReindexedIDs = append(result.ReindexedIDs, ids...)
				completed[job.startAfter] = job.endID
				mu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)

		afterID := opts.ResumeAfterID
		for {
			if err := gctx.Err(); err != nil {
				return err
			}

			var panels []catalog.Panel
			err := retry.Do(gctx, func() error {
				var fetchErr error
				panels, fetchErr = r.store.ListPanelPage(gctx, catalogueID, afterID, opts.PageSize)
				return fetchErr
			}, retry.DefaultConfig())
			if err != nil {
				return err
			}
			if len(panels) == 0 {
				return nil
			}

			job := pageJob{
				startAfter: afterID,
				endID:      panels[len(panels)-1].ID,
				panels:     overlayPage(panels, opts),
			}
			select {
			case jobs <- job:
			case <-gctx.Done():
				return gctx.Err()
			}

			afterID = job.endID
		}
	})

	err := g.Wait()

	// Advance the resume cursor over the contiguous prefix of completed
	// pages, even on error: the next run restarts exactly after the last
	// gap-free boundary.
	cursor := opts.ResumeAfterID
	for {
		end, ok := completed[cursor]
		if !ok {
			break
		}
		cursor = end
	}
	result.ResumeAfterID = cursor
	sort.Slice(result.ReindexedIDs, func(i, j int) bool { return result.ReindexedIDs[i] < result.ReindexedIDs[j] })

	if err != nil {
		return result, err
	}

	log.Printf("[Reindex] Catalogue %d: %d pages, %d records, %d reindexed, %d unchanged, %d failed",
		catalogueID, result.Pages, result.Records, result.Reindexed, result.Skipped, len(result.Failed))
	return result, nil
}

// overlayPage rewrites a fetched page into the planned working-set state:
// records a pending apply would delete are dropped, survivors carry their
// planned merged fields. Page boundaries stay those of the raw fetch.
func overlayPage(panels []catalog.Panel, opts BatchOptions) []catalog.Panel {
	if len(opts.PlannedRemovals) == 0 && len(opts.PlannedStates) == 0 {
		return panels
	}
	out := make([]catalog.Panel, 0, len(panels))
	for _, p := range panels {
		if opts.PlannedRemovals[p.ID] {
			continue
		}
		if planned, ok := opts.PlannedStates[p.ID]; ok {
			p = planned
		}
		out = append(out, p)
	}
	return out
}

// processPage reindexes one page, isolating failures per record.
func (r *Reindexer) processPage(ctx context.Context, job pageJob, limiter *rate.Limiter, dryRun bool) (reindexed, skipped int, failures []RecordFailure, ids []catalog.PanelID, err error) {
	for i := range job.panels {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reindexed, skipped, failures, ids, ctxErr
		}

		p := &job.panels[i]
		terms, fuzzy, hash := r.indexer.Derive(p)
		if hash == p.ContentHash {
			skipped++
			continue
		}

		if dryRun {
			reindexed++
			ids = append(ids, p.ID)
			continue
		}

		if limiter != nil {
			if waitErr := limiter.Wait(ctx); waitErr != nil {
				return reindexed, skipped, failures, ids, waitErr
			}
		}

		writeErr := retry.Do(ctx, func() error {
			return r.store.UpdatePanelSearch(ctx, p.ID, terms, fuzzy, hash)
		}, retry.DefaultConfig())
		if writeErr != nil {
			// Retries exhausted: record and keep going, per-record
			// isolation is the point of page granularity.
			log.Printf("[Reindex] Panel %d failed after retries: %v", p.ID, writeErr)
			failures = append(failures, RecordFailure{PanelID: p.ID, Error: writeErr.Error()})
			continue
		}
		reindexed++
		ids = append(ids, p.ID)
	}
	return reindexed, skipped, failures, ids, nil
}
