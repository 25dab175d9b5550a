package search

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"panelcatalog/catalog"
	apperrors "panelcatalog/server/errors"
)

// memStore serves pages from an in-memory id-ordered slice.
type memStore struct {
	mu      sync.Mutex
	panels  []catalog.Panel
	writes  map[catalog.PanelID]int
	failing map[catalog.PanelID]error
}

func newMemStore(count int) *memStore {
	s := &memStore{writes: make(map[catalog.PanelID]int), failing: make(map[catalog.PanelID]error)}
	for i := 1; i <= count; i++ {
		s.panels = append(s.panels, catalog.Panel{
			ID:          catalog.PanelID(i),
			CatalogueID: 1,
			Reference:   fmt.Sprintf("1050%02d-unilin", i%100),
			Name:        fmt.Sprintf("Panneau mélaminé %d", i),
		})
	}
	return s
}

func (s *memStore) ListPanelPage(ctx context.Context, catalogueID catalog.CatalogueID, afterID catalog.PanelID, limit int) ([]catalog.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var page []catalog.Panel
	for _, p := range s.panels {
		if p.ID > afterID {
			page = append(page, p)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (s *memStore) UpdatePanelSearch(ctx context.Context, id catalog.PanelID, terms catalog.WeightedTerms, fuzzyText, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failing[id]; ok {
		return err
	}
	s.writes[id]++
	for i := range s.panels {
		if s.panels[i].ID == id {
			s.panels[i].SearchTerms = terms
			s.panels[i].FuzzyText = fuzzyText
			s.panels[i].ContentHash = contentHash
		}
	}
	return nil
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.writes {
		total += n
	}
	return total
}

func TestReindex_SingleRecord(t *testing.T) {
	store := newMemStore(1)
	r := NewReindexer(store)
	p := store.panels[0]

	changed, err := r.Reindex(context.Background(), &p)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if !changed {
		t.Fatal("first reindex of an unindexed panel must write")
	}
	if p.ContentHash == "" || len(p.SearchTerms) == 0 {
		t.Error("panel not updated in place")
	}

	// Same content again: no write.
	changed, err = r.Reindex(context.Background(), &p)
	if err != nil {
		t.Fatalf("second Reindex: %v", err)
	}
	if changed {
		t.Error("reindex with unchanged content must be a no-op")
	}
}

func TestBatchReindex_AllPages(t *testing.T) {
	store := newMemStore(25)
	r := NewReindexer(store)

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 10, Workers: 3})
	if err != nil {
		t.Fatalf("BatchReindex: %v", err)
	}
	if res.Records != 25 {
		t.Errorf("records = %d, want 25", res.Records)
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
	if res.Reindexed != 25 || store.writeCount() != 25 {
		t.Errorf("reindexed = %d, writes = %d, want 25 each", res.Reindexed, store.writeCount())
	}
	if res.ResumeAfterID != 25 {
		t.Errorf("resume cursor = %d, want the last id 25", res.ResumeAfterID)
	}
	if len(res.ReindexedIDs) != 25 {
		t.Errorf("reindexed ids = %d entries, want 25", len(res.ReindexedIDs))
	}
}

func TestBatchReindex_SkipsUnchanged(t *testing.T) {
	store := newMemStore(10)
	r := NewReindexer(store)

	if _, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 4}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstWrites := store.writeCount()

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 4})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Skipped != 10 || res.Reindexed != 0 {
		t.Errorf("second run: skipped = %d, reindexed = %d, want 10 and 0", res.Skipped, res.Reindexed)
	}
	if store.writeCount() != firstWrites {
		t.Errorf("second run wrote %d more times", store.writeCount()-firstWrites)
	}
}

func TestBatchReindex_DryRunWritesNothing(t *testing.T) {
	store := newMemStore(10)
	r := NewReindexer(store)

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 4, DryRun: true})
	if err != nil {
		t.Fatalf("BatchReindex: %v", err)
	}
	if res.Reindexed != 10 {
		t.Errorf("dry run reported %d reindexed, want 10", res.Reindexed)
	}
	if store.writeCount() != 0 {
		t.Errorf("dry run performed %d writes", store.writeCount())
	}
}

func TestBatchReindex_PlannedStateOverlay(t *testing.T) {
	store := newMemStore(4)
	r := NewReindexer(store)

	// Bring the store up to date, then diff against a planned working set
	// where panel 2 is gone and panel 1 carries merged fields.
	if _, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 10}); err != nil {
		t.Fatalf("priming BatchReindex: %v", err)
	}

	merged := store.panels[0]
	merged.Name = "Panneau mélaminé hydrofuge"

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{
		PageSize:        10,
		DryRun:          true,
		PlannedRemovals: map[catalog.PanelID]bool{2: true},
		PlannedStates:   map[catalog.PanelID]catalog.Panel{1: merged},
	})
	if err != nil {
		t.Fatalf("BatchReindex: %v", err)
	}

	if res.Records != 3 {
		t.Errorf("records = %d, want 3 with panel 2 dropped", res.Records)
	}
	if res.Reindexed != 1 {
		t.Errorf("reindexed = %d, want only the panel with planned changes", res.Reindexed)
	}
	if len(res.ReindexedIDs) != 1 || res.ReindexedIDs[0] != 1 {
		t.Errorf("reindexed ids = %v, want [1]", res.ReindexedIDs)
	}
	if store.writeCount() != 4 {
		t.Errorf("dry run wrote: %d writes, want the 4 from priming only", store.writeCount())
	}
}

func TestBatchReindex_ResumeCursor(t *testing.T) {
	store := newMemStore(20)
	r := NewReindexer(store)

	// Process the first half, then resume from the reported cursor.
	first, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	// New records appended after the first run.
	store.mu.Lock()
	for i := 21; i <= 23; i++ {
		store.panels = append(store.panels, catalog.Panel{
			ID: catalog.PanelID(i), CatalogueID: 1, Name: fmt.Sprintf("Panneau %d", i),
		})
	}
	store.mu.Unlock()

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 5, ResumeAfterID: first.ResumeAfterID})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if res.Records != 3 {
		t.Errorf("resumed run saw %d records, want only the 3 new ones", res.Records)
	}
}

func TestBatchReindex_RecordFailureIsolated(t *testing.T) {
	store := newMemStore(10)
	// Permanent validation error: not retried, recorded, rest continues.
	store.failing[4] = apperrors.NewValidationError("bad row", nil)
	r := NewReindexer(store)

	res, err := r.BatchReindex(context.Background(), 1, BatchOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("BatchReindex: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].PanelID != 4 {
		t.Fatalf("failed = %v, want exactly panel 4", res.Failed)
	}
	if res.Reindexed != 9 {
		t.Errorf("reindexed = %d, want the other 9", res.Reindexed)
	}
}

func TestBatchReindex_Cancelled(t *testing.T) {
	store := newMemStore(10)
	r := NewReindexer(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.BatchReindex(ctx, 1, BatchOptions{PageSize: 5}); err == nil {
		t.Error("BatchReindex with cancelled context returned nil error")
	}
}
