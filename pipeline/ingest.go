package pipeline

import (
	"context"
	"log"

	"panelcatalog/catalog"
	"panelcatalog/retry"
)

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Inserted int       `json:"inserted"`
	Failures []Failure `json:"failures,omitempty"`
}

// Ingest translates candidate records into panels and inserts them. The
// scraper's notion of duplication is ignored: deduplication happens in the
// next pass, on the engine's terms. Records referencing an unknown
// catalogue fail individually; one bad record never sinks the batch.
func (pl *Pipeline) Ingest(ctx context.Context, records []catalog.CandidateRecord) (*IngestResult, error) {
	result := &IngestResult{}
	catalogueIDs := make(map[string]catalog.CatalogueID)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id, ok := catalogueIDs[rec.CatalogueSlug]
		if !ok {
			cat, err := pl.db.GetCatalogueBySlug(ctx, rec.CatalogueSlug)
			if err != nil {
				result.Failures = append(result.Failures, Failure{
					Stage: "ingest", Error: err.Error(),
				})
				continue
			}
			id = cat.ID
			catalogueIDs[rec.CatalogueSlug] = id
		}

		panel := catalog.TranslateCandidate(rec, id)
		err := retry.Do(ctx, func() error {
			return pl.db.InsertPanel(ctx, &panel)
		}, retry.DefaultConfig())
		if err != nil {
			result.Failures = append(result.Failures, Failure{
				Stage: "ingest", Error: err.Error(),
			})
			continue
		}
		result.Inserted++
	}

	log.Printf("[Ingest] Inserted %d of %d candidate records (%d failures)",
		result.Inserted, len(records), len(result.Failures))
	return result, nil
}
