package dedup

import (
	"context"
	"log"
	"sort"
	"strings"

	"panelcatalog/catalog"
	"panelcatalog/normalization"
)

// Store is the slice of the catalog store the deduplicator writes through.
type Store interface {
	UpdatePanel(ctx context.Context, p *catalog.Panel) error
	DeletePanels(ctx context.Context, ids []catalog.PanelID) error
}

// MergePlan describes one planned group merge: the survivor, the records
// to remove, the merged field values and, per copied field, the record the
// value came from. Plans are what dry-run reports and what apply executes;
// there is no second decision path.
type MergePlan struct {
	CatalogueID   catalog.CatalogueID            `json:"catalogue_id"`
	CanonicalCode string                         `json:"canonical_code"`
	SurvivorID    catalog.PanelID                `json:"survivor_id"`
	RemovedIDs    []catalog.PanelID              `json:"removed_ids"`
	Merged        catalog.Panel                  `json:"merged"`
	FieldSources  map[string]catalog.PanelID     `json:"field_sources"`
}

// CrossCatalogueCollision reports a canonical code shared by panels of
// different catalogues. Those are coincidences, never duplicates, and are
// left untouched.
type CrossCatalogueCollision struct {
	CanonicalCode string                `json:"canonical_code"`
	Catalogues    []catalog.CatalogueID `json:"catalogues"`
	PanelIDs      []catalog.PanelID     `json:"panel_ids"`
}

// Deduplicator groups panels by canonical code and merges each group into
// one surviving record using the merge policy table.
type Deduplicator struct {
	store      Store
	policies   []FieldPolicy
	trustOrder []string
}

// NewDeduplicator creates a deduplicator. trustOrder lists source tags
// (folded substrings matched against panel references) from most to least
// trusted; it governs the TrustedNonNull policy fields.
func NewDeduplicator(store Store, trustOrder []string) *Deduplicator {
	folded := make([]string, len(trustOrder))
	for i, tag := range trustOrder {
		folded[i] = normalization.Fold(tag)
	}
	return &Deduplicator{
		store:      store,
		policies:   MergePolicyTable(),
		trustOrder: folded,
	}
}

// Plan computes the merge plans for the working set without writing
// anything. Records without an extractable canonical code stay singleton
// groups. Running Plan on an already-deduplicated set returns no plans.
func (d *Deduplicator) Plan(records []catalog.Panel) ([]MergePlan, []CrossCatalogueCollision) {
	groups := make(map[string][]*catalog.Panel)
	order := make([]string, 0)

	for i := range records {
		p := &records[i]
		code := p.CanonicalCode
		if code == "" {
			extracted, ok := normalization.ExtractCanonicalCode(p.Reference)
			if !ok {
				continue
			}
			code = extracted
			p.CanonicalCode = code
		}
		if _, seen := groups[code]; !seen {
			order = append(order, code)
		}
		groups[code] = append(groups[code], p)
	}

	var plans []MergePlan
	var collisions []CrossCatalogueCollision

	for _, code := range order {
		group := groups[code]
		if len(group) < 2 {
			continue
		}

		if collision, ok := d.crossCatalogue(code, group); ok {
			log.Printf("[Dedup] Warning: canonical code %s spans catalogues %v, leaving %d records untouched",
				code, collision.Catalogues, len(collision.PanelIDs))
			collisions = append(collisions, collision)
			continue
		}

		plans = append(plans, d.planGroup(code, group))
	}

	return plans, collisions
}

// Apply executes previously planned merges: the survivor is updated in
// place, the losers are hard-deleted. Returns the removed panel ids for
// downstream cleanup of external references.
func (d *Deduplicator) Apply(ctx context.Context, plans []MergePlan) ([]catalog.PanelID, error) {
	var removed []catalog.PanelID

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		merged := plan.Merged
		if err := d.store.UpdatePanel(ctx, &merged); err != nil {
			return removed, err
		}
		if err := d.store.DeletePanels(ctx, plan.RemovedIDs); err != nil {
			return removed, err
		}

		removed = append(removed, plan.RemovedIDs...)
		log.Printf("[Dedup] Merged %d records into panel %d (code %s)",
			len(plan.RemovedIDs)+1, plan.SurvivorID, plan.CanonicalCode)
	}

	return removed, nil
}

// Deduplicate is Plan followed by Apply.
func (d *Deduplicator) Deduplicate(ctx context.Context, records []catalog.Panel) ([]MergePlan, []catalog.PanelID, error) {
	plans, _ := d.Plan(records)
	removed, err := d.Apply(ctx, plans)
	return plans, removed, err
}

// planGroup merges one single-catalogue group of size >= 2.
func (d *Deduplicator) planGroup(code string, group []*catalog.Panel) MergePlan {
	survivor := d.selectSurvivor(group)

	merged := *survivor
	merged.ThicknessMM = append([]float64(nil), survivor.ThicknessMM...)
	fieldSources := make(map[string]catalog.PanelID)

	for _, policy := range d.policies {
		if !policy.isEmpty(survivor) && policy.Kind != TrustedNonNull {
			// Never overwrite a field the survivor already has.
			fieldSources[policy.Field] = survivor.ID
			continue
		}

		source := d.selectSource(policy, survivor, group)
		if source == nil {
			continue
		}
		policy.copyFrom(&merged, source)
		fieldSources[policy.Field] = source.ID
	}

	removed := make([]catalog.PanelID, 0, len(group)-1)
	for _, p := range group {
		if p.ID != survivor.ID {
			removed = append(removed, p.ID)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	return MergePlan{
		CatalogueID:   survivor.CatalogueID,
		CanonicalCode: code,
		SurvivorID:    survivor.ID,
		RemovedIDs:    removed,
		Merged:        merged,
		FieldSources:  fieldSources,
	}
}

// selectSurvivor picks the group member with the most non-empty mergeable
// fields; ties go to the earliest record in group order.
func (d *Deduplicator) selectSurvivor(group []*catalog.Panel) *catalog.Panel {
	best := group[0]
	bestCount := -1
	for _, p := range group {
		count := 0
		for _, policy := range d.policies {
			if !policy.isEmpty(p) {
				count++
			}
		}
		if count > bestCount {
			best = p
			bestCount = count
		}
	}
	return best
}

// selectSource picks the record to copy a missing field from.
func (d *Deduplicator) selectSource(policy FieldPolicy, survivor *catalog.Panel, group []*catalog.Panel) *catalog.Panel {
	switch policy.Kind {
	case TrustedNonNull:
		var best *catalog.Panel
		bestRank := len(d.trustOrder) + 1
		for _, p := range group {
			if policy.isEmpty(p) {
				continue
			}
			if rank := d.trustRank(p); rank < bestRank {
				best = p
				bestRank = rank
			}
		}
		if best != nil && policy.isEmpty(survivor) {
			return best
		}
		// Both survivor and best have a value: only replace when the
		// alternative source ranks strictly higher.
		if best != nil && d.trustRank(best) < d.trustRank(survivor) {
			return best
		}
		return nil
	default:
		// FirstNonZero and PreferNonNull both resolve to the first record
		// in group order with a value, once the survivor is known empty.
		for _, p := range group {
			if !policy.isEmpty(p) {
				return p
			}
		}
		return nil
	}
}

// trustRank returns the index of the first trust tag contained in the
// folded reference, or one past the end when no tag matches.
func (d *Deduplicator) trustRank(p *catalog.Panel) int {
	ref := normalization.Fold(p.Reference)
	for i, tag := range d.trustOrder {
		if tag != "" && strings.Contains(ref, tag) {
			return i
		}
	}
	return len(d.trustOrder)
}

// crossCatalogue reports whether the group spans more than one catalogue.
func (d *Deduplicator) crossCatalogue(code string, group []*catalog.Panel) (CrossCatalogueCollision, bool) {
	seen := make(map[catalog.CatalogueID]bool)
	collision := CrossCatalogueCollision{CanonicalCode: code}
	for _, p := range group {
		if !seen[p.CatalogueID] {
			seen[p.CatalogueID] = true
			collision.Catalogues = append(collision.Catalogues, p.CatalogueID)
		}
		collision.PanelIDs = append(collision.PanelIDs, p.ID)
	}
	return collision, len(collision.Catalogues) > 1
}
