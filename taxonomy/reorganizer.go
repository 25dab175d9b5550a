package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"panelcatalog/catalog"
	"panelcatalog/database"
	apperrors "panelcatalog/server/errors"
)

// Sentinel errors for the four tree operations. They are wrapped in the
// engine's error taxonomy, so both errors.Is checks and kind-based retry
// policies work.
var (
	ErrParentNotFound              = errors.New("parent category not found")
	ErrWouldCreateCycle            = errors.New("move would create a cycle")
	ErrCannotMoveAcrossCatalogues  = errors.New("cannot move a category across catalogues")
	ErrCannotMergeAcrossCatalogues = errors.New("cannot merge categories across catalogues")
)

// TreeOp describes one applied or planned tree mutation, for diff reports.
type TreeOp struct {
	Op          string              `json:"op"` // "create", "move", "merge", "delete"
	CatalogueID catalog.CatalogueID `json:"catalogue_id"`
	NodeID      catalog.CategoryID  `json:"node_id,omitempty"`
	TargetID    catalog.CategoryID  `json:"target_id,omitempty"`
	Slug        string              `json:"slug,omitempty"`
	Children    int64               `json:"children_moved,omitempty"`
	Panels      int64               `json:"panels_moved,omitempty"`
}

// Reorganizer performs structural mutations on category trees. Every
// operation is transactional and operations are serialized per catalogue:
// MoveSubtree and MergeInto read tree shape before writing it, and a
// concurrent second mutation could reintroduce a cycle or duplicate slug
// between the read and the write.
type Reorganizer struct {
	db    *database.CatalogDB
	locks map[catalog.CatalogueID]*sync.Mutex
	mu    sync.Mutex
}

// NewReorganizer creates a reorganizer over the catalog store.
func NewReorganizer(db *database.CatalogDB) *Reorganizer {
	return &Reorganizer{
		db:    db,
		locks: make(map[catalog.CatalogueID]*sync.Mutex),
	}
}

// lockCatalogue returns the single-writer mutex of a catalogue.
func (r *Reorganizer) lockCatalogue(id catalog.CatalogueID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// EnsureCategory returns the existing node when the slug is already
// present in the catalogue, otherwise creates it under the resolved
// parent. parentSlug "" means root.
func (r *Reorganizer) EnsureCategory(ctx context.Context, catalogueID catalog.CatalogueID, slug, name, parentSlug string) (catalog.CategoryID, error) {
	lock := r.lockCatalogue(catalogueID)
	lock.Lock()
	defer lock.Unlock()

	var id catalog.CategoryID
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := database.GetCategoryBySlug(ctx, tx, catalogueID, slug)
		if err == nil {
			id = existing.ID
			return nil
		}
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return err
		}

		var parentID *catalog.CategoryID
		if parentSlug != "" {
			parent, err := database.GetCategoryBySlug(ctx, tx, catalogueID, parentSlug)
			if err != nil {
				if apperrors.KindOf(err) == apperrors.KindNotFound {
					return apperrors.NewValidationError(
						fmt.Sprintf("parent %q does not exist in catalogue %d", parentSlug, catalogueID),
						ErrParentNotFound)
				}
				return err
			}
			parentID = &parent.ID
		}

		created, err := database.InsertCategory(ctx, tx, catalog.Category{
			CatalogueID: catalogueID,
			Slug:        slug,
			Name:        name,
			ParentID:    parentID,
		})
		if err != nil {
			return err
		}
		id = created

		if err := r.checkInvariants(ctx, tx, catalogueID); err != nil {
			return err
		}
		log.Printf("[Taxonomy] Created category %q (%d) in catalogue %d", slug, id, catalogueID)
		return nil
	})
	return id, err
}

// MoveSubtree reparents a node (and implicitly its subtree) under a new
// parent. Fails with ErrWouldCreateCycle when the new parent is the node
// itself or one of its descendants, and with ErrCannotMoveAcrossCatalogues
// when the new parent lives in another catalogue; the tree is left
// untouched either way.
func (r *Reorganizer) MoveSubtree(ctx context.Context, nodeID, newParentID catalog.CategoryID) error {
	return r.withNodeLock(ctx, nodeID, func(tx *sql.Tx, node *catalog.Category) error {
		parent, err := database.GetCategory(ctx, tx, newParentID)
		if err != nil {
			return err
		}
		if parent.CatalogueID != node.CatalogueID {
			return apperrors.NewValidationError(
				fmt.Sprintf("category %d and parent %d belong to different catalogues", nodeID, newParentID),
				ErrCannotMoveAcrossCatalogues)
		}

		if newParentID == nodeID {
			return apperrors.NewValidationError(
				fmt.Sprintf("cannot move category %d under itself", nodeID), ErrWouldCreateCycle)
		}
		isDesc, err := r.isDescendant(ctx, tx, newParentID, nodeID)
		if err != nil {
			return err
		}
		if isDesc {
			return apperrors.NewValidationError(
				fmt.Sprintf("category %d is a descendant of %d", newParentID, nodeID), ErrWouldCreateCycle)
		}

		if err := database.UpdateCategoryParent(ctx, tx, nodeID, &newParentID); err != nil {
			return err
		}
		if err := r.checkInvariants(ctx, tx, node.CatalogueID); err != nil {
			return err
		}
		log.Printf("[Taxonomy] Moved category %d under %d", nodeID, newParentID)
		return nil
	})
}

// MergeInto reassigns all of source's children and panels to target, then
// deletes source. Fails with ErrCannotMergeAcrossCatalogues when the two
// nodes live in different catalogues.
func (r *Reorganizer) MergeInto(ctx context.Context, sourceID, targetID catalog.CategoryID) (TreeOp, error) {
	var op TreeOp
	err := r.withNodeLock(ctx, sourceID, func(tx *sql.Tx, source *catalog.Category) error {
		target, err := database.GetCategory(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if target.CatalogueID != source.CatalogueID {
			return apperrors.NewValidationError(
				fmt.Sprintf("categories %d and %d belong to different catalogues", sourceID, targetID),
				ErrCannotMergeAcrossCatalogues)
		}
		if sourceID == targetID {
			return apperrors.NewValidationError("cannot merge a category into itself", nil)
		}

		children, err := database.ReparentChildren(ctx, tx, sourceID, targetID)
		if err != nil {
			return err
		}
		panels, err := database.RecategorizePanels(ctx, tx, sourceID, targetID)
		if err != nil {
			return err
		}
		if err := database.DeleteCategory(ctx, tx, sourceID); err != nil {
			return err
		}
		if err := r.checkInvariants(ctx, tx, source.CatalogueID); err != nil {
			return err
		}

		op = TreeOp{
			Op:          "merge",
			CatalogueID: source.CatalogueID,
			NodeID:      sourceID,
			TargetID:    targetID,
			Slug:        source.Slug,
			Children:    children,
			Panels:      panels,
		}
		log.Printf("[Taxonomy] Merged category %q (%d) into %d: %d children, %d panels",
			source.Slug, sourceID, targetID, children, panels)
		return nil
	})
	return op, err
}

// DeleteIfEmpty deletes the node only when it has no children and no
// assigned panels. A non-empty node returns deleted=false without error:
// this is a query-like operation, not a failure.
func (r *Reorganizer) DeleteIfEmpty(ctx context.Context, nodeID catalog.CategoryID) (bool, error) {
	deleted := false
	err := r.withNodeLock(ctx, nodeID, func(tx *sql.Tx, node *catalog.Category) error {
		children, err := database.CountCategoryChildren(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		panels, err := database.CountCategoryPanels(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		if children > 0 || panels > 0 {
			return nil
		}

		if err := database.DeleteCategory(ctx, tx, nodeID); err != nil {
			return err
		}
		deleted = true
		log.Printf("[Taxonomy] Deleted empty category %q (%d)", node.Slug, nodeID)
		return nil
	})
	return deleted, err
}

// withNodeLock resolves the node, takes its catalogue's writer lock and
// runs fn in a transaction.
func (r *Reorganizer) withNodeLock(ctx context.Context, nodeID catalog.CategoryID, fn func(tx *sql.Tx, node *catalog.Category) error) error {
	// Resolve the catalogue outside the lock; the id->catalogue binding of
	// a category never changes.
	node, err := database.GetCategory(ctx, r.db.Conn(), nodeID)
	if err != nil {
		return err
	}

	lock := r.lockCatalogue(node.CatalogueID)
	lock.Lock()
	defer lock.Unlock()

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Re-read under the lock; the node may have moved or vanished.
		current, err := database.GetCategory(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		return fn(tx, current)
	})
}

// isDescendant reports whether candidate is a descendant of ancestor,
// walking parent links upward from candidate.
func (r *Reorganizer) isDescendant(ctx context.Context, tx *sql.Tx, candidate, ancestor catalog.CategoryID) (bool, error) {
	const maxDepth = 1000
	current := candidate
	for depth := 0; depth < maxDepth; depth++ {
		node, err := database.GetCategory(ctx, tx, current)
		if err != nil {
			return false, err
		}
		if node.ParentID == nil {
			return false, nil
		}
		if *node.ParentID == ancestor {
			return true, nil
		}
		current = *node.ParentID
	}
	return false, apperrors.NewInvariantViolation(
		fmt.Sprintf("parent chain of category %d exceeds %d levels, tree is likely cyclic", candidate, maxDepth), nil)
}

// checkInvariants re-validates the no-duplicate-slug and no-cycle
// invariants over the whole catalogue before commit. A violation here
// means a race or an earlier-stage bug, so it aborts the transaction as an
// invariant violation rather than corrupting the tree.
func (r *Reorganizer) checkInvariants(ctx context.Context, tx *sql.Tx, catalogueID catalog.CatalogueID) error {
	nodes, err := database.ListCategories(ctx, tx, catalogueID)
	if err != nil {
		return err
	}

	slugs := make(map[string]catalog.CategoryID, len(nodes))
	parents := make(map[catalog.CategoryID]*catalog.CategoryID, len(nodes))
	for _, n := range nodes {
		if other, dup := slugs[n.Slug]; dup {
			return apperrors.NewInvariantViolation(
				fmt.Sprintf("duplicate slug %q in catalogue %d (categories %d and %d)", n.Slug, catalogueID, other, n.ID), nil)
		}
		slugs[n.Slug] = n.ID
		parents[n.ID] = n.ParentID
	}

	for _, n := range nodes {
		visited := map[catalog.CategoryID]bool{n.ID: true}
		current := n.ParentID
		for current != nil {
			if visited[*current] {
				return apperrors.NewInvariantViolation(
					fmt.Sprintf("cycle detected in catalogue %d at category %d", catalogueID, *current), nil)
			}
			visited[*current] = true
			current = parents[*current]
		}
	}

	return nil
}
