// Package store implements the reconciling file-tree store: the single
// in-memory state container the rest of the application reads. It merges
// optimistic local entries, cache entries, and server responses into one
// consistent, filterable view.
//
// Records live in a flat map keyed by normalized identifier with parent
// pointers; the tree shape is derived by lookup, never by linked nodes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/client/remote"
	"github.com/nexuscloud/drivesync/internal/client/repositories/records"
	"github.com/nexuscloud/drivesync/internal/common"
	"github.com/nexuscloud/drivesync/internal/logging"
)

// Scope selects a filtered view of the tree. Any string that is not one of
// the sentinels below is treated as a folder identifier.
type Scope string

const (
	ScopeRoot    Scope = "root"
	ScopeTrash   Scope = "trash"
	ScopeShared  Scope = "shared"
	ScopeStarred Scope = "starred"
)

// entry pairs a record with its merge bookkeeping.
type entry struct {
	node *models.Node
	// serverOrder is the position the server last listed this record at;
	// -1 marks purely local records, which sort before everything else.
	serverOrder int
	// confirmedAt is the timestamp of the last write that produced this
	// version, used for last-writer-wins merging.
	confirmedAt time.Time
}

// Store is safe for concurrent use. The lock is never held across I/O; the
// remote call of an optimistic mutation runs after the in-memory apply.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextOrd int

	remote remote.Service
	cache  records.Repository
	log    logging.Logger
}

func New(svc remote.Service, cache records.Repository, log logging.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		remote:  svc,
		cache:   cache,
		log:     log.With("component", "store"),
	}
}

// Load rebuilds the in-memory view from the durable cache after a cold
// start, without touching the network.
func (s *Store) Load(ctx context.Context) error {
	trashed, err := s.cache.QueryTrashed(ctx)
	if err != nil {
		return fmt.Errorf("loading trashed records: %w", err)
	}

	var live []*models.Node
	for _, state := range []models.SyncState{
		models.StatePendingUpload, models.StateUploading, models.StateSynced,
		models.StatePendingDelete, models.StateError,
	} {
		batch, err := s.cache.QueryBySyncState(ctx, state)
		if err != nil {
			return fmt.Errorf("loading cached records: %w", err)
		}
		live = append(live, batch...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range append(live, trashed...) {
		id := models.NormalizeID(n.ID)
		if _, ok := s.entries[id]; ok {
			continue
		}
		s.entries[id] = &entry{node: n.Clone(), serverOrder: s.orderLocked(n), confirmedAt: n.UpdatedAt}
	}
	return nil
}

func (s *Store) orderLocked(n *models.Node) int {
	if models.IsPlaceholderID(n.ID) {
		return -1
	}
	s.nextOrd++
	return s.nextOrd
}

// View returns the filtered, ordered records for scope. Trash returns
// exactly the trashed records; every other scope excludes them. Shared
// ignores folder placement entirely and trusts the server to have scoped
// results to the current user. Calling View twice with no intervening
// mutation returns an identical list.
func (s *Store) View(scope Scope) []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*entry
	for _, e := range s.entries {
		if s.matches(e.node, scope) {
			matched = append(matched, e)
		}
	}

	// Local, not-yet-confirmed records first so fresh uploads surface at
	// the top; then server order; name breaks ties deterministically.
	sortEntries(matched)

	out := make([]*models.Node, len(matched))
	for i, e := range matched {
		out[i] = e.node.Clone()
	}
	return out
}

func (s *Store) matches(n *models.Node, scope Scope) bool {
	switch scope {
	case ScopeTrash:
		return n.Trashed
	case ScopeShared:
		return n.Shared && !n.Trashed
	case ScopeStarred:
		return n.Starred && !n.Trashed
	case ScopeRoot:
		return !n.Trashed && n.ParentID == models.RootID
	default:
		return !n.Trashed && models.SameID(n.ParentID, string(scope))
	}
}

// Register makes an optimistic record visible (upload queue entry point).
func (s *Store) Register(n *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.NormalizeID(n.ID)
	s.entries[id] = &entry{node: n.Clone(), serverOrder: -1, confirmedAt: n.UpdatedAt}
}

// Confirm replaces the placeholder entry with the authoritative record. The
// placeholder is removed and the new record inserted, never mutated in
// place, so the two identifiers can never coexist.
func (s *Store) Confirm(placeholderID string, authoritative *models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, models.NormalizeID(placeholderID))
	id := models.NormalizeID(authoritative.ID)
	s.entries[id] = &entry{
		node:        authoritative.Clone(),
		serverOrder: s.orderLocked(authoritative),
		confirmedAt: authoritative.UpdatedAt,
	}
}

// Fail attaches a failure reason to a record; the record stays visible so
// the UI can render the error and a retry affordance per item.
func (s *Store) Fail(id, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[models.NormalizeID(id)]
	if !ok {
		return
	}
	e.node.SyncState = models.StateError
	e.node.SyncError = reason
}

// Get returns a copy of one record.
func (s *Store) Get(id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[models.NormalizeID(id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return e.node.Clone(), nil
}

// ApplyOptimistic applies a mutation to the in-memory view immediately, then
// runs the corresponding remote call. If the server rejects the mutation the
// pre-mutation state is restored and the rejection returned; a conflict
// additionally forces a reconciliation fetch.
func (s *Store) ApplyOptimistic(ctx context.Context, m models.Mutation) (*models.Node, error) {
	undo, result, err := s.apply(m)
	if err != nil {
		return nil, err
	}

	confirmed, remoteErr := s.callRemote(ctx, m, result)
	if remoteErr != nil {
		if m.Op == models.OpTrash && errors.Is(remoteErr, common.ErrNetwork) {
			// Soft deletes survive being offline: keep the local trash,
			// mark it pending_delete, and replay once connectivity returns.
			return s.deferTrash(ctx, m.ID)
		}

		s.mu.Lock()
		undo()
		s.mu.Unlock()

		if errors.Is(remoteErr, common.ErrConflict) {
			scope := ScopeRoot
			if result != nil && result.ParentID != models.RootID {
				scope = Scope(result.ParentID)
			}
			if err := s.Refresh(ctx, scope); err != nil {
				s.log.Warn(ctx, "forced refresh after conflict failed", "err", err)
			}
		}
		return nil, remoteErr
	}

	if confirmed != nil {
		// Server answered with the authoritative version of the record.
		s.Confirm(result.ID, confirmed)
		if err := s.cache.Replace(ctx, result.ID, confirmed); err != nil {
			return nil, fmt.Errorf("persisting confirmed mutation: %w", err)
		}
		return confirmed.Clone(), nil
	}

	if result != nil {
		if err := s.cache.Upsert(ctx, result); err != nil {
			return nil, fmt.Errorf("persisting mutation: %w", err)
		}
	} else if m.Op == models.OpDelete {
		if err := s.cache.Remove(ctx, m.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("removing deleted record: %w", err)
		}
	}
	return result, nil
}

// apply performs the in-memory change under the lock and returns an undo
// closure (to be invoked with the lock held) plus the mutated record copy.
func (s *Store) apply(m models.Mutation) (undo func(), result *models.Node, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Op == models.OpCreateFolder {
		if err := s.validateDestinationLocked("", m.ParentID); err != nil {
			return nil, nil, err
		}
		node := models.NewFolderNode(m.Name, m.ParentID)
		id := models.NormalizeID(node.ID)
		s.entries[id] = &entry{node: node.Clone(), serverOrder: -1, confirmedAt: node.UpdatedAt}
		return func() { delete(s.entries, id) }, node, nil
	}

	id := models.NormalizeID(m.ID)
	e, ok := s.entries[id]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	before := e.node.Clone()
	beforeAt := e.confirmedAt

	switch m.Op {
	case models.OpRename:
		e.node.Name = m.NewName
	case models.OpMove:
		if err := s.validateDestinationLocked(id, m.DestFolderID); err != nil {
			return nil, nil, err
		}
		e.node.ParentID = models.NormalizeID(m.DestFolderID)
	case models.OpTrash:
		e.node.Trashed = true
	case models.OpRestore:
		e.node.Trashed = false
	case models.OpStar:
		e.node.Starred = m.Starred
	case models.OpDelete:
		delete(s.entries, id)
		return func() { s.entries[id] = &entry{node: before, serverOrder: -1, confirmedAt: beforeAt} }, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown mutation %q", common.ErrValidation, m.Op)
	}

	e.node.UpdatedAt = time.Now().UTC()
	e.confirmedAt = e.node.UpdatedAt

	undo = func() {
		if cur, ok := s.entries[id]; ok {
			cur.node = before
			cur.confirmedAt = beforeAt
		} else {
			s.entries[id] = &entry{node: before, serverOrder: -1, confirmedAt: beforeAt}
		}
	}
	return undo, e.node.Clone(), nil
}

// deferTrash marks an already-applied trash mutation pending_delete so it
// can be replayed later.
func (s *Store) deferTrash(ctx context.Context, id string) (*models.Node, error) {
	s.mu.Lock()
	e, ok := s.entries[models.NormalizeID(id)]
	if !ok {
		s.mu.Unlock()
		return nil, common.ErrNotFound
	}
	e.node.SyncState = models.StatePendingDelete
	deferred := e.node.Clone()
	s.mu.Unlock()

	if err := s.cache.Upsert(ctx, deferred); err != nil {
		return nil, fmt.Errorf("persisting deferred delete: %w", err)
	}
	return deferred, nil
}

// ReplayPendingDeletes pushes soft deletes recorded while offline to the
// server. A record the server no longer knows counts as done. Stops at the
// first network failure so the remainder is retried on the next call.
func (s *Store) ReplayPendingDeletes(ctx context.Context) error {
	pending, err := s.cache.QueryBySyncState(ctx, models.StatePendingDelete)
	if err != nil {
		return fmt.Errorf("loading deferred deletes: %w", err)
	}

	for _, n := range pending {
		if err := s.remote.SoftDelete(ctx, n.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		n.SyncState = models.StateSynced
		n.Trashed = true

		s.mu.Lock()
		if e, ok := s.entries[models.NormalizeID(n.ID)]; ok {
			e.node.SyncState = models.StateSynced
			e.node.Trashed = true
		}
		s.mu.Unlock()

		if err := s.cache.Upsert(ctx, n); err != nil {
			return fmt.Errorf("persisting replayed delete: %w", err)
		}
	}
	return nil
}

// validateDestinationLocked enforces the tree invariants at mutation time:
// the destination must exist (or be the root) and must not be the moved
// folder itself or one of its descendants. Checking here means cycles are
// impossible by construction and no runtime cycle detection is needed.
func (s *Store) validateDestinationLocked(movedID, destID string) error {
	dest := models.NormalizeID(destID)
	if dest == models.RootID {
		return nil
	}

	e, ok := s.entries[dest]
	if !ok {
		return fmt.Errorf("%w: destination folder %q does not exist", common.ErrValidation, destID)
	}
	if !e.node.IsFolder() {
		return fmt.Errorf("%w: destination %q is not a folder", common.ErrValidation, destID)
	}

	if movedID == "" {
		return nil
	}

	// Walk up from the destination; hitting the moved folder means the move
	// would create a cycle.
	for cur := dest; cur != models.RootID; {
		if cur == movedID {
			return fmt.Errorf("%w: cannot move a folder into itself or its descendant", common.ErrValidation)
		}
		parent, ok := s.entries[cur]
		if !ok {
			break
		}
		cur = parent.node.ParentID
	}
	return nil
}

func (s *Store) callRemote(ctx context.Context, m models.Mutation, applied *models.Node) (*models.Node, error) {
	switch m.Op {
	case models.OpCreateFolder:
		return s.remote.Create(ctx, m.Name, m.ParentID)
	case models.OpRename:
		return s.remote.Rename(ctx, m.ID, m.NewName)
	case models.OpMove:
		return s.remote.Move(ctx, m.ID, m.DestFolderID)
	case models.OpStar:
		return s.remote.Star(ctx, m.ID, m.Starred)
	case models.OpTrash:
		return nil, s.remote.SoftDelete(ctx, m.ID)
	case models.OpRestore:
		return nil, s.remote.Restore(ctx, m.ID)
	case models.OpDelete:
		return nil, s.remote.Delete(ctx, m.ID)
	default:
		return nil, fmt.Errorf("%w: unknown mutation %q", common.ErrValidation, m.Op)
	}
}

// Reconcile merges authoritative server records into the view with
// last-writer-wins per record; ties favor the server, since it is
// authoritative over final state. It returns the records it accepted, so
// callers persist exactly the merge winners: a server copy the local state
// outran (a deferred delete, a fresher rename) must not reach the cache.
func (s *Store) Reconcile(serverRecords []*models.Node) []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := make([]*models.Node, 0, len(serverRecords))
	for _, n := range serverRecords {
		id := models.NormalizeID(n.ID)
		s.nextOrd++
		ord := s.nextOrd

		cur, ok := s.entries[id]
		if ok && cur.confirmedAt.After(n.UpdatedAt) {
			// Local optimistic write is newer; keep it but adopt the
			// server's ordering slot.
			cur.serverOrder = ord
			continue
		}
		s.entries[id] = &entry{node: n.Clone(), serverOrder: ord, confirmedAt: n.UpdatedAt}
		accepted = append(accepted, n)
	}
	return accepted
}

// Refresh fetches a scope from the server and reconciles it into the view,
// persisting the merged records.
func (s *Store) Refresh(ctx context.Context, scope Scope) error {
	var nodes []*models.Node
	switch scope {
	case ScopeShared:
		shared, err := s.remote.ListShared(ctx)
		if err != nil {
			return err
		}
		nodes = shared
	case ScopeTrash:
		trashed, err := s.remote.ListTrashed(ctx)
		if err != nil {
			return err
		}
		nodes = trashed
	default:
		folderID := models.RootID
		if scope != ScopeRoot {
			folderID = string(scope)
		}
		listing, err := s.remote.List(ctx, folderID)
		if err != nil {
			return err
		}
		nodes = append(listing.Folders, listing.Files...)
	}

	for _, n := range s.Reconcile(nodes) {
		if err := s.cache.Upsert(ctx, n); err != nil {
			return fmt.Errorf("persisting reconciled record: %w", err)
		}
	}
	return nil
}
