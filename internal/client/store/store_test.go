package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/client/remote"
	"github.com/nexuscloud/drivesync/internal/client/repositories/records"
	"github.com/nexuscloud/drivesync/internal/common"
	"github.com/nexuscloud/drivesync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// fakeRemote answers mutations with canned results.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	createErr error
	renameErr error
	moveErr   error
	trashErr  error
	deleteErr error

	listing *remote.Listing
	shared  []*models.Node
	trashed []*models.Node
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func confirmed(id, name, parentID string, kind models.Kind) *models.Node {
	now := time.Now().UTC()
	return &models.Node{
		ID: id, Kind: kind, Name: name, ParentID: models.NormalizeID(parentID),
		CreatedAt: now, UpdatedAt: now, SyncState: models.StateSynced,
	}
}

func (f *fakeRemote) List(ctx context.Context, folderID string) (*remote.Listing, error) {
	f.record("list:" + folderID)
	if f.listing == nil {
		return &remote.Listing{}, nil
	}
	return f.listing, nil
}

func (f *fakeRemote) ListShared(ctx context.Context) ([]*models.Node, error) {
	f.record("shared")
	return f.shared, nil
}

func (f *fakeRemote) ListTrashed(ctx context.Context) ([]*models.Node, error) {
	f.record("trashed")
	return f.trashed, nil
}

func (f *fakeRemote) Create(ctx context.Context, name, parentID string) (*models.Node, error) {
	f.record("create:" + name)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return confirmed("srv-folder-1", name, parentID, models.KindFolder), nil
}

func (f *fakeRemote) Rename(ctx context.Context, id, newName string) (*models.Node, error) {
	f.record("rename:" + id)
	if f.renameErr != nil {
		return nil, f.renameErr
	}
	return nil, nil
}

func (f *fakeRemote) Move(ctx context.Context, id, destFolderID string) (*models.Node, error) {
	f.record("move:" + id)
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	return nil, nil
}

func (f *fakeRemote) Star(ctx context.Context, id string, starred bool) (*models.Node, error) {
	f.record("star:" + id)
	return nil, nil
}

func (f *fakeRemote) SoftDelete(ctx context.Context, id string) error {
	f.record("softdelete:" + id)
	return f.trashErr
}

func (f *fakeRemote) Restore(ctx context.Context, id string) error {
	f.record("restore:" + id)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.record("delete:" + id)
	return f.deleteErr
}

func (f *fakeRemote) Share(ctx context.Context, id, recipient string) error {
	f.record("share:" + id)
	return nil
}

func (f *fakeRemote) UploadBytes(ctx context.Context, blob []byte, meta remote.UploadMeta, onProgress remote.ProgressFunc) (*models.Node, error) {
	return nil, nil
}

func setupStore(t *testing.T) (*Store, *fakeRemote, records.Repository) {
	t.Helper()
	db, err := records.OpenDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache := records.NewSQLiteRepository(db)
	svc := &fakeRemote{}
	s := New(svc, cache, logging.NewSlogLogger(slog.Default()))
	return s, svc, cache
}

func seed(t *testing.T, s *Store, cache records.Repository, nodes ...*models.Node) {
	t.Helper()
	s.Reconcile(nodes)
	for _, n := range nodes {
		require.NoError(t, cache.Upsert(context.Background(), n))
	}
}

func ids(nodes []*models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestView_ScopeFiltering(t *testing.T) {
	s, _, cache := setupStore(t)

	folder := confirmed("f1", "docs", models.RootID, models.KindFolder)
	inFolder := confirmed("srv-1", "a.txt", "F1", models.KindFile)
	atRoot := confirmed("srv-2", "b.txt", models.RootID, models.KindFile)
	trashed := confirmed("srv-3", "c.txt", "f1", models.KindFile)
	trashed.Trashed = true
	shared := confirmed("srv-4", "d.txt", "elsewhere", models.KindFile)
	shared.Shared = true
	starred := confirmed("srv-5", "e.txt", models.RootID, models.KindFile)
	starred.Starred = true

	seed(t, s, cache, folder, inFolder, atRoot, trashed, shared, starred)

	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View("F1")), "parent match is normalized")
	assert.ElementsMatch(t, []string{"f1", "srv-2", "srv-5"}, ids(s.View(ScopeRoot)))
	assert.ElementsMatch(t, []string{"srv-3"}, ids(s.View(ScopeTrash)))
	assert.ElementsMatch(t, []string{"srv-4"}, ids(s.View(ScopeShared)), "shared ignores folder placement")
	assert.ElementsMatch(t, []string{"srv-5"}, ids(s.View(ScopeStarred)))
}

func TestView_Idempotent(t *testing.T) {
	s, _, cache := setupStore(t)
	seed(t, s, cache,
		confirmed("srv-1", "a", models.RootID, models.KindFile),
		confirmed("srv-2", "b", models.RootID, models.KindFile),
		confirmed("srv-3", "c", models.RootID, models.KindFile),
	)

	first := s.View(ScopeRoot)
	second := s.View(ScopeRoot)
	assert.Equal(t, ids(first), ids(second))
}

func TestView_LocalRecordsPrepended(t *testing.T) {
	s, _, cache := setupStore(t)
	seed(t, s, cache,
		confirmed("srv-1", "a", "f1", models.KindFile),
		confirmed("srv-2", "b", "f1", models.KindFile),
	)

	local := models.NewFileNode("fresh.txt", "f1", 1, "text/plain")
	s.Register(local)

	view := s.View(Scope("f1"))
	require.Len(t, view, 3)
	assert.Equal(t, local.ID, view[0].ID, "new uploads are immediately visible at the top")
	assert.Equal(t, []string{"srv-1", "srv-2"}, ids(view[1:]), "server order preserved")
}

func TestRegisterConfirm_NoDuplicates(t *testing.T) {
	s, _, _ := setupStore(t)

	local := models.NewFileNode("up.bin", "f1", 10, "application/octet-stream")
	s.Register(local)

	view := s.View(Scope("f1"))
	require.Len(t, view, 1)
	assert.Equal(t, models.StatePendingUpload, view[0].SyncState)

	s.Confirm(local.ID, confirmed("srv-9", "up.bin", "f1", models.KindFile))

	view = s.View(Scope("f1"))
	require.Len(t, view, 1, "placeholder and authoritative record never coexist")
	assert.Equal(t, "srv-9", view[0].ID)
	assert.Equal(t, models.StateSynced, view[0].SyncState)
}

func TestFail_KeepsRecordVisible(t *testing.T) {
	s, _, _ := setupStore(t)

	local := models.NewFileNode("bad.bin", "f1", 1, "x")
	s.Register(local)
	s.Fail(local.ID, "quota exceeded")

	view := s.View(Scope("f1"))
	require.Len(t, view, 1)
	assert.Equal(t, models.StateError, view[0].SyncState)
	assert.Equal(t, "quota exceeded", view[0].SyncError)
}

func TestApplyOptimistic_CreateFolderConfirmed(t *testing.T) {
	s, _, cache := setupStore(t)
	ctx := context.Background()

	node, err := s.ApplyOptimistic(ctx, models.Mutation{
		Op: models.OpCreateFolder, Name: "docs", ParentID: models.RootID,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-folder-1", node.ID)

	view := s.View(ScopeRoot)
	require.Len(t, view, 1)
	assert.Equal(t, "srv-folder-1", view[0].ID)

	got, err := cache.Get(ctx, "srv-folder-1")
	require.NoError(t, err)
	assert.True(t, got.IsFolder())
}

func TestApplyOptimistic_RollbackOnRejection(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	seed(t, s, cache, confirmed("srv-1", "old name", models.RootID, models.KindFile))

	svc.renameErr = fmt.Errorf("%w: name not allowed", common.ErrValidation)
	_, err := s.ApplyOptimistic(ctx, models.Mutation{
		Op: models.OpRename, ID: "srv-1", NewName: "new name",
	})
	require.ErrorIs(t, err, common.ErrValidation)

	got, gerr := s.Get("srv-1")
	require.NoError(t, gerr)
	assert.Equal(t, "old name", got.Name, "rejected mutation is rolled back")
}

func TestApplyOptimistic_ConflictForcesRefresh(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	seed(t, s, cache, confirmed("srv-1", "a", models.RootID, models.KindFile))

	svc.renameErr = fmt.Errorf("%w: concurrent change", common.ErrConflict)
	_, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpRename, ID: "srv-1", NewName: "b"})
	require.ErrorIs(t, err, common.ErrConflict)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Contains(t, svc.calls, "list:", "conflict triggers a forced reconciliation fetch")
}

func TestApplyOptimistic_TrashAndRestore(t *testing.T) {
	s, _, cache := setupStore(t)
	ctx := context.Background()

	seed(t, s, cache, confirmed("srv-1", "a", "f1", models.KindFile),
		confirmed("f1", "docs", models.RootID, models.KindFolder))

	_, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpTrash, ID: "srv-1"})
	require.NoError(t, err)

	assert.Empty(t, ids(s.View(Scope("f1"))), "trashed records leave folder views")
	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View(ScopeTrash)))

	cached, err := cache.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.True(t, cached.Trashed)

	_, err = s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpRestore, ID: "srv-1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View(Scope("f1"))))
	assert.Empty(t, s.View(ScopeTrash))
}

func TestApplyOptimistic_TrashOfflineDeferredAndReplayed(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	seed(t, s, cache, confirmed("srv-1", "a", models.RootID, models.KindFile))

	svc.trashErr = fmt.Errorf("%w: connection refused", common.ErrNetwork)
	n, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpTrash, ID: "srv-1"})
	require.NoError(t, err, "offline trash is deferred, not rejected")
	assert.Equal(t, models.StatePendingDelete, n.SyncState)

	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View(ScopeTrash)), "locally trashed right away")

	cached, err := cache.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingDelete, cached.SyncState)

	// Connectivity returns; the deferred delete is replayed.
	svc.trashErr = nil
	require.NoError(t, s.ReplayPendingDeletes(ctx))

	cached, err = cache.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSynced, cached.SyncState)
	assert.True(t, cached.Trashed)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Contains(t, svc.calls, "softdelete:srv-1")
}

func TestRefresh_DoesNotPersistMergeLosers(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	n := confirmed("srv-1", "a", models.RootID, models.KindFile)
	n.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	seed(t, s, cache, n)

	// Trash while offline; the deferred delete lands in the cache.
	svc.trashErr = fmt.Errorf("%w: connection refused", common.ErrNetwork)
	_, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpTrash, ID: "srv-1"})
	require.NoError(t, err)

	// The server still lists the stale, untrashed copy.
	stale := confirmed("srv-1", "a", models.RootID, models.KindFile)
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	svc.listing = &remote.Listing{Files: []*models.Node{stale}}

	require.NoError(t, s.Refresh(ctx, ScopeRoot))

	cached, err := cache.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingDelete, cached.SyncState, "losing server copy must not reach the cache")
	assert.True(t, cached.Trashed)

	pending, err := cache.QueryBySyncState(ctx, models.StatePendingDelete)
	require.NoError(t, err)
	require.Len(t, pending, 1, "deferred delete stays queued for replay")

	// The view and the cache agree: the record is still trashed.
	got, err := s.Get("srv-1")
	require.NoError(t, err)
	assert.True(t, got.Trashed)

	// Connectivity returns; the replay still fires.
	svc.trashErr = nil
	require.NoError(t, s.ReplayPendingDeletes(ctx))
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Contains(t, svc.calls, "softdelete:srv-1")
}

func TestReplayPendingDeletes_StopsOnNetworkFailure(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	n := confirmed("srv-1", "a", models.RootID, models.KindFile)
	n.Trashed = true
	n.SyncState = models.StatePendingDelete
	require.NoError(t, cache.Upsert(ctx, n))

	svc.trashErr = fmt.Errorf("%w: still offline", common.ErrNetwork)
	err := s.ReplayPendingDeletes(ctx)
	require.ErrorIs(t, err, common.ErrNetwork)

	cached, gerr := cache.Get(ctx, "srv-1")
	require.NoError(t, gerr)
	assert.Equal(t, models.StatePendingDelete, cached.SyncState, "stays queued for the next replay")
}

func TestApplyOptimistic_DeleteRemovesRecord(t *testing.T) {
	s, _, cache := setupStore(t)
	ctx := context.Background()

	seed(t, s, cache, confirmed("srv-1", "a", models.RootID, models.KindFile))

	_, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpDelete, ID: "srv-1"})
	require.NoError(t, err)

	_, err = s.Get("srv-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = cache.Get(ctx, "srv-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestApplyOptimistic_MoveValidatesDestination(t *testing.T) {
	s, _, cache := setupStore(t)
	ctx := context.Background()

	parent := confirmed("f1", "parent", models.RootID, models.KindFolder)
	child := confirmed("f2", "child", "f1", models.KindFolder)
	file := confirmed("srv-1", "a", models.RootID, models.KindFile)
	seed(t, s, cache, parent, child, file)

	// Moving into a missing folder is rejected up front.
	_, err := s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpMove, ID: "srv-1", DestFolderID: "nope"})
	require.ErrorIs(t, err, common.ErrValidation)

	// Moving into a file is rejected.
	_, err = s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpMove, ID: "f2", DestFolderID: "srv-1"})
	require.ErrorIs(t, err, common.ErrValidation)

	// A folder may never become its own ancestor.
	_, err = s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpMove, ID: "f1", DestFolderID: "f2"})
	require.ErrorIs(t, err, common.ErrValidation)

	// A legal move lands.
	_, err = s.ApplyOptimistic(ctx, models.Mutation{Op: models.OpMove, ID: "srv-1", DestFolderID: "f2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View(Scope("f2"))))
}

func TestReconcile_LastWriterWins(t *testing.T) {
	s, _, _ := setupStore(t)

	old := confirmed("srv-1", "server old", models.RootID, models.KindFile)
	old.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	s.Reconcile([]*models.Node{old})

	// Local optimistic rename is newer than the stale server payload.
	s.mu.Lock()
	e := s.entries["srv-1"]
	e.node.Name = "local newer"
	e.confirmedAt = time.Now().UTC()
	s.mu.Unlock()

	stale := confirmed("srv-1", "server stale", models.RootID, models.KindFile)
	stale.UpdatedAt = time.Now().UTC().Add(-30 * time.Minute)
	accepted := s.Reconcile([]*models.Node{stale})
	assert.Empty(t, accepted, "losing server copy is not accepted")

	got, err := s.Get("srv-1")
	require.NoError(t, err)
	assert.Equal(t, "local newer", got.Name)

	// A newer server payload wins.
	fresh := confirmed("srv-1", "server fresh", models.RootID, models.KindFile)
	fresh.UpdatedAt = time.Now().UTC().Add(time.Minute)
	accepted = s.Reconcile([]*models.Node{fresh})
	assert.Equal(t, []string{"srv-1"}, ids(accepted))

	got, err = s.Get("srv-1")
	require.NoError(t, err)
	assert.Equal(t, "server fresh", got.Name)
}

func TestReconcile_TieFavorsServer(t *testing.T) {
	s, _, _ := setupStore(t)

	at := time.Now().UTC().Truncate(time.Second)

	local := confirmed("srv-1", "local", models.RootID, models.KindFile)
	local.UpdatedAt = at
	s.Reconcile([]*models.Node{local})

	server := confirmed("srv-1", "server", models.RootID, models.KindFile)
	server.UpdatedAt = at
	s.Reconcile([]*models.Node{server})

	got, err := s.Get("srv-1")
	require.NoError(t, err)
	assert.Equal(t, "server", got.Name)
}

func TestLoad_RebuildsFromCache(t *testing.T) {
	s, _, cache := setupStore(t)
	ctx := context.Background()

	require.NoError(t, cache.Upsert(ctx, confirmed("srv-1", "a", models.RootID, models.KindFile)))
	trashed := confirmed("srv-2", "b", models.RootID, models.KindFile)
	trashed.Trashed = true
	require.NoError(t, cache.Upsert(ctx, trashed))

	require.NoError(t, s.Load(ctx))

	assert.ElementsMatch(t, []string{"srv-1"}, ids(s.View(ScopeRoot)))
	assert.ElementsMatch(t, []string{"srv-2"}, ids(s.View(ScopeTrash)))
}

func TestRefresh_PersistsServerRecords(t *testing.T) {
	s, svc, cache := setupStore(t)
	ctx := context.Background()

	svc.listing = &remote.Listing{
		Folders: []*models.Node{confirmed("f1", "docs", models.RootID, models.KindFolder)},
		Files:   []*models.Node{confirmed("srv-1", "a", models.RootID, models.KindFile)},
	}

	require.NoError(t, s.Refresh(ctx, ScopeRoot))

	assert.Len(t, s.View(ScopeRoot), 2)
	_, err := cache.Get(ctx, "f1")
	require.NoError(t, err)
	_, err = cache.Get(ctx, "srv-1")
	require.NoError(t, err)
}
