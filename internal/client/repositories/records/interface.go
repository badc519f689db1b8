// Package records implements the local durable cache of file and folder
// records. It is the durability boundary of the client: every writer goes
// through its atomic Upsert/Remove/Replace API, and restart recovery demotes
// interrupted uploads before the queue accepts new work.
package records

import (
	"context"

	"github.com/nexuscloud/drivesync/internal/client/models"
)

// Repository is the persistent record store keyed by identifier, with
// secondary indices on parent folder and sync state so the reconciling store
// can rebuild its view after a cold start without re-fetching everything.
type Repository interface {
	// Upsert inserts or fully replaces one record in a single statement, so
	// a concurrent read never observes a half-updated row.
	Upsert(ctx context.Context, n *models.Node) error

	// Remove deletes the record. Removing an absent id returns
	// common.ErrNotFound.
	Remove(ctx context.Context, id string) error

	// Get returns one record or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Node, error)

	// QueryByFolder returns the non-trashed records whose parent matches
	// folderID (normalized comparison).
	QueryByFolder(ctx context.Context, folderID string) ([]*models.Node, error)

	// QueryTrashed returns every record with the trashed flag set.
	QueryTrashed(ctx context.Context) ([]*models.Node, error)

	// QueryBySyncState returns every record in the given state.
	QueryBySyncState(ctx context.Context, state models.SyncState) ([]*models.Node, error)

	// Replace atomically removes the placeholder row and inserts the
	// authoritative record, so the identifier swap on server confirmation
	// can never duplicate or lose the record.
	Replace(ctx context.Context, placeholderID string, authoritative *models.Node) error

	// RecoverInterrupted demotes every record still in uploading to
	// pending_upload and returns how many rows were demoted. Called once at
	// startup: an interrupted transmission is never assumed complete.
	RecoverInterrupted(ctx context.Context) (int64, error)
}
