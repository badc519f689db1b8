// Package remote abstracts the drive API the sync engine talks to. The
// engine only sees the Service interface; the HTTP implementation mirrors
// the server's REST surface and folds its structured errors into the shared
// sentinel taxonomy so callers can decide retryability with errors.Is.
package remote

import (
	"context"

	"github.com/nexuscloud/drivesync/internal/client/models"
)

// Breadcrumb is one step of the path from the root to a listed folder.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Listing is the server's answer to a folder listing.
type Listing struct {
	Folders     []*models.Node
	Files       []*models.Node
	Breadcrumbs []Breadcrumb
}

// UploadMeta describes an encrypted blob being transmitted. Size is the
// plaintext size shown to the user; the blob itself carries the GCM overhead.
type UploadMeta struct {
	Name     string
	FolderID string
	MimeType string
	Size     int64
	IV       []byte
}

// ProgressFunc receives the transmitted fraction in [0,1]. Implementations
// must call it with non-decreasing values.
type ProgressFunc func(fraction float64)

// Service is the remote drive API consumed by the sync engine. Every method
// returns either a payload matching the client data model or an error from
// the common taxonomy (ErrNetwork, ErrValidation, ErrConflict, ErrNotFound,
// ErrUnauthorized).
type Service interface {
	List(ctx context.Context, folderID string) (*Listing, error)

	// ListShared returns records shared with the current user. The server is
	// trusted to have scoped the results; no client-side ownership check is
	// applied (known trust boundary).
	ListShared(ctx context.Context) ([]*models.Node, error)

	ListTrashed(ctx context.Context) ([]*models.Node, error)

	Create(ctx context.Context, name, parentID string) (*models.Node, error)
	Rename(ctx context.Context, id, newName string) (*models.Node, error)
	Move(ctx context.Context, id, destFolderID string) (*models.Node, error)
	Star(ctx context.Context, id string, starred bool) (*models.Node, error)

	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	Share(ctx context.Context, id, recipient string) error

	// UploadBytes transmits an encrypted blob and returns the authoritative
	// record. onProgress may be nil.
	UploadBytes(ctx context.Context, blob []byte, meta UploadMeta, onProgress ProgressFunc) (*models.Node, error)
}
