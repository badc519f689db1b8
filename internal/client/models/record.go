// Package models defines the client-side data model: file and folder records,
// their sync-state machine, upload tasks and optimistic mutations.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RootID is the sentinel parent identifier for top-level records.
const RootID = ""

// placeholderPrefix marks identifiers minted on this device before the
// server has confirmed the record.
const placeholderPrefix = "local-"

// Kind tags a Node as a file or a folder. Consumers must switch on Kind
// rather than probing optional fields.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// SyncState is the lifecycle stage of a record with respect to the remote
// service.
type SyncState string

const (
	StatePendingUpload SyncState = "pending_upload"
	StateUploading     SyncState = "uploading"
	StateSynced        SyncState = "synced"
	StatePendingDelete SyncState = "pending_delete"
	StateError         SyncState = "error"
)

// CanTransition reports whether a record may move from one sync state to
// another. States only move forward along pending_upload → uploading →
// synced, or into error from any non-terminal state. The two exceptions:
// a user-initiated retry re-enters pending_upload from synced or error, and
// the restart recovery pass demotes uploading back to pending_upload.
func CanTransition(from, to SyncState) bool {
	if from == to {
		return false
	}
	switch from {
	case StatePendingUpload:
		return to == StateUploading || to == StateError
	case StateUploading:
		// pending_upload is legal here only via crash recovery.
		return to == StateSynced || to == StateError || to == StatePendingUpload
	case StateSynced:
		return to == StatePendingUpload || to == StatePendingDelete
	case StateError:
		return to == StatePendingUpload
	case StatePendingDelete:
		return to == StateError
	default:
		return false
	}
}

// Node is one entry of the drive tree, file or folder, stored flat with a
// parent pointer. The tree shape is derived by index lookup, never by linked
// nodes.
type Node struct {
	ID       string
	Kind     Kind
	Name     string
	ParentID string // RootID for top-level records
	OwnerID  string

	// File-only fields; zero for folders.
	Size     int64
	MimeType string

	// Folder-only fields; zero for files.
	ChildCount int
	Color      string

	CreatedAt time.Time
	UpdatedAt time.Time

	Trashed bool
	Shared  bool
	Starred bool

	SyncState SyncState
	SyncError string
}

// NewFileNode builds an optimistic file record in pending_upload with a
// locally minted placeholder identifier.
func NewFileNode(name, parentID string, size int64, mimeType string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:        NewPlaceholderID(),
		Kind:      KindFile,
		Name:      name,
		ParentID:  NormalizeID(parentID),
		Size:      size,
		MimeType:  mimeType,
		CreatedAt: now,
		UpdatedAt: now,
		SyncState: StatePendingUpload,
	}
}

// NewFolderNode builds an optimistic folder record in pending_upload with a
// locally minted placeholder identifier.
func NewFolderNode(name, parentID string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:        NewPlaceholderID(),
		Kind:      KindFolder,
		Name:      name,
		ParentID:  NormalizeID(parentID),
		CreatedAt: now,
		UpdatedAt: now,
		SyncState: StatePendingUpload,
	}
}

// Clone returns a deep copy of the node. Nodes only hold value fields, so a
// shallow copy suffices; kept as a method so callers do not depend on that.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// IsFile reports whether the node is tagged as a file.
func (n *Node) IsFile() bool { return n.Kind == KindFile }

// IsFolder reports whether the node is tagged as a folder.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// NewPlaceholderID mints a temporary client-local identifier. Placeholders
// are replaced, never mutated in place, once the server confirms the record.
func NewPlaceholderID() string {
	return placeholderPrefix + uuid.NewString()
}

// IsPlaceholderID reports whether id was minted by NewPlaceholderID.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(NormalizeID(id), placeholderPrefix)
}

// NormalizeID canonicalizes an identifier for comparison. Identifiers arrive
// both as client-local tokens and as server-issued ids with inconsistent
// casing, so all equality checks go through here.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SameID reports whether two identifiers are equal after normalization.
func SameID(a, b string) bool {
	return NormalizeID(a) == NormalizeID(b)
}
