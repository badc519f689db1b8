package models

// MutationOp enumerates the optimistic mutations the store understands.
type MutationOp string

const (
	OpCreateFolder MutationOp = "create_folder"
	OpRename       MutationOp = "rename"
	OpMove         MutationOp = "move"
	OpTrash        MutationOp = "trash"
	OpRestore      MutationOp = "restore"
	OpDelete       MutationOp = "delete"
	OpStar         MutationOp = "star"
)

// Mutation describes one optimistic change. Only the fields required by Op
// are read; the rest stay zero.
type Mutation struct {
	Op MutationOp

	// Target record; empty for OpCreateFolder.
	ID string

	// OpCreateFolder.
	Name     string
	ParentID string

	// OpRename.
	NewName string

	// OpMove.
	DestFolderID string

	// OpStar.
	Starred bool
}
