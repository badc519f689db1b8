package models

// TaskStatus is the lifecycle stage of an upload task. Tasks are transient
// and never persisted across process restarts; durability lives in the
// record's SyncState.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskUploading TaskStatus = "uploading"
	TaskCompleted TaskStatus = "completed"
	TaskError     TaskStatus = "error"
)

// UploadTask wraps a record being uploaded. The IV is generated once at
// encryption time and owned by the task until confirmation.
type UploadTask struct {
	TaskID   string
	RecordID string // placeholder id of the optimistic record
	Name     string
	FolderID string

	IV       []byte
	Progress int // 0..100, monotonically non-decreasing
	Status   TaskStatus
	Err      string
}

// ProgressEvent is emitted by the upload queue. Events for a given task are
// strictly increasing in Progress and delivered in the order produced; there
// is no cross-task ordering guarantee.
type ProgressEvent struct {
	TaskID   string
	RecordID string
	Progress int
	Status   TaskStatus
	Err      string
}
