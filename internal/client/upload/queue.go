// Package upload drives the concurrent, resumable upload queue: encrypt,
// transmit, await confirmation, with per-task progress and bounded retries.
//
// Tasks run on a small fixed pool of workers. A task's record is mutated
// only by the worker that owns the task, so two tasks never race on the same
// record's sync state.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/client/remote"
	"github.com/nexuscloud/drivesync/internal/client/repositories/records"
	"github.com/nexuscloud/drivesync/internal/common"
	"github.com/nexuscloud/drivesync/internal/cryptox"
	"github.com/nexuscloud/drivesync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Sink is the slice of the reconciling store the queue reports into.
type Sink interface {
	// Register makes an optimistic record visible.
	Register(n *models.Node)
	// Confirm swaps the placeholder for the authoritative record.
	Confirm(placeholderID string, authoritative *models.Node)
	// Fail attaches a failure reason to the record.
	Fail(id, reason string)
}

// Config tunes the queue. Zero values fall back to the defaults below.
type Config struct {
	Workers     int
	MaxAttempts int
	RetryBase   time.Duration
	QueueDepth  int
}

const (
	defaultWorkers     = 3
	defaultMaxAttempts = 4
	defaultRetryBase   = 500 * time.Millisecond
	defaultQueueDepth  = 256
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
	return c
}

type task struct {
	id     string
	src    Source
	node   *models.Node
	cancel context.CancelFunc
	ctx    context.Context

	mu     sync.Mutex
	status models.TaskStatus
	// progress starts at -1 so the first real event (0) still passes the
	// strictly-increasing guard in emit.
	progress int
}

// Queue owns the worker pool. Construct with New, call Start once, Stop to
// drain.
type Queue struct {
	cfg    Config
	log    logging.Logger
	remote remote.Service
	cache  records.Repository
	sink   Sink

	bus   *eventBus
	tasks chan *task

	mu   sync.Mutex
	byID map[string]*task

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, svc remote.Service, cache records.Repository, sink Sink, log logging.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:    cfg,
		log:    log.With("component", "upload_queue"),
		remote: svc,
		cache:  cache,
		sink:   sink,
		bus:    newEventBus(),
		tasks:  make(chan *task, cfg.QueueDepth),
		byID:   make(map[string]*task),
	}
}

// Start launches the workers. ctx bounds the lifetime of every task.
func (q *Queue) Start(ctx context.Context) {
	q.baseCtx, q.stop = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop cancels in-flight tasks, waits for the workers, and closes the event
// stream.
func (q *Queue) Stop() {
	q.stop()
	close(q.tasks)
	q.wg.Wait()
	q.bus.Close()
}

// Events returns the progress stream. Per task, progress values are strictly
// increasing and delivered in the order produced; there is no cross-task
// ordering guarantee.
func (q *Queue) Events() <-chan models.ProgressEvent {
	return q.bus.Events()
}

// Enqueue accepts a file for upload into folderID. It persists an optimistic
// record, registers it with the store, schedules the task, and returns
// immediately.
func (q *Queue) Enqueue(ctx context.Context, src Source, folderID string) (string, error) {
	node := models.NewFileNode(src.Name(), folderID, src.Size(), src.MimeType())

	if err := q.cache.Upsert(ctx, node); err != nil {
		return "", fmt.Errorf("persisting optimistic record: %w", err)
	}
	q.sink.Register(node.Clone())

	t := &task{
		id:       uuid.NewString(),
		src:      src,
		node:     node,
		status:   models.TaskPending,
		progress: -1,
	}
	t.ctx, t.cancel = context.WithCancel(q.baseCtx)

	q.mu.Lock()
	q.byID[t.id] = t
	q.mu.Unlock()

	select {
	case q.tasks <- t:
	default:
		q.mu.Lock()
		delete(q.byID, t.id)
		q.mu.Unlock()
		return "", fmt.Errorf("%w: upload queue is full", common.ErrValidation)
	}

	q.log.Info(ctx, "upload enqueued", "task", t.id, "name", node.Name, "folder", node.ParentID)
	return t.id, nil
}

// Cancel aborts a task that is still pending or uploading. Cancellation is
// cooperative: the task stops at its next suspension point and reports an
// error with a cancellation reason. Partial server-side state is treated as
// untrusted and left to server-side cleanup.
func (q *Queue) Cancel(taskID string) error {
	q.mu.Lock()
	t, ok := q.byID[taskID]
	q.mu.Unlock()
	if !ok {
		return common.ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != models.TaskPending && t.status != models.TaskUploading {
		return fmt.Errorf("%w: task is %s", common.ErrValidation, t.status)
	}
	t.cancel()
	return nil
}

// Retry re-enqueues a failed task. Valid only from the error status; the
// record re-enters pending_upload.
func (q *Queue) Retry(ctx context.Context, taskID string) error {
	q.mu.Lock()
	t, ok := q.byID[taskID]
	q.mu.Unlock()
	if !ok {
		return common.ErrNotFound
	}

	t.mu.Lock()
	if t.status != models.TaskError {
		t.mu.Unlock()
		return fmt.Errorf("%w: task is %s", common.ErrValidation, t.status)
	}
	t.status = models.TaskPending
	t.progress = -1
	t.ctx, t.cancel = context.WithCancel(q.baseCtx)
	t.mu.Unlock()

	node := t.node
	node.SyncState = models.StatePendingUpload
	node.SyncError = ""
	if err := q.cache.Upsert(ctx, node); err != nil {
		return fmt.Errorf("persisting retried record: %w", err)
	}
	q.sink.Register(node.Clone())

	select {
	case q.tasks <- t:
		return nil
	default:
		return fmt.Errorf("%w: upload queue is full", common.ErrValidation)
	}
}

// Recover demotes uploads a previous run left stuck in uploading back to
// pending_upload. Call before Start, on every cold start.
func (q *Queue) Recover(ctx context.Context) (int64, error) {
	return q.cache.RecoverInterrupted(ctx)
}

// ResumePending re-enqueues records the cache holds in pending_upload after
// a restart (RecoverInterrupted has already demoted interrupted uploads).
// resolve maps a record back to its local content; records whose content is
// gone are marked failed rather than silently dropped.
func (q *Queue) ResumePending(ctx context.Context, resolve func(n *models.Node) (Source, error)) error {
	pending, err := q.cache.QueryBySyncState(ctx, models.StatePendingUpload)
	if err != nil {
		return fmt.Errorf("loading pending uploads: %w", err)
	}

	for _, node := range pending {
		src, err := resolve(node)
		if err != nil {
			node.SyncState = models.StateError
			node.SyncError = "original file unavailable: " + err.Error()
			if uerr := q.cache.Upsert(ctx, node); uerr != nil {
				return uerr
			}
			q.sink.Fail(node.ID, node.SyncError)
			continue
		}

		t := &task{
			id:       uuid.NewString(),
			src:      src,
			node:     node,
			status:   models.TaskPending,
			progress: -1,
		}
		t.ctx, t.cancel = context.WithCancel(q.baseCtx)

		q.mu.Lock()
		q.byID[t.id] = t
		q.mu.Unlock()

		q.sink.Register(node.Clone())
		select {
		case q.tasks <- t:
		default:
			return fmt.Errorf("%w: upload queue is full", common.ErrValidation)
		}
	}
	return nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

// run executes one attempt sequence for a task: encrypt → transmit →
// await-confirmation. Retries never interleave with the task's own work.
func (q *Queue) run(t *task) {
	ctx := t.ctx

	if err := ctx.Err(); err != nil {
		q.fail(t, fmt.Errorf("%w: cancelled before start", common.ErrCancelled))
		return
	}

	t.setStatus(models.TaskUploading)
	t.node.SyncState = models.StateUploading
	if err := q.cache.Upsert(ctx, t.node); err != nil {
		q.fail(t, err)
		return
	}
	q.emit(t, 0)

	plaintext, err := t.src.Bytes()
	if err != nil {
		q.fail(t, err)
		return
	}

	key, err := cryptox.GenerateKey()
	if err != nil {
		q.fail(t, err)
		return
	}
	defer common.WipeByteArray(key)

	ciphertext, iv, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		q.fail(t, err)
		return
	}

	meta := remote.UploadMeta{
		Name:     t.node.Name,
		FolderID: t.node.ParentID,
		MimeType: t.node.MimeType,
		Size:     t.node.Size,
		IV:       iv,
	}

	authoritative, err := q.transmit(ctx, t, ciphertext, meta)
	if err != nil {
		q.fail(t, err)
		return
	}

	if err := q.cache.Replace(ctx, t.node.ID, authoritative); err != nil {
		q.fail(t, err)
		return
	}
	q.sink.Confirm(t.node.ID, authoritative.Clone())

	t.setStatus(models.TaskCompleted)
	// 100 is reported only now, after the confirmation round-trip.
	q.emit(t, 100)
	q.log.Info(ctx, "upload confirmed", "task", t.id, "id", authoritative.ID)
}

// transmit sends the blob, retrying transient network failures with
// fibonacci backoff. Validation failures surface immediately.
func (q *Queue) transmit(ctx context.Context, t *task, blob []byte, meta remote.UploadMeta) (*models.Node, error) {
	backoff := retry.WithMaxRetries(uint64(q.cfg.MaxAttempts-1), retry.NewFibonacci(q.cfg.RetryBase))

	var node *models.Node
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := q.remote.UploadBytes(ctx, blob, meta, func(fraction float64) {
			q.emit(t, transportPercent(fraction))
		})
		if err != nil {
			if errors.Is(err, common.ErrNetwork) {
				q.log.Warn(ctx, "transient upload failure, will retry", "task", t.id, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, common.ErrCancelled) {
			return nil, fmt.Errorf("%w: %v", common.ErrCancelled, err)
		}
		return nil, err
	}
	return node, nil
}

// transportPercent maps a transmitted fraction into [0,99]; the final unit
// is reserved for server confirmation.
func transportPercent(fraction float64) int {
	p := int(fraction * 100)
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p
}

// emit publishes a progress event, enforcing strictly increasing progress
// per task. Repeats of the same value (a stalled read, a sub-percent first
// chunk mapping to 0 again) are dropped, not republished.
func (q *Queue) emit(t *task, progress int) {
	t.mu.Lock()
	if progress <= t.progress {
		t.mu.Unlock()
		return
	}
	t.progress = progress
	e := models.ProgressEvent{
		TaskID:   t.id,
		RecordID: t.node.ID,
		Progress: progress,
		Status:   t.status,
	}
	t.mu.Unlock()

	q.bus.Publish(e)
}

// fail marks the task and its record failed, keeping the record visible with
// its reason so the UI can offer a per-item retry. Failed work never
// disappears silently.
func (q *Queue) fail(t *task, cause error) {
	reason := cause.Error()
	if t.ctx.Err() != nil && !errors.Is(cause, common.ErrCancelled) {
		reason = common.ErrCancelled.Error()
	}

	t.setStatus(models.TaskError)

	t.node.SyncState = models.StateError
	t.node.SyncError = reason
	// Persist with a fresh context: the task context is likely cancelled.
	cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.cache.Upsert(cacheCtx, t.node); err != nil {
		q.log.Error(cacheCtx, "failed to persist error state", "task", t.id, "err", err)
	}
	q.sink.Fail(t.node.ID, reason)

	t.mu.Lock()
	progress := t.progress
	if progress < 0 {
		progress = 0
	}
	e := models.ProgressEvent{
		TaskID:   t.id,
		RecordID: t.node.ID,
		Progress: progress,
		Status:   models.TaskError,
		Err:      reason,
	}
	t.mu.Unlock()
	q.bus.Publish(e)

	q.log.Warn(context.Background(), "upload failed", "task", t.id, "reason", reason)
}

func (t *task) setStatus(s models.TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Status reports a task's current status and progress.
func (q *Queue) Status(taskID string) (models.TaskStatus, int, error) {
	q.mu.Lock()
	t, ok := q.byID[taskID]
	q.mu.Unlock()
	if !ok {
		return "", 0, common.ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	progress := t.progress
	if progress < 0 {
		progress = 0
	}
	return t.status, progress, nil
}
