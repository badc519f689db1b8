package upload

import (
	"sync"

	"github.com/nexuscloud/drivesync/internal/client/models"
)

// eventBus fans progress events out to the single subscriber without ever
// blocking a worker. Events are buffered in order of publication, so per-task
// ordering is exactly production order.
type eventBus struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []models.ProgressEvent
	closed  bool

	out chan models.ProgressEvent
}

func newEventBus() *eventBus {
	b := &eventBus{out: make(chan models.ProgressEvent)}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

func (b *eventBus) Publish(e models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending = append(b.pending, e)
	b.cond.Signal()
}

func (b *eventBus) Events() <-chan models.ProgressEvent {
	return b.out
}

func (b *eventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cond.Signal()
}

func (b *eventBus) dispatch() {
	for {
		b.mu.Lock()
		for len(b.pending) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.pending) == 0 && b.closed {
			b.mu.Unlock()
			close(b.out)
			return
		}
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, e := range batch {
			b.out <- e
		}
	}
}
