package playback

import (
	"sync"

	"github.com/google/uuid"
)

// baseHandle tracks the stop request and completion of one playback.
// Outputs embed it and watch stopCh.
type baseHandle struct {
	id       string
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

func newBaseHandle() *baseHandle {
	return &baseHandle{
		id:     uuid.New().String(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (h *baseHandle) ID() string {
	return h.id
}

func (h *baseHandle) Done() <-chan struct{} {
	return h.done
}

// requestStop signals the playback goroutine; it reports whether this call did it
func (h *baseHandle) requestStop() bool {
	stopped := false
	h.stopOnce.Do(func() {
		close(h.stopCh)
		stopped = true
	})
	return stopped
}

func (h *baseHandle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

// discardHandle completes after the buffer's duration without producing sound
type discardHandle struct {
	*baseHandle
}

func (h *discardHandle) Stop() error {
	h.requestStop()
	<-h.done
	return nil
}
