package playback

import (
	"context"
	"time"

	"github.com/lexiqai/voice-sampler/internal/audio"
)

// DiscardOutput accepts playback without producing sound. A handle stays
// active for the buffer's duration so preemption behaves as on real outputs.
type DiscardOutput struct{}

// NewDiscardOutputFactory returns a factory for headless deployments
func NewDiscardOutputFactory() OutputFactory {
	return func() (Output, error) {
		return &DiscardOutput{}, nil
	}
}

func (d *DiscardOutput) Suspended() bool { return false }

func (d *DiscardOutput) Resume(ctx context.Context) error { return nil }

func (d *DiscardOutput) Start(ctx context.Context, buf *audio.Buffer) (Handle, error) {
	h := &discardHandle{baseHandle: newBaseHandle()}
	go func() {
		defer h.finish()
		timer := time.NewTimer(buf.Duration())
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-h.stopCh:
		}
	}()
	return h, nil
}

func (d *DiscardOutput) Close() error { return nil }
