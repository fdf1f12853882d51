// Package playback owns the audio output and the single active playback.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/audio"
	"github.com/lexiqai/voice-sampler/internal/observability"
)

// ErrUnsupportedPlatform is returned when no audio output can be created
var ErrUnsupportedPlatform = errors.New("audio output is not supported on this host")

// Handle is one sound-producing playback
type Handle interface {
	ID() string
	// Stop ends playback abruptly; stopping twice is a no-op
	Stop() error
	// Done is closed once playback has finished or been stopped
	Done() <-chan struct{}
}

// Output is the audio output context, created once and reused
type Output interface {
	Suspended() bool
	Resume(ctx context.Context) error
	Start(ctx context.Context, buf *audio.Buffer) (Handle, error)
	Close() error
}

// OutputFactory creates the output on first use
type OutputFactory func() (Output, error)

// Controller is the sole owner of the output and of the active handle
type Controller struct {
	factory OutputFactory
	logger  zerolog.Logger

	mu     sync.Mutex
	output Output
	active Handle
}

// NewController creates a controller; the output is not created until needed
func NewController(factory OutputFactory, logger zerolog.Logger) *Controller {
	return &Controller{
		factory: factory,
		logger:  logger.With().Str("component", "playback").Logger(),
	}
}

// outputLocked returns the output, creating it on first use.
// A failed creation is not cached so a later call can try again.
func (c *Controller) outputLocked() (Output, error) {
	if c.output != nil {
		return c.output, nil
	}
	if c.factory == nil {
		return nil, ErrUnsupportedPlatform
	}

	out, err := c.factory()
	if err != nil {
		if errors.Is(err, ErrUnsupportedPlatform) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	c.output = out
	c.logger.Info().Msg("Audio output created")
	return out, nil
}

// Ready reports whether the output exists or can be created
func (c *Controller) Ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.outputLocked()
	return err
}

// Play stops the active playback, if any, then starts buf and records it
// as the active handle. A second call preempts the first without fading.
func (c *Controller) Play(ctx context.Context, buf *audio.Buffer) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.outputLocked()
	if err != nil {
		return nil, err
	}

	if out.Suspended() {
		if err := out.Resume(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to resume audio output")
		}
	}

	if c.active != nil {
		previous := c.active
		c.active = nil
		if err := previous.Stop(); err != nil {
			c.logger.Warn().Err(err).Str("handle_id", previous.ID()).Msg("Failed to stop previous playback")
		}
		observability.IncrementPlaybackPreemptions()
		c.logger.Debug().Str("handle_id", previous.ID()).Msg("Previous playback preempted")
	}

	handle, err := out.Start(ctx, buf)
	if err != nil {
		observability.SetPlaybackActive(false)
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}
	c.active = handle
	observability.SetPlaybackActive(true)

	c.logger.Info().
		Str("handle_id", handle.ID()).
		Int("frames", buf.Frames()).
		Dur("duration", buf.Duration()).
		Msg("Playback started")

	go c.release(handle)

	return handle, nil
}

// release clears the active handle once it finishes, unless it was replaced
func (c *Controller) release(h Handle) {
	<-h.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == h {
		c.active = nil
		observability.SetPlaybackActive(false)
	}
}

// StopCurrent stops and discards the active handle, if any
func (c *Controller) StopCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil
	}
	h := c.active
	c.active = nil
	observability.SetPlaybackActive(false)
	return h.Stop()
}

// Active returns the active handle, if any
func (c *Controller) Active() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != nil
}

// Close stops playback and releases the output
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Stop()
		c.active = nil
		observability.SetPlaybackActive(false)
	}
	if c.output == nil {
		return nil
	}
	err := c.output.Close()
	c.output = nil
	return err
}
