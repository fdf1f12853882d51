package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/audio"
	"github.com/lexiqai/voice-sampler/internal/observability"
)

// ExecOutput plays audio by piping interleaved PCM16 into an external
// player process, one process per playback
type ExecOutput struct {
	args   []string
	logger zerolog.Logger
}

// NewExecOutputFactory parses the player command line. The factory fails
// with ErrUnsupportedPlatform when the player binary cannot be found.
func NewExecOutputFactory(command string, logger zerolog.Logger) OutputFactory {
	return func() (Output, error) {
		parser := shellwords.NewParser()
		args, err := parser.Parse(command)
		if err != nil {
			return nil, fmt.Errorf("parse player command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: player command empty", ErrUnsupportedPlatform)
		}
		if _, err := exec.LookPath(args[0]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
		}
		return &ExecOutput{
			args:   args,
			logger: logger.With().Str("output", "exec").Str("player", args[0]).Logger(),
		}, nil
	}
}

func (e *ExecOutput) Suspended() bool { return false }

func (e *ExecOutput) Resume(ctx context.Context) error { return nil }

// Start launches the player. The process is deliberately not bound to ctx:
// playback outlives the request that started it.
func (e *ExecOutput) Start(ctx context.Context, buf *audio.Buffer) (Handle, error) {
	cmd := exec.Command(e.args[0], e.args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	h := &execHandle{baseHandle: newBaseHandle(), cmd: cmd}
	pcm := audio.EncodePCM16(buf)

	go func() {
		n, err := io.Copy(stdin, bytes.NewReader(pcm))
		stdin.Close()
		observability.RecordAudioOut(int(n))
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			e.logger.Debug().Err(err).Str("handle_id", h.ID()).Msg("Player stopped reading")
		}
	}()

	go func() {
		defer h.finish()
		err := cmd.Wait()
		select {
		case <-h.stopCh:
			return
		default:
		}
		if err != nil {
			observability.RecordError("player_exit", "playback")
			e.logger.Warn().
				Err(err).
				Str("handle_id", h.ID()).
				Str("stderr", stderr.String()).
				Msg("Player exited with error")
		}
	}()

	return h, nil
}

func (e *ExecOutput) Close() error { return nil }

type execHandle struct {
	*baseHandle
	cmd *exec.Cmd
}

// Stop kills the player process and waits for it to exit
func (h *execHandle) Stop() error {
	if !h.requestStop() {
		<-h.done
		return nil
	}
	var err error
	if h.cmd.Process != nil {
		err = h.cmd.Process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
	}
	<-h.done
	return err
}
