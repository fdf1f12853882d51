package playback

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/audio"
	"github.com/lexiqai/voice-sampler/internal/observability"
)

const (
	defaultChunkDuration = 100 * time.Millisecond
	listenerQueueSize    = 64
	writeWait            = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	// The sampler page is served from any origin during development
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
}

// ControlMessage is a text frame sent to stream listeners.
// Audio itself travels as binary frames of interleaved PCM16.
type ControlMessage struct {
	Type       string `json:"type"` // start, end, stop, resume
	ID         string `json:"id,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Frames     int    `json:"frames,omitempty"`
}

type outbound struct {
	messageType int
	data        []byte
}

type listener struct {
	conn *websocket.Conn
	send chan outbound
	once sync.Once
}

func (l *listener) close() {
	l.once.Do(func() {
		close(l.send)
	})
}

// StreamOutput streams playback to browser listeners over websockets,
// paced in real time so a stop takes effect mid-sentence.
type StreamOutput struct {
	chunkDuration time.Duration
	logger        zerolog.Logger

	mu        sync.Mutex
	listeners map[*listener]struct{}
	suspended bool
	closed    bool
}

// NewStreamOutput creates a hub; mount it as an http.Handler
func NewStreamOutput(logger zerolog.Logger) *StreamOutput {
	return &StreamOutput{
		chunkDuration: defaultChunkDuration,
		logger:        logger.With().Str("output", "stream").Logger(),
		listeners:     make(map[*listener]struct{}),
	}
}

// Factory returns an OutputFactory handing out this hub
func (s *StreamOutput) Factory() OutputFactory {
	return func() (Output, error) {
		return s, nil
	}
}

// ServeHTTP upgrades a listener connection
func (s *StreamOutput) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade playback stream connection")
		return
	}

	l := &listener{conn: conn, send: make(chan outbound, listenerQueueSize)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.listeners[l] = struct{}{}
	// a fresh browser audio context starts suspended
	s.suspended = true
	count := len(s.listeners)
	s.mu.Unlock()

	s.logger.Info().Str("remote_addr", r.RemoteAddr).Int("listeners", count).Msg("Playback listener connected")

	go s.writePump(l)
	s.readPump(l)
}

// readPump discards client frames and detects disconnects
func (s *StreamOutput) readPump(l *listener) {
	defer s.remove(l)
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *StreamOutput) writePump(l *listener) {
	defer l.conn.Close()
	for msg := range l.send {
		l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteMessage(msg.messageType, msg.data); err != nil {
			s.remove(l)
			return
		}
	}
	l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *StreamOutput) remove(l *listener) {
	s.mu.Lock()
	_, ok := s.listeners[l]
	delete(s.listeners, l)
	s.mu.Unlock()
	if ok {
		l.close()
		s.logger.Info().Msg("Playback listener disconnected")
	}
}

// ListenerCount returns the number of connected listeners
func (s *StreamOutput) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// broadcast queues a frame for every listener; slow listeners are dropped
func (s *StreamOutput) broadcast(messageType int, data []byte) {
	s.mu.Lock()
	var slow []*listener
	for l := range s.listeners {
		select {
		case l.send <- outbound{messageType: messageType, data: data}:
		default:
			slow = append(slow, l)
		}
	}
	for _, l := range slow {
		delete(s.listeners, l)
	}
	s.mu.Unlock()

	for _, l := range slow {
		l.close()
		s.logger.Warn().Msg("Dropped slow playback listener")
	}
}

func (s *StreamOutput) broadcastControl(msg ControlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.broadcast(websocket.TextMessage, data)
}

// Suspended reports whether a listener joined since the last resume
func (s *StreamOutput) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// Resume asks listeners to resume their audio contexts
func (s *StreamOutput) Resume(ctx context.Context) error {
	s.mu.Lock()
	s.suspended = false
	s.mu.Unlock()
	s.broadcastControl(ControlMessage{Type: "resume"})
	return nil
}

// Start streams buf to all listeners in real-time chunks
func (s *StreamOutput) Start(ctx context.Context, buf *audio.Buffer) (Handle, error) {
	h := &streamHandle{baseHandle: newBaseHandle()}
	pcm := audio.EncodePCM16(buf)

	chunkBytes := int(s.chunkDuration.Seconds()*float64(buf.SampleRate)) * buf.NumChannels() * 2
	if chunkBytes <= 0 {
		chunkBytes = len(pcm)
	}

	s.broadcastControl(ControlMessage{
		Type:       "start",
		ID:         h.ID(),
		SampleRate: buf.SampleRate,
		Channels:   buf.NumChannels(),
		Frames:     buf.Frames(),
	})

	go func() {
		defer h.finish()

		ticker := time.NewTicker(s.chunkDuration)
		defer ticker.Stop()

		for offset := 0; offset < len(pcm); offset += chunkBytes {
			end := offset + chunkBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			s.broadcast(websocket.BinaryMessage, pcm[offset:end])
			observability.RecordAudioOut(end - offset)

			select {
			case <-h.stopCh:
				s.broadcastControl(ControlMessage{Type: "stop", ID: h.ID()})
				return
			case <-ticker.C:
			}
		}

		s.broadcastControl(ControlMessage{Type: "end", ID: h.ID()})
	}()

	return h, nil
}

// Close disconnects all listeners
func (s *StreamOutput) Close() error {
	s.mu.Lock()
	s.closed = true
	listeners := s.listeners
	s.listeners = make(map[*listener]struct{})
	s.mu.Unlock()

	for l := range listeners {
		l.close()
	}
	return nil
}

type streamHandle struct {
	*baseHandle
}

// Stop halts streaming and waits until listeners have been told
func (h *streamHandle) Stop() error {
	h.requestStop()
	<-h.done
	return nil
}
