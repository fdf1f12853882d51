// Package api exposes a sampler session over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-sampler/internal/markup"
	"github.com/lexiqai/voice-sampler/internal/playback"
	"github.com/lexiqai/voice-sampler/internal/sampler"
	"github.com/lexiqai/voice-sampler/internal/tts"
)

const maxBodyBytes = 1 << 20

// Handler serves the sampler API for one session
type Handler struct {
	session *sampler.Session
	logger  zerolog.Logger
}

// NewHandler creates the API handler
func NewHandler(session *sampler.Session, logger zerolog.Logger) *Handler {
	return &Handler{
		session: session,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts the API routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/options", h.wrap(h.handleOptions))
	mux.Handle("GET /api/form", h.wrap(h.handleGetForm))
	mux.Handle("PATCH /api/form", h.wrap(h.handlePatchForm))
	mux.Handle("POST /api/form/tags", h.wrap(h.handleInsertTag))
	mux.Handle("POST /api/sample", h.wrap(h.handleSample))
	mux.Handle("POST /api/stop", h.wrap(h.handleStop))
}

// FormPatch is a partial form update; absent fields are left unchanged
type FormPatch struct {
	Text      *string  `json:"text,omitempty"`
	Voice     *string  `json:"voice,omitempty"`
	Pitch     *float64 `json:"pitch,omitempty"`
	Rate      *float64 `json:"rate,omitempty"`
	Emphasis  *string  `json:"emphasis,omitempty"`
	Style     *string  `json:"style,omitempty"`
	AddPauses *bool    `json:"add_pauses,omitempty"`
}

// Commands converts the patch into form commands, in form order
func (p FormPatch) Commands() []sampler.Command {
	var cmds []sampler.Command
	if p.Text != nil {
		cmds = append(cmds, sampler.SetText{Text: *p.Text})
	}
	if p.Voice != nil {
		cmds = append(cmds, sampler.SelectVoice{Voice: *p.Voice})
	}
	if p.Pitch != nil {
		cmds = append(cmds, sampler.SetPitch{Semitones: *p.Pitch})
	}
	if p.Rate != nil {
		cmds = append(cmds, sampler.SetRate{Rate: *p.Rate})
	}
	if p.Emphasis != nil {
		cmds = append(cmds, sampler.SetEmphasis{Emphasis: markup.Emphasis(*p.Emphasis)})
	}
	if p.Style != nil {
		cmds = append(cmds, sampler.SetStyle{Style: markup.Style(*p.Style)})
	}
	if p.AddPauses != nil {
		cmds = append(cmds, sampler.SetPauses{Enabled: *p.AddPauses})
	}
	return cmds
}

// TagRequest inserts a quick tag over the selection [start, end)
type TagRequest struct {
	Tag   string `json:"tag"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sampler.PageOptions())
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Form())
}

func (h *Handler) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	var patch FormPatch
	if err := decodeBody(w, r, &patch, false); err != nil {
		h.writeError(w, r, errBadRequest(err))
		return
	}
	if err := h.applyPatch(r, patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Form())
}

// applyPatch changes every field of the patch or, when one is invalid, none of them
func (h *Handler) applyPatch(r *http.Request, patch FormPatch) error {
	_, err := h.session.Handle(r.Context(), sampler.ApplyForm{Commands: patch.Commands()})
	return err
}

func (h *Handler) handleInsertTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.writeError(w, r, errBadRequest(err))
		return
	}

	result, err := h.session.Handle(r.Context(), sampler.InsertTag{Tag: req.Tag, Start: req.Start, End: req.End})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSample(w http.ResponseWriter, r *http.Request) {
	var patch FormPatch
	if err := decodeBody(w, r, &patch, true); err != nil {
		h.writeError(w, r, errBadRequest(err))
		return
	}
	if err := h.applyPatch(r, patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.session.Handle(r.Context(), sampler.Submit{RequestID: RequestIDFromContext(r.Context())})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Handle(r.Context(), sampler.Stop{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func errBadRequest(err error) error {
	return &badRequestError{err: err}
}

// decodeBody reads a JSON body; an empty body is allowed when optional
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps sampler errors to HTTP statuses
func statusFor(err error) int {
	var transportErr *tts.TransportError
	var badRequest *badRequestError
	switch {
	case errors.As(err, &badRequest),
		errors.Is(err, sampler.ErrEmptyInput),
		errors.Is(err, sampler.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, sampler.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, playback.ErrUnsupportedPlatform):
		return http.StatusServiceUnavailable
	case errors.Is(err, tts.ErrNoAudioData), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := sampler.UserMessage(err)
	var badRequest *badRequestError
	if errors.As(err, &badRequest) {
		message = err.Error()
	}

	logger := LoggerFromContext(r.Context(), h.logger)
	level := zerolog.WarnLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	logger.WithLevel(level).Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
