// Package http exposes the session API over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/session"
	"clinical-scribe-service/internal/store"
)

// maxAudioFrameBytes bounds a single audio POST body.
const maxAudioFrameBytes = 1 << 20

// Handler serves the session API.
type Handler struct {
	manager *session.Manager
	store   *store.Store
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(manager *session.Manager, st *store.Store) http.Handler {
	h := &Handler{manager: manager, store: st}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Post("/{sessionID}/audio", h.sendAudio)
		r.Post("/{sessionID}/stop", h.stopSession)
		r.Put("/{sessionID}/fields", h.manualEdit)
		r.Get("/{sessionID}", h.getSession)
	})

	return r
}

type startSessionRequest struct {
	FormType       string         `json:"form_type"`
	PatientContext map[string]any `json:"patient_context"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	formType, err := models.ParseFormType(req.FormType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.manager.StartSession(r.Context(), formType, req.PatientContext)
	if err != nil {
		logger := logging.WithComponent("http")
		logger.Error().Err(err).Msg("Failed to start session")
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: s.ID})
}

func (h *Handler) sendAudio(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioFrameBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio body")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio frame")
		return
	}

	if err := s.SendAudio(r.Context(), audio); err != nil {
		if errors.Is(err, session.ErrStopped) {
			writeError(w, http.StatusConflict, "session is stopped")
			return
		}
		logger := logging.WithComponent("http")
		logger.Warn().Err(err).Str("sessionId", s.ID).Msg("Audio forward failed")
		writeError(w, http.StatusBadGateway, "failed to forward audio")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	if err := s.Stop(r.Context()); err != nil {
		logger := logging.WithComponent("http")
		logger.Error().Err(err).Str("sessionId", s.ID).Msg("Failed to stop session")
		writeError(w, http.StatusInternalServerError, "failed to stop session")
		return
	}

	h.writeSessionView(w, s)
}

type manualEditRequest struct {
	FieldPath string `json:"field_path"`
	Value     any    `json:"value"`
}

func (h *Handler) manualEdit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	var req manualEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FieldPath == "" {
		writeError(w, http.StatusBadRequest, "field_path is required")
		return
	}

	if err := s.ManualEdit(r.Context(), req.FieldPath, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record manual edit")
		return
	}

	h.writeSessionView(w, s)
}

// sessionView is the read model for a session: transcript, form snapshot,
// auto-fill bookkeeping, and the most recent session-level error.
type sessionView struct {
	SessionID          string         `json:"session_id"`
	FormType           string         `json:"form_type"`
	Transcript         string         `json:"transcript"`
	OriginalTranscript string         `json:"original_transcript,omitempty"`
	FormState          map[string]any `json:"form_state"`
	AutoFilledFields   []string       `json:"auto_filled_fields"`
	ManualOverrides    []string       `json:"manual_overrides"`
	Stopped            bool           `json:"stopped"`
	LastError          string         `json:"last_error,omitempty"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if s, err := h.manager.Get(id); err == nil {
		h.writeSessionView(w, s)
		return
	}

	// Not live; fall back to the store for finished sessions.
	rec, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logger := logging.WithComponent("http")
		logger.Error().Err(err).Str("sessionId", id).Msg("Failed to load session")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, sessionView{
		SessionID:          rec.ID,
		FormType:           rec.FormType,
		Transcript:         rec.Transcript,
		OriginalTranscript: rec.OriginalTranscript,
		Stopped:            rec.EndedAt != nil,
		LastError:          rec.LastError,
	})
}

func (h *Handler) liveSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, err := h.manager.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (h *Handler) writeSessionView(w http.ResponseWriter, s *session.Session) {
	full, original := s.Transcript()
	view := sessionView{
		SessionID:        s.ID,
		FormType:         s.FormType.String(),
		Transcript:       full,
		FormState:        s.FormSnapshot(),
		AutoFilledFields: s.AutoFilled(),
		ManualOverrides:  s.Overrides(),
		Stopped:          s.Stopped(),
		LastError:        s.LastError(),
	}
	if original != full {
		view.OriginalTranscript = original
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
