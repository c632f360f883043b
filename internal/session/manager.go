package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/service/asr"
	"clinical-scribe-service/internal/service/extract"
	"clinical-scribe-service/internal/service/translate"
	"clinical-scribe-service/internal/store"
)

// ErrNotFound is returned when no live session has the given ID.
var ErrNotFound = errors.New("session not found")

// SourceFactory builds a fresh speech stream source per session.
type SourceFactory func(sessionID string) (asr.Source, error)

// Manager tracks live recording sessions.
type Manager struct {
	sources            SourceFactory
	extractor          extract.Extractor
	translator         translate.Translator
	translationEnabled bool
	publisher          *events.Publisher
	store              *store.Store
	segmentsPerChunk   int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(
	sources SourceFactory,
	extractor extract.Extractor,
	translator translate.Translator,
	translationEnabled bool,
	publisher *events.Publisher,
	st *store.Store,
	segmentsPerChunk int,
) *Manager {
	return &Manager{
		sources:            sources,
		extractor:          extractor,
		translator:         translator,
		translationEnabled: translationEnabled,
		publisher:          publisher,
		store:              st,
		segmentsPerChunk:   segmentsPerChunk,
		sessions:           make(map[string]*Session),
	}
}

// StartSession creates, persists, and starts a new recording session.
func (m *Manager) StartSession(ctx context.Context, formType models.FormType, patientContext map[string]any) (*Session, error) {
	id := uuid.NewString()

	source, err := m.sources(id)
	if err != nil {
		return nil, fmt.Errorf("create speech source: %w", err)
	}

	if err := m.store.CreateSession(ctx, id, formType.String(), patientContext); err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s := New(Config{
		ID:                 id,
		FormType:           formType,
		PatientContext:     patientContext,
		Source:             source,
		Extractor:          m.extractor,
		Translator:         m.translator,
		TranslationEnabled: m.translationEnabled,
		Publisher:          m.publisher,
		Store:              m.store,
		SegmentsPerChunk:   m.segmentsPerChunk,
	})

	if err := s.Start(ctx); err != nil {
		_ = source.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger := logging.WithComponent("session.manager")
	logger.Info().
		Str("sessionId", id).
		Str("formType", formType.String()).
		Msg("Session registered")
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// StopSession stops a live session. The session stays registered so its
// transcript and form snapshot remain readable.
func (m *Manager) StopSession(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Stop(ctx)
}

// StopAll stops every live session; used during shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		if err := s.Stop(ctx); err != nil {
			logger := logging.WithComponent("session.manager")
			logger.Warn().
				Err(err).
				Str("sessionId", s.ID).
				Msg("Error stopping session during shutdown")
		}
	}
}
