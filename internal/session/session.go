// Package session coordinates one recording session: the speech stream
// source, the transcript accumulator, the auto-fill reconciler, persistence,
// and event publishing.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/events"
	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"
	"clinical-scribe-service/internal/service/asr"
	"clinical-scribe-service/internal/service/autofill"
	"clinical-scribe-service/internal/service/extract"
	"clinical-scribe-service/internal/service/transcript"
	"clinical-scribe-service/internal/service/translate"
	"clinical-scribe-service/internal/store"
)

// ErrStopped is returned when audio arrives for a stopped session.
var ErrStopped = fmt.Errorf("session is stopped")

// Session is one live recording. It owns the form snapshot: the reconciler
// writes into it only through the update callback, and manual edits come in
// through ManualEdit, which latches the override in the same operation.
type Session struct {
	ID       string
	FormType models.FormType

	source    asr.Source
	acc       *transcript.Accumulator
	rec       *autofill.Reconciler
	publisher *events.Publisher
	store     *store.Store
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	chunkSize int
	startedAt time.Time

	mu          sync.Mutex
	formState   map[string]any
	diarized    []models.DiarizedSegment
	chunkedUpTo int
	nextChunk   int
	stopped     bool

	runDone sync.WaitGroup
}

// Config carries the dependencies a session needs.
type Config struct {
	ID                 string
	FormType           models.FormType
	PatientContext     map[string]any
	Source             asr.Source
	Extractor          extract.Extractor
	Translator         translate.Translator
	TranslationEnabled bool
	Publisher          *events.Publisher
	Store              *store.Store
	SegmentsPerChunk   int
}

// New builds a session. Call Start to open the stream.
func New(cfg Config) *Session {
	s := &Session{
		ID:        cfg.ID,
		FormType:  cfg.FormType,
		source:    cfg.Source,
		publisher: cfg.Publisher,
		store:     cfg.Store,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithSession(cfg.ID, cfg.FormType.String()),
		chunkSize: cfg.SegmentsPerChunk,
		formState: make(map[string]any),
	}
	if s.chunkSize <= 0 {
		s.chunkSize = 4
	}

	s.acc = transcript.NewAccumulator(cfg.ID, cfg.Translator, cfg.TranslationEnabled)
	s.rec = autofill.NewReconciler(
		cfg.ID,
		cfg.Extractor,
		cfg.FormType,
		cfg.PatientContext,
		s.FormSnapshot,
		s.applyUpdate,
	)
	return s
}

// Start opens the speech stream and begins consuming events.
func (s *Session) Start(ctx context.Context) error {
	eventsCh, err := s.source.Start(ctx)
	if err != nil {
		return fmt.Errorf("start speech stream: %w", err)
	}

	s.startedAt = time.Now()
	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("Recording session started")

	s.runDone.Add(1)
	go func() {
		defer s.runDone.Done()
		s.acc.Run(ctx, eventsCh, s.handleCommitted)
	}()
	return nil
}

// SendAudio forwards an audio frame to the stream source.
func (s *Session) SendAudio(ctx context.Context, audio []byte) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	return s.source.SendAudio(ctx, audio)
}

// handleCommitted runs on the event-consumer goroutine after each committed
// segment is absorbed: it extends the diarized transcript, publishes the
// committed event, and cuts a chunk when the boundary is reached.
func (s *Session) handleCommitted(ev asr.Event) {
	seg := models.DiarizedSegment{
		Speaker:       speakerRole(ev.Speaker),
		Text:          ev.Text,
		LanguageCode:  ev.LanguageCode,
		SequenceIndex: ev.SequenceIndex,
	}

	s.mu.Lock()
	s.diarized = append(s.diarized, seg)
	chunk, chunkIndex, ready := s.cutChunkLocked(false)
	s.mu.Unlock()

	s.publishTranscript(seg)

	if ready {
		go s.rec.ProcessChunk(context.Background(), chunk, chunkIndex)
	}
}

// cutChunkLocked returns the next chunk of not-yet-dispatched segments if
// the boundary is reached (or unconditionally on final flush). Caller holds
// s.mu.
func (s *Session) cutChunkLocked(final bool) ([]models.DiarizedSegment, int, bool) {
	pending := len(s.diarized) - s.chunkedUpTo
	if pending <= 0 || (!final && pending < s.chunkSize) {
		return nil, 0, false
	}

	chunk := make([]models.DiarizedSegment, pending)
	copy(chunk, s.diarized[s.chunkedUpTo:])
	s.chunkedUpTo = len(s.diarized)
	chunkIndex := s.nextChunk
	s.nextChunk++
	return chunk, chunkIndex, true
}

// Stop ends the session: closes the stream (which flushes any trailing
// partial into the transcript), dispatches the remaining segments as a final
// chunk, and persists the finished session. In-flight extraction calls are
// left to complete; their results still pass the override filter when they
// land.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if err := s.source.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing speech stream")
	}

	// Wait for the event loop to drain; the stream close promoted any
	// trailing partial into a committed segment.
	s.runDone.Wait()

	snapshot := s.acc.Snapshot()

	s.mu.Lock()
	// A partial promoted on close has no diarized stream event; absorb it
	// with an unknown speaker so the final chunk carries it.
	for i := len(s.diarized); i < len(snapshot.CommittedOriginal); i++ {
		s.diarized = append(s.diarized, models.DiarizedSegment{
			Speaker:       models.SpeakerUnknown,
			Text:          snapshot.CommittedOriginal[i],
			SequenceIndex: i,
		})
	}
	chunk, chunkIndex, ready := s.cutChunkLocked(true)
	s.mu.Unlock()

	if ready {
		go s.rec.ProcessChunk(context.Background(), chunk, chunkIndex)
	}

	lastError := s.rec.LastError()
	if lastError == "" {
		lastError = s.acc.LastError()
	}

	if err := s.store.FinishSession(
		ctx, s.ID, s.acc.Language(),
		snapshot.FullText(), snapshot.OriginalFullText(), lastError,
	); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist finished session")
		return err
	}

	s.metrics.RecordSessionEnd(time.Since(s.startedAt).Seconds())
	s.logger.Info().
		Int("segments", len(snapshot.Committed)).
		Int("chunks", s.nextChunk).
		Msg("Recording session stopped")
	return nil
}

// ManualEdit sets a field value and latches it as manually overridden in the
// same operation. From this point on auto-fill can never touch the field.
func (s *Session) ManualEdit(ctx context.Context, fieldPath string, value any) error {
	s.mu.Lock()
	s.formState = autofill.ApplyFieldUpdates(s.formState, map[string]any{fieldPath: value})
	s.mu.Unlock()

	s.rec.MarkManualOverride(fieldPath)

	if err := s.store.SaveOverride(ctx, s.ID, fieldPath); err != nil {
		s.logger.Error().Err(err).Str("fieldPath", fieldPath).Msg("Failed to persist manual override")
		return err
	}
	return nil
}

// MarkManualOverride latches a field without changing its value. Used when
// the caller has already written the value itself.
func (s *Session) MarkManualOverride(ctx context.Context, fieldPath string) error {
	s.rec.MarkManualOverride(fieldPath)
	if err := s.store.SaveOverride(ctx, s.ID, fieldPath); err != nil {
		s.logger.Error().Err(err).Str("fieldPath", fieldPath).Msg("Failed to persist manual override")
		return err
	}
	return nil
}

// applyUpdate is the reconciler's update callback: merge the filtered field
// updates into the form snapshot, persist them, and publish the event.
func (s *Session) applyUpdate(u autofill.Update) {
	s.mu.Lock()
	s.formState = autofill.ApplyFieldUpdates(s.formState, u.FieldUpdates)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.store.SaveFieldUpdates(ctx, s.ID, u.ChunkIndex, u.FieldUpdates, u.ConfidenceScores); err != nil {
		s.logger.Error().Err(err).Int("chunkIndex", u.ChunkIndex).Msg("Failed to persist field updates")
	}

	ev := models.FieldUpdatesApplied{
		EventType:        "clinical.autofill.updates",
		SessionID:        s.ID,
		FormType:         s.FormType.String(),
		Timestamp:        time.Now().UnixMilli(),
		ChunkIndex:       u.ChunkIndex,
		FieldUpdates:     u.FieldUpdates,
		ConfidenceScores: u.ConfidenceScores,
	}
	if err := s.publisher.PublishFieldUpdates(ctx, s.ID, ev); err != nil {
		s.logger.Warn().Err(err).Int("chunkIndex", u.ChunkIndex).Msg("Failed to publish field updates")
	}
}

func (s *Session) publishTranscript(seg models.DiarizedSegment) {
	ev := models.TranscriptCommitted{
		EventType:     "clinical.transcript.committed",
		SessionID:     s.ID,
		FormType:      s.FormType.String(),
		Timestamp:     time.Now().UnixMilli(),
		Speaker:       string(seg.Speaker),
		SequenceIndex: seg.SequenceIndex,
		Text:          seg.Text,
		LanguageCode:  seg.LanguageCode,
	}
	if err := s.publisher.PublishTranscript(context.Background(), s.ID, ev); err != nil {
		s.logger.Warn().Err(err).Int("sequenceIndex", seg.SequenceIndex).Msg("Failed to publish transcript segment")
	}
}

// FormSnapshot returns the current form state. The tree is copy-on-write, so
// the returned map is safe to read concurrently with later merges.
func (s *Session) FormSnapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formState
}

// Transcript returns the current canonical and original-language transcripts.
func (s *Session) Transcript() (full, original string) {
	snapshot := s.acc.Snapshot()
	return snapshot.FullText(), snapshot.OriginalFullText()
}

// LastError returns the most recent session-level error, if any.
func (s *Session) LastError() string {
	if err := s.rec.LastError(); err != "" {
		return err
	}
	return s.acc.LastError()
}

// Overrides returns the manually overridden field paths.
func (s *Session) Overrides() []string {
	return s.rec.Overrides()
}

// AutoFilled returns the untouched auto-filled field paths.
func (s *Session) AutoFilled() []string {
	return s.rec.AutoFilled()
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func speakerRole(s string) models.SpeakerRole {
	switch models.SpeakerRole(s) {
	case models.SpeakerClinician, models.SpeakerPatient:
		return models.SpeakerRole(s)
	}
	return models.SpeakerUnknown
}
