package autofill

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"
	"clinical-scribe-service/internal/service/extract"
)

// Update is what the Reconciler hands back to its host when a chunk yields
// field values that survived the manual-override filter.
type Update struct {
	FieldUpdates     map[string]any
	ConfidenceScores map[string]float64
	ChunkIndex       int
}

// UpdateCallback receives override-filtered field updates. The host owns the
// form values; the Reconciler never writes them directly.
type UpdateCallback func(Update)

// SnapshotFunc returns the host's current form state, sent along with each
// extraction request so the model fills fields consistently.
type SnapshotFunc func() map[string]any

// Reconciler converts transcript chunks into form-field updates via the
// extraction service. One Reconciler owns the AutoFillState for one form.
//
// Chunk results may complete out of dispatch order; that is safe because the
// merge is keyed by field path and guarded by the override set, not by chunk
// sequence.
type Reconciler struct {
	sessionId      string
	extractor      extract.Extractor
	formType       models.FormType
	patientContext map[string]any
	snapshot       SnapshotFunc
	onUpdate       UpdateCallback
	metrics        *metrics.Metrics
	logger         zerolog.Logger

	mu        sync.Mutex
	fields    *FieldState
	chunks    map[int]ChunkStatus
	lastError string
}

// NewReconciler creates a reconciler for one form.
func NewReconciler(
	sessionId string,
	extractor extract.Extractor,
	formType models.FormType,
	patientContext map[string]any,
	snapshot SnapshotFunc,
	onUpdate UpdateCallback,
) *Reconciler {
	return &Reconciler{
		sessionId:      sessionId,
		extractor:      extractor,
		formType:       formType,
		patientContext: patientContext,
		snapshot:       snapshot,
		onUpdate:       onUpdate,
		metrics:        metrics.DefaultMetrics,
		fields:         NewFieldState(),
		chunks:         make(map[int]ChunkStatus),
		logger:         logging.WithSession(sessionId, formType.String()),
	}
}

// ProcessChunk dispatches one transcript chunk to the extraction service and
// merges the response into the form via the update callback.
//
// If the chunk index is already IN_FLIGHT or DONE the call is a silent no-op:
// duplicate dispatch from a retry or replay is suppressed, not an error. The
// chunk is marked DONE whether the extraction call succeeds or fails, so a
// retry must use a new chunk index.
func (r *Reconciler) ProcessChunk(ctx context.Context, segments []models.DiarizedSegment, chunkIndex int) {
	logger := logging.WithChunk(r.sessionId, chunkIndex)

	r.mu.Lock()
	if status, ok := r.chunks[chunkIndex]; ok && status != ChunkPending {
		r.mu.Unlock()
		r.metrics.RecordChunkSuppressed()
		logger.Debug().
			Str("status", status.String()).
			Msg("Duplicate chunk dispatch suppressed")
		return
	}
	r.chunks[chunkIndex] = ChunkInFlight
	r.mu.Unlock()

	r.metrics.RecordChunkDispatched()

	req := extract.Request{
		DiarizedSegments: segments,
		FormType:         r.formType,
		PatientContext:   r.patientContext,
		CurrentFormState: r.snapshot(),
		ChunkIndex:       chunkIndex,
	}

	start := time.Now()
	result, err := r.extractor.Extract(ctx, req)
	r.metrics.RecordChunkResult(err, time.Since(start).Seconds())

	if err != nil {
		// Each chunk fails independently; later chunks are unaffected.
		r.mu.Lock()
		r.chunks[chunkIndex] = ChunkDone
		r.lastError = err.Error()
		r.mu.Unlock()

		logger.Warn().Err(err).Msg("Extraction call failed")
		return
	}

	r.mu.Lock()
	r.chunks[chunkIndex] = ChunkDone
	filtered, filteredOut := r.filterLocked(result.FieldUpdates)
	for path := range filtered {
		r.fields.MarkAutoFilled(path)
	}
	r.mu.Unlock()

	r.metrics.RecordFieldUpdates(len(filtered), filteredOut)

	if len(filtered) == 0 {
		logger.Debug().Msg("No field updates survived the override filter")
		return
	}

	scores := make(map[string]float64, len(filtered))
	for path := range filtered {
		if score, ok := result.ConfidenceScores[path]; ok {
			scores[path] = score
		}
	}

	logger.Info().
		Int("fields", len(filtered)).
		Int("filtered", filteredOut).
		Msg("Applying auto-fill field updates")

	r.onUpdate(Update{
		FieldUpdates:     filtered,
		ConfidenceScores: scores,
		ChunkIndex:       chunkIndex,
	})
}

// filterLocked drops every update whose path is manually overridden.
// Caller holds r.mu.
func (r *Reconciler) filterLocked(updates map[string]any) (map[string]any, int) {
	filtered := make(map[string]any, len(updates))
	filteredOut := 0
	for path, value := range updates {
		if r.fields.IsOverridden(path) {
			filteredOut++
			continue
		}
		filtered[path] = value
	}
	return filtered, filteredOut
}

// MarkManualOverride latches a field path as user-edited. From this point on
// no extraction result may alter the field for the remainder of the session.
func (r *Reconciler) MarkManualOverride(path string) {
	r.mu.Lock()
	r.fields.MarkManualOverride(path)
	r.mu.Unlock()

	r.metrics.RecordManualOverride()
	r.logger.Debug().Str("fieldPath", path).Msg("Field latched as manual override")
}

// ChunkState returns the status of a chunk index and whether it is known.
func (r *Reconciler) ChunkState(chunkIndex int) (ChunkStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.chunks[chunkIndex]
	return status, ok
}

// IsOverridden reports whether a path is latched as manually overridden.
func (r *Reconciler) IsOverridden(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.IsOverridden(path)
}

// AutoFilled returns the paths currently holding untouched auto-filled values.
func (r *Reconciler) AutoFilled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.AutoFilled()
}

// Overrides returns the manually overridden paths.
func (r *Reconciler) Overrides() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.Overrides()
}

// LastError returns the most recent extraction failure message, if any.
func (r *Reconciler) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}
