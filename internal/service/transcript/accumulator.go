package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/observability/metrics"
	"clinical-scribe-service/internal/service/asr"
	"clinical-scribe-service/internal/service/translate"
)

// Accumulator owns the TranscriptState for one recording session.
//
// Stream events are applied synchronously and sequentially by the single
// consumer goroutine running Run. Translation responses arrive on their own
// goroutines and are guarded by turn and generation tokens, so a stale
// response never overwrites newer display state.
type Accumulator struct {
	translator translate.Translator
	translated bool
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu          sync.RWMutex
	state       State
	language    string
	partialTurn uint64
	generation  uint64
	lastError   string
}

// NewAccumulator creates an accumulator for one session. The translator is
// used only when translated is true; pass translate.Noop{} otherwise.
func NewAccumulator(sessionId string, translator translate.Translator, translated bool) *Accumulator {
	return &Accumulator{
		translator: translator,
		translated: translated,
		metrics:    metrics.DefaultMetrics,
		logger:     logging.WithComponent("transcript").With().Str("sessionId", sessionId).Logger(),
	}
}

// OnSessionStarted records the detected language for the session.
func (a *Accumulator) OnSessionStarted(languageCode string) {
	if languageCode == "" {
		return
	}
	a.mu.Lock()
	a.language = languageCode
	a.mu.Unlock()
}

// OnPartial replaces the current provisional fragment. Each new partial for
// the same turn supersedes the previous one; partials never accumulate.
func (a *Accumulator) OnPartial(ctx context.Context, text, languageCode string) {
	a.mu.Lock()
	a.partialTurn++
	turn := a.partialTurn
	gen := a.generation
	a.state = a.state.WithPartial(text, text)
	a.mu.Unlock()

	a.metrics.RecordPartialSegment()

	if a.translated {
		go a.translatePartial(ctx, text, turn, gen)
	}
}

// OnCommitted appends a finalized segment and clears the partial. Committed
// segments are never rewritten or removed once appended.
func (a *Accumulator) OnCommitted(ctx context.Context, text, languageCode string) {
	a.mu.Lock()
	// A commit ends the turn; any in-flight partial translation is now stale.
	a.partialTurn++
	gen := a.generation
	index := len(a.state.Committed)
	a.state = a.state.WithCommitted(text, text)
	a.mu.Unlock()

	a.metrics.RecordCommittedSegment()

	if a.translated {
		go a.translateCommitted(ctx, text, index, gen)
	}
}

// OnStreamClosed promotes a non-empty trailing partial to a committed
// segment so no trailing speech is lost on abrupt closure.
func (a *Accumulator) OnStreamClosed() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.partialTurn++
	if a.state.Partial != "" || a.state.PartialOriginal != "" {
		a.state = a.state.PromotePartial()
		a.logger.Debug().Msg("Promoted trailing partial on stream close")
	}
}

// OnInputError records a stream-level error. Errors are observational; the
// session keeps processing subsequent events.
func (a *Accumulator) OnInputError(message string) {
	a.mu.Lock()
	a.lastError = message
	a.mu.Unlock()

	a.metrics.RecordStreamError("input_error")
	a.logger.Warn().Str("error", message).Msg("Speech stream reported an error")
}

// Reset clears all transcript state, including the original-language shadow,
// so a prior session's text can never leak into a new one. In-flight
// translation responses for the old generation are discarded on arrival.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.partialTurn++
	a.state = State{}
	a.lastError = ""
}

// Snapshot returns a copy of the current transcript state.
func (a *Accumulator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// FullText returns the current canonical transcript.
func (a *Accumulator) FullText() string {
	return a.Snapshot().FullText()
}

// OriginalFullText returns the source-language transcript.
func (a *Accumulator) OriginalFullText() string {
	return a.Snapshot().OriginalFullText()
}

// Language returns the detected session language.
func (a *Accumulator) Language() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.language
}

// LastError returns the most recent stream error message, if any.
func (a *Accumulator) LastError() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastError
}

// translatePartial translates a provisional fragment off the event path.
// The response applies only if no newer partial or commit has arrived.
func (a *Accumulator) translatePartial(ctx context.Context, text string, turn, gen uint64) {
	start := time.Now()
	translated, err := a.translator.Translate(ctx, text)
	a.metrics.RecordTranslation(err != nil, time.Since(start).Seconds())
	if err != nil {
		// The untranslated original is already in place; keep it.
		a.logger.Debug().Err(err).Msg("Partial translation failed, keeping original text")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen || a.partialTurn != turn {
		a.metrics.RecordStaleTranslation()
		return
	}
	a.state = a.state.ReplacePartialDisplay(translated)
}

// translateCommitted translates a committed segment off the event path. The
// committed index is stable (append-only), so the response addresses its
// slot directly; only a Reset invalidates it.
func (a *Accumulator) translateCommitted(ctx context.Context, text string, index int, gen uint64) {
	start := time.Now()
	translated, err := a.translator.Translate(ctx, text)
	a.metrics.RecordTranslation(err != nil, time.Since(start).Seconds())
	if err != nil {
		a.logger.Debug().Err(err).Int("index", index).Msg("Segment translation failed, keeping original text")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		a.metrics.RecordStaleTranslation()
		return
	}
	a.state = a.state.ReplaceCommittedDisplay(index, translated)
}

// Run consumes the stream event channel one event at a time until it closes,
// preserving the single-consumer ordering guarantee. onCommitted, when
// non-nil, is invoked after each committed segment is absorbed; the session
// uses it for diarization, chunk handoff, and event publishing.
func (a *Accumulator) Run(ctx context.Context, events <-chan asr.Event, onCommitted func(asr.Event)) {
	for ev := range events {
		switch ev.Kind {
		case asr.KindSessionStarted:
			a.OnSessionStarted(ev.LanguageCode)
		case asr.KindPartial:
			a.OnPartial(ctx, ev.Text, ev.LanguageCode)
		case asr.KindCommitted:
			a.OnCommitted(ctx, ev.Text, ev.LanguageCode)
			if onCommitted != nil {
				onCommitted(ev)
			}
		case asr.KindInputError:
			a.OnInputError(ev.ErrMessage)
		case asr.KindClosed:
			a.OnStreamClosed()
		default:
			a.logger.Warn().Int("kind", int(ev.Kind)).Msg("Skipping unrecognized stream event")
		}
	}
}
