// Package mock provides a scripted speech recognition source for testing and
// local development without a provider connection. It simulates realistic
// streaming behavior: progressive partial transcripts per utterance, exactly
// one committed transcript per utterance, and alternating speakers.
package mock

import (
	"context"
	"sync"

	"clinical-scribe-service/internal/service/asr"
)

// SimulatedUtterance is a scripted utterance with progressive partials.
type SimulatedUtterance struct {
	Speaker  string
	Partials []string
	Final    string
}

// DefaultUtterances provides a sample clinical encounter for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Speaker:  "patient",
		Partials: []string{"I've had", "I've had a fever"},
		Final:    "I've had a fever for three days",
	},
	{
		Speaker:  "clinician",
		Partials: []string{"Any other", "Any other symptoms"},
		Final:    "Any other symptoms like cough or headache",
	},
	{
		Speaker:  "patient",
		Partials: []string{"A dry cough", "A dry cough and some"},
		Final:    "A dry cough and some chest tightness",
	},
	{
		Speaker:  "clinician",
		Partials: []string{"Your blood pressure"},
		Final:    "Your blood pressure is one twenty over eighty",
	},
	{
		Speaker:  "clinician",
		Partials: []string{"Heart rate is"},
		Final:    "Heart rate is eighty eight and regular",
	},
}

// Adapter implements asr.Source with scripted responses. Each audio frame
// advances the script by one step: either the next partial of the current
// utterance, or its committed transcript.
type Adapter struct {
	utterances []SimulatedUtterance
	language   string

	mu           sync.Mutex
	events       chan asr.Event
	done         chan struct{}
	started      bool
	closed       bool
	utteranceIdx int
	partialIdx   int
	sequence     int

	senders sync.WaitGroup
}

// New creates a mock source playing the default encounter script.
func New(languageCode string) *Adapter {
	return NewScripted(languageCode, DefaultUtterances)
}

// NewScripted creates a mock source with a custom script.
func NewScripted(languageCode string, utterances []SimulatedUtterance) *Adapter {
	return &Adapter{
		utterances: utterances,
		language:   languageCode,
	}
}

// Start opens the event channel and emits session_started.
func (a *Adapter) Start(ctx context.Context) (<-chan asr.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = make(chan asr.Event, 64)
	a.done = make(chan struct{})
	a.started = true
	a.events <- asr.Event{Kind: asr.KindSessionStarted, LanguageCode: a.language}
	return a.events, nil
}

// SendAudio advances the script by one step per frame. The channel send
// happens outside the lock, so a stalled consumer never wedges Close: the
// send aborts as soon as the source is closed.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if !a.started || a.closed || a.utteranceIdx >= len(a.utterances) {
		a.mu.Unlock()
		return nil
	}
	ev := a.nextEventLocked()
	events, done := a.events, a.done
	a.senders.Add(1)
	a.mu.Unlock()
	defer a.senders.Done()

	select {
	case events <- ev:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextEventLocked returns the next scripted event and advances the cursor.
// Caller holds a.mu.
func (a *Adapter) nextEventLocked() asr.Event {
	utt := a.utterances[a.utteranceIdx]
	if a.partialIdx < len(utt.Partials) {
		ev := asr.Event{
			Kind:         asr.KindPartial,
			Text:         utt.Partials[a.partialIdx],
			Speaker:      utt.Speaker,
			LanguageCode: a.language,
		}
		a.partialIdx++
		return ev
	}

	ev := asr.Event{
		Kind:          asr.KindCommitted,
		Text:          utt.Final,
		Speaker:       utt.Speaker,
		LanguageCode:  a.language,
		SequenceIndex: a.sequence,
	}
	a.sequence++
	a.utteranceIdx++
	a.partialIdx = 0
	return ev
}

// Close ends the stream: in-flight sends are released, then KindClosed is
// emitted and the channel closed. A consumer that stopped reading with a full
// buffer misses the closed event but still observes the channel close.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	events, done := a.events, a.done
	a.mu.Unlock()

	if events == nil {
		return nil
	}

	close(done)
	a.senders.Wait()

	select {
	case events <- asr.Event{Kind: asr.KindClosed}:
	default:
	}
	close(events)
	return nil
}
