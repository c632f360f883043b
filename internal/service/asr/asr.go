// Package asr defines the interface for streaming speech recognition sources.
//
// A Source delivers transcript events over a channel in stream order. The
// consumer reads the channel sequentially, which is what guarantees that
// partial and committed segments are applied in delivery order.
package asr

import "context"

// EventKind discriminates stream events.
type EventKind int

const (
	// KindSessionStarted carries the initial detected language code.
	KindSessionStarted EventKind = iota
	// KindPartial is a provisional transcript for the current turn.
	KindPartial
	// KindCommitted is a finalized transcript fragment.
	KindCommitted
	// KindInputError carries a stream-level error message.
	KindInputError
	// KindClosed signals the stream has ended; no further events follow.
	KindClosed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindSessionStarted:
		return "session_started"
	case KindPartial:
		return "partial_transcript"
	case KindCommitted:
		return "committed_transcript"
	case KindInputError:
		return "input_error"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a single transcript stream event.
type Event struct {
	Kind          EventKind
	Text          string
	LanguageCode  string
	Speaker       string
	SequenceIndex int
	ErrMessage    string
}

// Source is a streaming speech recognition provider (websocket, mock, ...).
type Source interface {
	// Start opens the stream and returns the event channel. The channel is
	// closed after a KindClosed event once the stream ends.
	Start(ctx context.Context) (<-chan Event, error)

	// SendAudio forwards raw PCM bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the stream and releases resources. Idempotent.
	Close() error
}
