// Package transcript folds a stream of partial and committed speech segments
// into a single coherent, monotonically growing transcript.
package transcript

import "strings"

// State is the transcript value object. Committed holds finalized segment
// texts in commit order (append-only); Partial is the at-most-one provisional
// fragment for the current turn.
//
// When a translation pass is active, Committed and Partial hold the displayed
// (translated) texts while CommittedOriginal and PartialOriginal shadow the
// source-language texts. The two sequences stay index-aligned turn for turn.
//
// State is updated with value-returning methods so every transition produces
// a complete, consistent snapshot; there are no hidden mutable cells.
type State struct {
	Committed         []string
	Partial           string
	CommittedOriginal []string
	PartialOriginal   string
}

// WithPartial replaces the current partial with the given display and
// original texts. Partials never accumulate: each call supersedes the last.
func (s State) WithPartial(display, original string) State {
	s.Partial = display
	s.PartialOriginal = original
	return s
}

// WithCommitted appends a committed segment and clears the partial.
func (s State) WithCommitted(display, original string) State {
	s.Committed = appendCopy(s.Committed, display)
	s.CommittedOriginal = appendCopy(s.CommittedOriginal, original)
	s.Partial = ""
	s.PartialOriginal = ""
	return s
}

// PromotePartial commits a non-empty trailing partial. Called on stream
// closure so trailing speech is never silently lost.
func (s State) PromotePartial() State {
	if s.Partial == "" && s.PartialOriginal == "" {
		return s
	}
	display := s.Partial
	original := s.PartialOriginal
	if display == "" {
		display = original
	}
	if original == "" {
		original = display
	}
	return s.WithCommitted(display, original)
}

// ReplacePartialDisplay swaps the displayed partial text, keeping the
// original-language shadow. Used when a translation response arrives.
func (s State) ReplacePartialDisplay(display string) State {
	s.Partial = display
	return s
}

// ReplaceCommittedDisplay swaps the displayed text of one committed segment,
// keeping the original-language shadow. The committed sequence itself stays
// append-only; only the display form of the addressed index changes.
func (s State) ReplaceCommittedDisplay(index int, display string) State {
	if index < 0 || index >= len(s.Committed) {
		return s
	}
	committed := make([]string, len(s.Committed))
	copy(committed, s.Committed)
	committed[index] = display
	s.Committed = committed
	return s
}

// FullText is the space-joined concatenation of all committed text followed
// by at most one trailing provisional fragment.
func (s State) FullText() string {
	return joinWithPartial(s.Committed, s.Partial)
}

// OriginalFullText is FullText over the source-language shadow transcript.
func (s State) OriginalFullText() string {
	return joinWithPartial(s.CommittedOriginal, s.PartialOriginal)
}

func joinWithPartial(committed []string, partial string) string {
	full := strings.Join(committed, " ")
	if partial == "" {
		return full
	}
	if full == "" {
		return partial
	}
	return full + " " + partial
}

// appendCopy appends without sharing the backing array with prior snapshots.
func appendCopy(xs []string, x string) []string {
	out := make([]string, len(xs)+1)
	copy(out, xs)
	out[len(xs)] = x
	return out
}
