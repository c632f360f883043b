// Package autofill reconciles extraction results into a form's field state
// while never overwriting fields the user has manually edited.
package autofill

import "fmt"

// ChunkStatus is the lifecycle of one extraction chunk.
//
// State transitions:
//
//	PENDING → IN_FLIGHT → DONE
//
// A chunk index is dispatched to the extraction service at most once; a
// second request for an index that is IN_FLIGHT or DONE is suppressed.
// DONE is terminal and set on success and failure alike, so retries must use
// a new chunk index.
type ChunkStatus int

const (
	// ChunkPending - chunk boundary reached, not yet dispatched.
	ChunkPending ChunkStatus = iota
	// ChunkInFlight - extraction request dispatched, awaiting response.
	ChunkInFlight
	// ChunkDone - response received (success or failure). Terminal.
	ChunkDone
)

// String returns the string representation of the chunk status.
func (s ChunkStatus) String() string {
	switch s {
	case ChunkPending:
		return "PENDING"
	case ChunkInFlight:
		return "IN_FLIGHT"
	case ChunkDone:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// FieldState tracks which dot-delimited field paths were auto-filled and
// which the user has manually overridden. The two sets are always disjoint:
// marking an override removes the path from the auto-filled set in the same
// update.
//
// Manual override is a one-way latch. There is no operation that removes a
// path from the override set for the remainder of the session.
//
// Not safe for concurrent use; the Reconciler guards it.
type FieldState struct {
	autoFilled map[string]struct{}
	overrides  map[string]struct{}
}

// NewFieldState creates an empty field state.
func NewFieldState() *FieldState {
	return &FieldState{
		autoFilled: make(map[string]struct{}),
		overrides:  make(map[string]struct{}),
	}
}

// MarkAutoFilled records a path as auto-filled, unless it is overridden.
func (f *FieldState) MarkAutoFilled(path string) {
	if _, ok := f.overrides[path]; ok {
		return
	}
	f.autoFilled[path] = struct{}{}
}

// MarkManualOverride latches a path as manually overridden and removes it
// from the auto-filled set in the same update.
func (f *FieldState) MarkManualOverride(path string) {
	f.overrides[path] = struct{}{}
	delete(f.autoFilled, path)
}

// IsOverridden reports whether the user has manually edited the path.
func (f *FieldState) IsOverridden(path string) bool {
	_, ok := f.overrides[path]
	return ok
}

// IsAutoFilled reports whether the path holds an auto-filled value the user
// has not touched.
func (f *FieldState) IsAutoFilled(path string) bool {
	_, ok := f.autoFilled[path]
	return ok
}

// AutoFilled returns the auto-filled paths.
func (f *FieldState) AutoFilled() []string {
	return keys(f.autoFilled)
}

// Overrides returns the manually overridden paths.
func (f *FieldState) Overrides() []string {
	return keys(f.overrides)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
