package autofill

import (
	"reflect"
	"testing"
)

func TestApplyFieldUpdates_SiblingPreserved(t *testing.T) {
	state := map[string]any{
		"vitals": map[string]any{"bp": 120},
	}

	got := ApplyFieldUpdates(state, map[string]any{"vitals.hr": 80})

	want := map[string]any{
		"vitals": map[string]any{"bp": 120, "hr": 80},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ApplyFieldUpdates = %v, want %v", got, want)
	}
}

func TestApplyFieldUpdates_CreatesIntermediates(t *testing.T) {
	got := ApplyFieldUpdates(map[string]any{}, map[string]any{
		"vital_signs.blood_pressure.systolic": 120,
	})

	vs, ok := got["vital_signs"].(map[string]any)
	if !ok {
		t.Fatalf("missing vital_signs object: %v", got)
	}
	bp, ok := vs["blood_pressure"].(map[string]any)
	if !ok {
		t.Fatalf("missing blood_pressure object: %v", vs)
	}
	if bp["systolic"] != 120 {
		t.Errorf("systolic = %v, want 120", bp["systolic"])
	}
}

func TestApplyFieldUpdates_TopLevelPath(t *testing.T) {
	got := ApplyFieldUpdates(
		map[string]any{"chief_complaint": "fever"},
		map[string]any{"diagnosis": "viral infection"},
	)

	if got["chief_complaint"] != "fever" {
		t.Errorf("sibling lost: %v", got)
	}
	if got["diagnosis"] != "viral infection" {
		t.Errorf("diagnosis = %v", got["diagnosis"])
	}
}

func TestApplyFieldUpdates_OverwritesLeaf(t *testing.T) {
	state := map[string]any{
		"vitals": map[string]any{"hr": 72},
	}

	got := ApplyFieldUpdates(state, map[string]any{"vitals.hr": 88})

	if got["vitals"].(map[string]any)["hr"] != 88 {
		t.Errorf("leaf not overwritten: %v", got)
	}
}

func TestApplyFieldUpdates_ScalarIntermediateReplaced(t *testing.T) {
	state := map[string]any{"vitals": "free text"}

	got := ApplyFieldUpdates(state, map[string]any{"vitals.hr": 88})

	vitals, ok := got["vitals"].(map[string]any)
	if !ok {
		t.Fatalf("expected object at vitals, got %T", got["vitals"])
	}
	if vitals["hr"] != 88 {
		t.Errorf("hr = %v", vitals["hr"])
	}
}

func TestApplyFieldUpdates_InputNotMutated(t *testing.T) {
	state := map[string]any{
		"vitals": map[string]any{"bp": 120},
	}

	_ = ApplyFieldUpdates(state, map[string]any{
		"vitals.hr":     80,
		"notes.summary": "stable",
	})

	if len(state) != 1 {
		t.Errorf("input tree grew: %v", state)
	}
	vitals := state["vitals"].(map[string]any)
	if len(vitals) != 1 || vitals["bp"] != 120 {
		t.Errorf("input subtree mutated: %v", vitals)
	}
}

func TestApplyFieldUpdates_MultipleUpdatesOneCall(t *testing.T) {
	got := ApplyFieldUpdates(map[string]any{}, map[string]any{
		"vitals.hr":       88,
		"vitals.bp":       "120/80",
		"history.smoking": false,
	})

	vitals := got["vitals"].(map[string]any)
	if vitals["hr"] != 88 || vitals["bp"] != "120/80" {
		t.Errorf("vitals = %v", vitals)
	}
	history := got["history"].(map[string]any)
	if history["smoking"] != false {
		t.Errorf("history = %v", history)
	}
}
