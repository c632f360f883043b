package transcript

import "testing"

func TestState_FullText_CommitOrder(t *testing.T) {
	var s State
	s = s.WithCommitted("Patient has fever", "Patient has fever")
	s = s.WithCommitted("for 3 days", "for 3 days")

	if got := s.FullText(); got != "Patient has fever for 3 days" {
		t.Errorf("FullText = %q, want %q", got, "Patient has fever for 3 days")
	}
}

func TestState_PartialsNeverAccumulate(t *testing.T) {
	var s State
	s = s.WithCommitted("Good morning", "Good morning")
	s = s.WithPartial("I have", "I have")
	s = s.WithPartial("I have a headache", "I have a headache")

	want := "Good morning I have a headache"
	if got := s.FullText(); got != want {
		t.Errorf("FullText = %q, want %q", got, want)
	}
	if len(s.Committed) != 1 {
		t.Errorf("expected 1 committed segment, got %d", len(s.Committed))
	}
}

func TestState_CommitClearsPartial(t *testing.T) {
	var s State
	s = s.WithPartial("I have a head", "I have a head")
	s = s.WithCommitted("I have a headache", "I have a headache")

	if s.Partial != "" {
		t.Errorf("expected empty partial after commit, got %q", s.Partial)
	}
	if got := s.FullText(); got != "I have a headache" {
		t.Errorf("FullText = %q, want %q", got, "I have a headache")
	}
}

func TestState_InterleavedPartialsDoNotAffectCommitted(t *testing.T) {
	var s State
	s = s.WithPartial("Pat", "Pat")
	s = s.WithCommitted("Patient has fever", "Patient has fever")
	s = s.WithPartial("for", "for")
	s = s.WithPartial("for 3", "for 3")
	s = s.WithCommitted("for 3 days", "for 3 days")

	if got := s.FullText(); got != "Patient has fever for 3 days" {
		t.Errorf("FullText = %q, want %q", got, "Patient has fever for 3 days")
	}
}

func TestState_PromotePartial(t *testing.T) {
	var s State
	s = s.WithCommitted("First", "First")
	s = s.WithPartial("trailing words", "trailing words")

	s = s.PromotePartial()

	if s.Partial != "" || s.PartialOriginal != "" {
		t.Error("expected partial cleared after promotion")
	}
	if len(s.Committed) != 2 || s.Committed[1] != "trailing words" {
		t.Errorf("expected trailing partial committed, got %v", s.Committed)
	}
	if got := s.FullText(); got != "First trailing words" {
		t.Errorf("FullText = %q, want %q", got, "First trailing words")
	}
}

func TestState_PromotePartial_EmptyIsNoop(t *testing.T) {
	var s State
	s = s.WithCommitted("Only segment", "Only segment")

	s = s.PromotePartial()

	if len(s.Committed) != 1 {
		t.Errorf("expected no new segment, got %v", s.Committed)
	}
}

func TestState_ShadowTranscriptStaysAligned(t *testing.T) {
	var s State
	s = s.WithCommitted("The patient has a fever", "El paciente tiene fiebre")
	s = s.WithCommitted("since Monday", "desde el lunes")

	if len(s.Committed) != len(s.CommittedOriginal) {
		t.Fatalf("display and original sequences misaligned: %d vs %d",
			len(s.Committed), len(s.CommittedOriginal))
	}
	if got := s.OriginalFullText(); got != "El paciente tiene fiebre desde el lunes" {
		t.Errorf("OriginalFullText = %q", got)
	}
	if got := s.FullText(); got != "The patient has a fever since Monday" {
		t.Errorf("FullText = %q", got)
	}
}

func TestState_ReplaceCommittedDisplay(t *testing.T) {
	var s State
	s = s.WithCommitted("El paciente tiene fiebre", "El paciente tiene fiebre")

	s2 := s.ReplaceCommittedDisplay(0, "The patient has a fever")

	if s2.Committed[0] != "The patient has a fever" {
		t.Errorf("display not replaced: %q", s2.Committed[0])
	}
	if s2.CommittedOriginal[0] != "El paciente tiene fiebre" {
		t.Errorf("original shadow changed: %q", s2.CommittedOriginal[0])
	}
	// The prior snapshot is unaffected.
	if s.Committed[0] != "El paciente tiene fiebre" {
		t.Errorf("prior snapshot mutated: %q", s.Committed[0])
	}
}

func TestState_ReplaceCommittedDisplay_OutOfRange(t *testing.T) {
	var s State
	s = s.WithCommitted("one", "one")

	if got := s.ReplaceCommittedDisplay(5, "x").Committed[0]; got != "one" {
		t.Errorf("out-of-range replace altered state: %q", got)
	}
	if got := s.ReplaceCommittedDisplay(-1, "x").Committed[0]; got != "one" {
		t.Errorf("negative-index replace altered state: %q", got)
	}
}

func TestState_SnapshotsAreIndependent(t *testing.T) {
	var s State
	s = s.WithCommitted("a", "a")
	before := s

	s = s.WithCommitted("b", "b")

	if got := before.FullText(); got != "a" {
		t.Errorf("earlier snapshot changed: %q", got)
	}
	if got := s.FullText(); got != "a b" {
		t.Errorf("FullText = %q, want %q", got, "a b")
	}
}
