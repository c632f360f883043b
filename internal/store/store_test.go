package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scribe.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	patientCtx := map[string]any{"age": float64(54), "sex": "f"}
	if err := s.CreateSession(ctx, "sess-1", "consultation", patientCtx); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec.FormType != "consultation" {
		t.Errorf("form type = %q", rec.FormType)
	}
	if rec.PatientContext["age"] != float64(54) {
		t.Errorf("patient context = %v", rec.PatientContext)
	}
	if rec.EndedAt != nil {
		t.Error("new session must not have an end time")
	}
	if rec.StartedAt.IsZero() {
		t.Error("started_at not persisted")
	}

	err = s.FinishSession(ctx, "sess-1", "es", "I have a fever", "tengo fiebre", "")
	if err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	rec, err = s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after finish: %v", err)
	}
	if rec.Transcript != "I have a fever" {
		t.Errorf("transcript = %q", rec.Transcript)
	}
	if rec.OriginalTranscript != "tengo fiebre" {
		t.Errorf("original transcript = %q", rec.OriginalTranscript)
	}
	if rec.LanguageCode != "es" {
		t.Errorf("language = %q", rec.LanguageCode)
	}
	if rec.EndedAt == nil {
		t.Error("ended_at not persisted")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFinishSession_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.FinishSession(context.Background(), "missing", "en", "", "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveFieldUpdates_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "sess-1", "consultation", nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	updates := map[string]any{
		"vitals.heart_rate": 88,
		"vitals.bp":         "120/80",
	}
	scores := map[string]float64{
		"vitals.heart_rate": 0.93,
		"vitals.bp":         0.81,
	}
	if err := s.SaveFieldUpdates(ctx, "sess-1", 0, updates, scores); err != nil {
		t.Fatalf("SaveFieldUpdates: %v", err)
	}

	recs, err := s.ListFieldUpdates(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListFieldUpdates: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	byPath := map[string]FieldUpdateRecord{}
	for _, rec := range recs {
		byPath[rec.FieldPath] = rec
	}
	hr := byPath["vitals.heart_rate"]
	if hr.Value != float64(88) {
		t.Errorf("heart rate value = %v (%T)", hr.Value, hr.Value)
	}
	if hr.Confidence != 0.93 {
		t.Errorf("heart rate confidence = %v", hr.Confidence)
	}
	if byPath["vitals.bp"].Value != "120/80" {
		t.Errorf("bp value = %v", byPath["vitals.bp"].Value)
	}
}

func TestSaveOverride_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "sess-1", "consultation", nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.SaveOverride(ctx, "sess-1", "vitals.heart_rate"); err != nil {
			t.Fatalf("SaveOverride #%d: %v", i, err)
		}
	}
	if err := s.SaveOverride(ctx, "sess-1", "notes.summary"); err != nil {
		t.Fatalf("SaveOverride: %v", err)
	}

	got, err := s.ListOverrides(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 overrides, got %v", got)
	}
	if got[0] != "vitals.heart_rate" || got[1] != "notes.summary" {
		t.Errorf("overrides = %v", got)
	}
}

func TestListFieldUpdates_EmptySession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "sess-1", "anamnesis", nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	recs, err := s.ListFieldUpdates(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListFieldUpdates: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %v", recs)
	}
}
