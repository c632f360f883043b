package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinical-scribe-service/internal/models"
)

func TestClient_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %q, want /extract", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["form_type"] != "consultation" {
			t.Errorf("form_type = %v", req["form_type"])
		}
		if req["chunk_index"] != float64(2) {
			t.Errorf("chunk_index = %v", req["chunk_index"])
		}
		segments, ok := req["diarized_segments"].([]any)
		if !ok || len(segments) != 1 {
			t.Errorf("diarized_segments = %v", req["diarized_segments"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"field_updates": map[string]any{
				"vitals.heart_rate": 88,
			},
			"confidence_scores": map[string]any{
				"vitals.heart_rate": 0.93,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Extract(context.Background(), Request{
		DiarizedSegments: []models.DiarizedSegment{
			{Speaker: models.SpeakerClinician, Text: "Heart rate is eighty eight", SequenceIndex: 0},
		},
		FormType:         models.FormConsultation,
		CurrentFormState: map[string]any{},
		ChunkIndex:       2,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if res.FieldUpdates["vitals.heart_rate"] != float64(88) {
		t.Errorf("field updates = %v", res.FieldUpdates)
	}
	if res.ConfidenceScores["vitals.heart_rate"] != 0.93 {
		t.Errorf("confidence scores = %v", res.ConfidenceScores)
	}
}

func TestClient_Extract_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.Extract(context.Background(), Request{}); err == nil {
		t.Error("expected error on 502 response")
	}
}

func TestClient_Extract_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Extract(context.Background(), Request{}); err == nil {
		t.Error("expected transport error")
	}
}
