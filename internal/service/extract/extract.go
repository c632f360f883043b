// Package extract provides the field-extraction API client. The extraction
// service reads a chunk of diarized transcript and returns structured form
// field values with confidence scores.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"clinical-scribe-service/internal/models"
)

// Request is one unit of extraction work: a transcript chunk plus the context
// the model needs to fill fields consistently with what is already on the form.
type Request struct {
	DiarizedSegments []models.DiarizedSegment `json:"diarized_segments"`
	FormType         models.FormType          `json:"form_type"`
	PatientContext   map[string]any           `json:"patient_context"`
	CurrentFormState map[string]any           `json:"current_form_state"`
	ChunkIndex       int                      `json:"chunk_index"`
}

// Result maps dot-delimited field paths to extracted values.
type Result struct {
	FieldUpdates     map[string]any     `json:"field_updates"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// Extractor dispatches one chunk to the extraction service.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// Client is an HTTP Extractor.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an extraction client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Extract posts the chunk and decodes the field-update map.
func (c *Client) Extract(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return &out, nil
}
