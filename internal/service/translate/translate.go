// Package translate provides the per-segment text translation client.
//
// Translation is best effort: on any failure the caller keeps the original
// text for that segment, so a translation outage never blocks transcript
// accumulation.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotTranslated indicates the service responded but declined the request.
var ErrNotTranslated = errors.New("translation service returned success=false")

// Translator translates a single text fragment.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// request is the translation API wire format.
type request struct {
	Text string `json:"text"`
}

type response struct {
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text"`
}

// Client is an HTTP Translator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a translation client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Translate posts the text and returns the translated form.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(request{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call translation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation service returned status %d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	if !out.Success {
		return "", ErrNotTranslated
	}
	return out.TranslatedText, nil
}

// Noop is a Translator that returns the input unchanged.
type Noop struct{}

// Translate returns text as-is.
func (Noop) Translate(ctx context.Context, text string) (string, error) {
	return text, nil
}
