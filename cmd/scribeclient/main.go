// Command scribeclient is a small test client for the scribe API: it starts
// a session, streams a PCM file (or silence) in fixed frames, stops the
// session, and prints the resulting transcript and form snapshot.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "scribe API base URL")
		formType = flag.String("form", "consultation", "form type")
		audio    = flag.String("audio", "", "raw PCM file to stream (empty streams silence)")
		frames   = flag.Int("frames", 12, "number of frames to send when streaming silence")
		interval = flag.Duration("interval", 250*time.Millisecond, "delay between frames")
	)
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	sessionID, err := startSession(client, *baseURL, *formType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("session started: %s\n", sessionID)

	if err := streamAudio(client, *baseURL, sessionID, *audio, *frames, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "stream audio: %v\n", err)
		os.Exit(1)
	}

	view, err := stopSession(client, *baseURL, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stop session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("transcript:\n%s\n\n", view["transcript"])
	form, _ := json.MarshalIndent(view["form_state"], "", "  ")
	fmt.Printf("form state:\n%s\n", form)
}

func startSession(client *http.Client, baseURL, formType string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"form_type":       formType,
		"patient_context": map[string]any{"source": "scribeclient"},
	})

	resp, err := client.Post(baseURL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func streamAudio(client *http.Client, baseURL, sessionID, audioPath string, frames int, interval time.Duration) error {
	const frameSize = 3200 // 100ms at 16kHz 16-bit mono

	var data []byte
	if audioPath != "" {
		var err error
		data, err = os.ReadFile(audioPath)
		if err != nil {
			return err
		}
	} else {
		data = make([]byte, frameSize*frames)
	}

	for off := 0; off < len(data); off += frameSize {
		end := off + frameSize
		if end > len(data) {
			end = len(data)
		}

		resp, err := client.Post(
			baseURL+"/v1/sessions/"+sessionID+"/audio",
			"application/octet-stream",
			bytes.NewReader(data[off:end]),
		)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("audio frame rejected with status %d", resp.StatusCode)
		}
		time.Sleep(interval)
	}
	return nil
}

func stopSession(client *http.Client, baseURL, sessionID string) (map[string]any, error) {
	resp, err := client.Post(baseURL+"/v1/sessions/"+sessionID+"/stop", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}

	var view map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return view, nil
}
