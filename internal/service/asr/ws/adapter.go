// Package ws provides a websocket-based speech recognition source for
// realtime transcription providers that speak a JSON message protocol.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"clinical-scribe-service/internal/observability/logging"
	"clinical-scribe-service/internal/service/asr"
)

// Config holds websocket source configuration.
type Config struct {
	URL          string
	APIKey       string
	LanguageCode string
	SessionID    string
}

// inboundMessage is the provider's wire format. Unknown or malformed messages
// are logged and skipped without aborting the stream.
type inboundMessage struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Speaker      string `json:"speaker"`
	Message      string `json:"message"`
	Code         string `json:"code"`
}

// outboundAudio is the frame format for audio chunks.
type outboundAudio struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM
}

// Adapter implements asr.Source over a websocket connection.
//
// gorilla/websocket permits only one concurrent writer per connection, so
// every socket write goes through writeMu: concurrent audio frames, and an
// audio frame racing the end_session/close writes, are serialized.
type Adapter struct {
	cfg  Config
	conn *websocket.Conn

	mu       sync.Mutex
	closed   bool
	events   chan asr.Event
	sequence int

	writeMu sync.Mutex
}

// New creates a websocket source. The connection is opened on Start.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("websocket source: URL is required")
	}
	return &Adapter{cfg: cfg}, nil
}

// Start dials the provider and begins the reader loop.
func (a *Adapter) Start(ctx context.Context) (<-chan asr.Event, error) {
	header := http.Header{}
	if a.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial transcription provider: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.events = make(chan asr.Event, 64)
	a.mu.Unlock()

	if a.cfg.LanguageCode != "" {
		cfgMsg := map[string]string{"type": "start_session", "language_code": a.cfg.LanguageCode}
		a.writeMu.Lock()
		err := conn.WriteJSON(cfgMsg)
		a.writeMu.Unlock()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("send session config: %w", err)
		}
	}

	go a.readLoop()
	return a.events, nil
}

// SendAudio base64-encodes a PCM chunk and sends it as a JSON frame.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	conn := a.conn
	closed := a.closed
	a.mu.Unlock()

	if closed || conn == nil {
		return fmt.Errorf("websocket source is closed")
	}

	frame := outboundAudio{
		Type:  "audio_chunk",
		Audio: base64.StdEncoding.EncodeToString(audio),
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// Close signals end of input and closes the connection. The reader loop emits
// the final KindClosed event and closes the channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best effort: tell the provider to flush pending audio before closing.
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = conn.WriteJSON(map[string]string{"type": "end_session"})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// readLoop reads provider messages until the socket closes, translating them
// into asr events. Runs in its own goroutine.
func (a *Adapter) readLoop() {
	logger := logging.WithStream(a.cfg.SessionID, "ws")

	defer func() {
		a.events <- asr.Event{Kind: asr.KindClosed}
		close(a.events)
	}()

	for {
		_, payload, err := a.conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			// A clean provider-side close is not a stream error.
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Websocket read failed")
				a.events <- asr.Event{Kind: asr.KindInputError, ErrMessage: err.Error()}
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn().Err(err).Msg("Skipping malformed stream message")
			continue
		}

		ev, ok := a.toEvent(msg)
		if !ok {
			logger.Debug().Str("type", msg.Type).Msg("Skipping unrecognized stream message")
			continue
		}
		a.events <- ev
	}
}

func (a *Adapter) toEvent(msg inboundMessage) (asr.Event, bool) {
	switch msg.Type {
	case "session_started":
		return asr.Event{
			Kind:         asr.KindSessionStarted,
			LanguageCode: msg.LanguageCode,
		}, true
	case "partial_transcript":
		return asr.Event{
			Kind:         asr.KindPartial,
			Text:         msg.Text,
			LanguageCode: msg.LanguageCode,
			Speaker:      msg.Speaker,
		}, true
	case "committed_transcript", "committed_transcript_with_timestamps":
		a.sequence++
		return asr.Event{
			Kind:          asr.KindCommitted,
			Text:          msg.Text,
			LanguageCode:  msg.LanguageCode,
			Speaker:       msg.Speaker,
			SequenceIndex: a.sequence - 1,
		}, true
	case "input_error":
		errMsg := msg.Message
		if errMsg == "" {
			errMsg = msg.Code
		}
		return asr.Event{Kind: asr.KindInputError, ErrMessage: errMsg}, true
	}
	return asr.Event{}, false
}
