package mock

import (
	"context"
	"testing"
	"time"

	"clinical-scribe-service/internal/service/asr"
)

func drain(ch <-chan asr.Event) []asr.Event {
	var out []asr.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestAdapter_PlaysScriptInOrder(t *testing.T) {
	script := []SimulatedUtterance{
		{Speaker: "patient", Partials: []string{"I've had"}, Final: "I've had a fever"},
		{Speaker: "clinician", Partials: nil, Final: "Since when"},
	}
	a := NewScripted("en-US", script)

	events, err := a.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// One frame per script step: partial, final, final.
	for i := 0; i < 3; i++ {
		if err := a.SendAudio(context.Background(), []byte{0}); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := drain(events)
	want := []asr.Event{
		{Kind: asr.KindSessionStarted, LanguageCode: "en-US"},
		{Kind: asr.KindPartial, Text: "I've had", Speaker: "patient", LanguageCode: "en-US"},
		{Kind: asr.KindCommitted, Text: "I've had a fever", Speaker: "patient", LanguageCode: "en-US", SequenceIndex: 0},
		{Kind: asr.KindCommitted, Text: "Since when", Speaker: "clinician", LanguageCode: "en-US", SequenceIndex: 1},
		{Kind: asr.KindClosed},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAdapter_FramesAfterScriptExhausted(t *testing.T) {
	a := NewScripted("en-US", []SimulatedUtterance{
		{Speaker: "patient", Final: "done"},
	})

	events, err := a.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := a.SendAudio(context.Background(), []byte{0}); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	a.Close()

	got := drain(events)
	// session_started + one committed + closed; extra frames are ignored.
	if len(got) != 3 {
		t.Errorf("got %d events, want 3: %v", len(got), got)
	}
}

func TestAdapter_CloseIsIdempotent(t *testing.T) {
	a := New("en-US")
	events, err := a.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got := drain(events)
	if got[len(got)-1].Kind != asr.KindClosed {
		t.Errorf("last event = %v, want closed", got[len(got)-1])
	}
}

func TestAdapter_CloseReleasesStalledSender(t *testing.T) {
	// A script longer than the channel buffer with a consumer that never
	// reads: sends must block outside the lock and abort on Close.
	script := make([]SimulatedUtterance, 100)
	for i := range script {
		script[i] = SimulatedUtterance{Speaker: "patient", Final: "segment"}
	}
	a := NewScripted("en-US", script)
	events, err := a.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		for i := 0; i < len(script); i++ {
			if err := a.SendAudio(context.Background(), []byte{0}); err != nil {
				t.Errorf("SendAudio frame %d: %v", i, err)
				return
			}
		}
	}()

	// Let the sender fill the buffer and block.
	time.Sleep(20 * time.Millisecond)

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-sendDone:
	case <-time.After(2 * time.Second):
		t.Fatal("sender still blocked after Close")
	}

	// The channel is closed; the buffered events drain and then the range ends.
	if got := drain(events); len(got) == 0 {
		t.Error("expected buffered events before close")
	}
}

func TestAdapter_SendAudioBeforeStartIsNoop(t *testing.T) {
	a := New("en-US")
	if err := a.SendAudio(context.Background(), []byte{0}); err != nil {
		t.Fatalf("SendAudio before Start: %v", err)
	}
}
