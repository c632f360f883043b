// Package models defines the data structures shared across the service:
// diarized transcript segments, form types, and outbound event payloads.
package models

import "fmt"

// SpeakerRole identifies who produced a transcript segment.
type SpeakerRole string

const (
	SpeakerClinician SpeakerRole = "clinician"
	SpeakerPatient   SpeakerRole = "patient"
	SpeakerUnknown   SpeakerRole = "unknown"
)

// DiarizedSegment is a committed transcript fragment tagged with the speaker
// who produced it. Chunks handed to the extraction service are slices of these.
type DiarizedSegment struct {
	Speaker       SpeakerRole `json:"speaker"`
	Text          string      `json:"text"`
	LanguageCode  string      `json:"languageCode,omitempty"`
	SequenceIndex int         `json:"sequenceIndex"`
}

// FormType is the fixed enumeration of clinical form layouts the extraction
// service knows how to fill.
type FormType string

const (
	FormConsultation FormType = "consultation"
	FormAnamnesis    FormType = "anamnesis"
	FormDischarge    FormType = "discharge"
)

// ParseFormType validates a form type string.
func ParseFormType(s string) (FormType, error) {
	switch FormType(s) {
	case FormConsultation, FormAnamnesis, FormDischarge:
		return FormType(s), nil
	}
	return "", fmt.Errorf("unknown form type %q", s)
}

func (f FormType) String() string {
	return string(f)
}

// TranscriptCommitted is the event published when a segment is committed to
// the canonical transcript.
type TranscriptCommitted struct {
	EventType     string `json:"eventType"`
	SessionID     string `json:"sessionId"`
	FormType      string `json:"formType"`
	Timestamp     int64  `json:"timestamp"`
	Speaker       string `json:"speaker"`
	SequenceIndex int    `json:"sequenceIndex"`
	Text          string `json:"text"`
	OriginalText  string `json:"originalText,omitempty"`
	LanguageCode  string `json:"languageCode,omitempty"`
}

// FieldUpdatesApplied is the event published when an extraction chunk yields
// field updates that survived the manual-override filter.
type FieldUpdatesApplied struct {
	EventType        string             `json:"eventType"`
	SessionID        string             `json:"sessionId"`
	FormType         string             `json:"formType"`
	Timestamp        int64              `json:"timestamp"`
	ChunkIndex       int                `json:"chunkIndex"`
	FieldUpdates     map[string]any     `json:"fieldUpdates"`
	ConfidenceScores map[string]float64 `json:"confidenceScores"`
}
