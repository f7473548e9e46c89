package stt

import "time"

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// ReceivedAt is the local time the result arrived from the provider.
	ReceivedAt time.Time
}

// KeywordBoost represents a keyword to boost in STT recognition. Used to
// improve recognition of the wake word and command vocabulary.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g. "omi").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
