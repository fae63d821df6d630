package stt

// Transcript is a speech-to-text result. Partials and finals share the type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal reports whether the provider has committed to this segment.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0), zero if unreported.
	Confidence float64
}
