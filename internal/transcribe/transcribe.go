// Package transcribe is the speech-to-text boundary. Empty text (or an
// error) means the caller falls back to asking the user to type the
// transcript manually.
package transcribe

import "context"

// Transcriber converts a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Disabled is used when no transcription endpoint is configured; every
// voice message goes through the manual-transcript flow.
type Disabled struct{}

func (Disabled) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return "", nil
}
