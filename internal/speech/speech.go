package speech

import "context"

// Transcriber converts a recorded audio clip to plain text. The format hint
// is the container/file extension ("wav", "ogg", "webm").
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Synthesizer converts reply text to an audio byte buffer. The container
// format of the result is dictated by the implementation, not the caller.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
