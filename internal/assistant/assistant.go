package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"voice-chatter/internal/conversation"
	"voice-chatter/internal/llm"
	"voice-chatter/internal/speech"
	"voice-chatter/internal/storage"
)

// UpstreamError wraps a failure of one of the external gateways
// (transcription, chat-completion, synthesis). The core never retries; the
// shell is responsible for user-visible messaging.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s gateway: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Reply is what a shell renders for one utterance: the assistant's text and
// its spoken form.
type Reply struct {
	Text  string
	Audio []byte
}

// Assistant orchestrates turns: it records the utterance, replays the
// conversation into the chat-completion gateway and commits the reply. It
// holds no conversation state of its own; state lives in the session.
type Assistant struct {
	llm llm.Client
	stt speech.Transcriber
	tts speech.Synthesizer
	rec storage.Recorder
}

func New(llmClient llm.Client, stt speech.Transcriber, tts speech.Synthesizer) *Assistant {
	return &Assistant{llm: llmClient, stt: stt, tts: tts}
}

// SetRecorder enables optional JSONL logging of completed turns.
func (a *Assistant) SetRecorder(rec storage.Recorder) { a.rec = rec }

// HandleUtterance processes one user utterance for the given session:
// append as an in-flight turn, replay the full message sequence to the
// chat-completion gateway, commit the reply. Invocations are serialized per
// session by the session mutex. On an upstream failure the turn is marked
// failed and stays on record with its reply absent; a later attempt starts
// a fresh turn.
func (a *Assistant) HandleUtterance(ctx context.Context, s *Session, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		// Rejected locally; no network call is made.
		return "", conversation.ErrEmptyUtterance
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	id, err := s.state.AppendUserUtterance(text)
	if err != nil {
		return "", err
	}

	resp, err := a.llm.Generate(ctx, s.state.Messages())
	if err != nil {
		if ferr := s.state.FailTurn(id); ferr != nil {
			log.Printf("failed to mark turn %d failed: %v", id, ferr)
		}
		return "", &UpstreamError{Op: "chat-completion", Err: err}
	}

	if err := s.state.CompleteTurn(id, resp.Content); err != nil {
		return "", err
	}

	log.Printf("assistant reply [session=%s model=%s tokens: prompt=%d, completion=%d, total=%d]",
		s.ID, resp.Model, resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens)

	if a.rec != nil {
		ev := storage.Event{
			Timestamp: time.Now().UTC(),
			SessionID: s.ID,
			Utterance: text,
			Reply:     resp.Content,
			Model:     resp.Model,
		}
		if err := a.rec.AppendInteraction(ev); err != nil {
			log.Printf("failed to record interaction: %v", err)
		}
	}

	return resp.Content, nil
}

// Respond handles one transcribed utterance end to end: reply text via
// HandleUtterance, then its spoken form via the synthesis gateway. When
// synthesis fails the reply text is already committed, so it is returned
// alongside the UpstreamError and the shell may still render it.
func (a *Assistant) Respond(ctx context.Context, s *Session, text string) (Reply, error) {
	replyText, err := a.HandleUtterance(ctx, s, text)
	if err != nil {
		return Reply{}, err
	}
	audio, err := a.tts.Synthesize(ctx, replyText)
	if err != nil {
		return Reply{Text: replyText}, &UpstreamError{Op: "synthesis", Err: err}
	}
	return Reply{Text: replyText, Audio: audio}, nil
}

// Transcribe converts captured audio to text via the transcription gateway.
func (a *Assistant) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	text, err := a.stt.Transcribe(ctx, audio, format)
	if err != nil {
		return "", &UpstreamError{Op: "transcription", Err: err}
	}
	return strings.TrimSpace(text), nil
}
