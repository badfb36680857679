package conversation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voice-chatter/internal/llm"
)

// DefaultSystemPrompt carries the assistant's behavioral instructions and is
// used whenever no prompt is configured.
const DefaultSystemPrompt = "You are a knowledgeable AI assistant. Answer the user's questions as accurately as possible. Always answer in the same language the question was asked in."

// ErrEmptyUtterance rejects empty or whitespace-only user input before any
// turn is recorded.
var ErrEmptyUtterance = errors.New("empty utterance")

// StateError reports a conversation invariant violation, e.g. completing a
// turn twice or out of order. It signals a programming defect rather than an
// expected runtime condition.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return "conversation state: " + e.Reason }

// TurnID identifies a turn by its position in the conversation.
type TurnID int

// Turn is a single exchange: the user's utterance and, once the assistant
// has answered, the reply. A turn with Done=false and Failed=false is
// in-flight (reply pending). Failed marks a turn whose reply generation
// failed upstream; such a turn keeps its utterance but never gets a reply.
type Turn struct {
	Utterance string
	Reply     string
	Done      bool
	Failed    bool
	StartedAt time.Time
	RepliedAt time.Time
}

// State is the ordered, append-only record of one session's turns. Turns are
// only ever appended at the tail; at most one turn is in-flight at any time
// and it is always the last element. State is safe for concurrent use, but
// turn processing itself is serialized by the caller.
type State struct {
	mu     sync.RWMutex
	system string
	turns  []Turn
}

// New creates an empty conversation for one session.
func New(systemPrompt string) *State {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &State{system: systemPrompt}
}

// AppendUserUtterance records a new in-flight turn and returns its id.
func (s *State) AppendUserUtterance(text string) (TurnID, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyUtterance
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.turns); n > 0 {
		if last := s.turns[n-1]; !last.Done && !last.Failed {
			return 0, &StateError{Reason: "previous turn is still in flight"}
		}
	}
	s.turns = append(s.turns, Turn{Utterance: text, StartedAt: time.Now()})
	return TurnID(len(s.turns) - 1), nil
}

// CompleteTurn sets the assistant reply on the in-flight turn. Only the last
// turn may be completed, and only once.
func (s *State) CompleteTurn(id TurnID, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkInFlight(id); err != nil {
		return err
	}
	s.turns[id].Reply = reply
	s.turns[id].Done = true
	s.turns[id].RepliedAt = time.Now()
	return nil
}

// FailTurn marks the in-flight turn as failed after an upstream error. The
// utterance stays on record; the reply remains absent permanently and a new
// attempt starts a fresh turn.
func (s *State) FailTurn(id TurnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkInFlight(id); err != nil {
		return err
	}
	s.turns[id].Failed = true
	return nil
}

func (s *State) checkInFlight(id TurnID) error {
	if id < 0 || int(id) >= len(s.turns) {
		return &StateError{Reason: fmt.Sprintf("turn %d does not exist", id)}
	}
	if int(id) != len(s.turns)-1 {
		return &StateError{Reason: fmt.Sprintf("turn %d is not the last turn", id)}
	}
	t := s.turns[id]
	if t.Done {
		return &StateError{Reason: fmt.Sprintf("turn %d already has a reply", id)}
	}
	if t.Failed {
		return &StateError{Reason: fmt.Sprintf("turn %d already failed", id)}
	}
	return nil
}

// Messages projects the conversation into the wire shape for the
// chat-completion gateway: exactly one leading system message, then one user
// message per turn and one assistant message per completed turn, in
// chronological order. The projection is pure and may be invoked any number
// of times with the same result until the state mutates.
func (s *State) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, 0, 1+2*len(s.turns))
	out = append(out, llm.Message{Role: "system", Content: s.system})
	for _, t := range s.turns {
		out = append(out, llm.Message{Role: "user", Content: t.Utterance})
		if t.Done {
			out = append(out, llm.Message{Role: "assistant", Content: t.Reply})
		}
	}
	return out
}

// Turns returns a snapshot of all turns for rendering. Mutating the returned
// slice does not affect the conversation.
func (s *State) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len reports the number of recorded turns.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
