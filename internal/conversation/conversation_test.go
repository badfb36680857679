package conversation

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestAppendCompleteAndMessageShape(t *testing.T) {
	s := New("be helpful")

	pairs := [][2]string{
		{"Hello", "Hi there"},
		{"What is 2+2?", "4"},
		{"And 3+3?", "6"},
	}
	for _, p := range pairs {
		id, err := s.AppendUserUtterance(p[0])
		if err != nil {
			t.Fatalf("append %q: %v", p[0], err)
		}
		if err := s.CompleteTurn(id, p[1]); err != nil {
			t.Fatalf("complete %q: %v", p[0], err)
		}
	}

	turns := s.Turns()
	if len(turns) != len(pairs) {
		t.Fatalf("expected %d turns, got %d", len(pairs), len(turns))
	}
	for i, p := range pairs {
		if turns[i].Utterance != p[0] || turns[i].Reply != p[1] || !turns[i].Done {
			t.Fatalf("unexpected turn %d: %+v", i, turns[i])
		}
	}

	msgs := s.Messages()
	if len(msgs) != 1+2*len(pairs) {
		t.Fatalf("expected %d messages, got %d", 1+2*len(pairs), len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be helpful" {
		t.Fatalf("unexpected system message: %+v", msgs[0])
	}
	for i, p := range pairs {
		u, a := msgs[1+2*i], msgs[2+2*i]
		if u.Role != "user" || u.Content != p[0] {
			t.Fatalf("unexpected user message %d: %+v", i, u)
		}
		if a.Role != "assistant" || a.Content != p[1] {
			t.Fatalf("unexpected assistant message %d: %+v", i, a)
		}
	}
}

func TestMessagesIdempotent(t *testing.T) {
	s := New("")
	id, _ := s.AppendUserUtterance("hello")
	_ = s.CompleteTurn(id, "hi")
	if _, err := s.AppendUserUtterance("pending"); err != nil {
		t.Fatalf("append: %v", err)
	}

	first := s.Messages()
	second := s.Messages()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection not idempotent:\n%v\n%v", first, second)
	}
}

func TestMessagesSkipPendingReply(t *testing.T) {
	s := New("sys")
	_, _ = s.AppendUserUtterance("in flight")

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected system+user, got %d messages", len(msgs))
	}
	if msgs[1].Role != "user" || msgs[1].Content != "in flight" {
		t.Fatalf("unexpected message: %+v", msgs[1])
	}
}

func TestAppendRejectsBlankUtterances(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			s := New("")
			if _, err := s.AppendUserUtterance(text); !errors.Is(err, ErrEmptyUtterance) {
				t.Fatalf("expected ErrEmptyUtterance, got %v", err)
			}
			if s.Len() != 0 {
				t.Fatalf("state changed after rejected append: %d turns", s.Len())
			}
		})
	}
}

func TestAppendWhileInFlight(t *testing.T) {
	s := New("")
	if _, err := s.AppendUserUtterance("first"); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := s.AppendUserUtterance("second")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("state changed after rejected append: %d turns", s.Len())
	}
}

func TestCompleteTurnInvariants(t *testing.T) {
	s := New("")
	first, _ := s.AppendUserUtterance("one")
	if err := s.CompleteTurn(first, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	second, _ := s.AppendUserUtterance("two")

	cases := []struct {
		name string
		id   TurnID
	}{
		{"missing turn", TurnID(99)},
		{"negative id", TurnID(-1)},
		{"not the last turn", first},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CompleteTurn(tc.id, "late")
			var se *StateError
			if !errors.As(err, &se) {
				t.Fatalf("expected StateError, got %v", err)
			}
		})
	}

	if err := s.CompleteTurn(second, "fine"); err != nil {
		t.Fatalf("complete second: %v", err)
	}
	if err := s.CompleteTurn(second, "again"); err == nil {
		t.Fatalf("double completion must fail")
	}
	turns := s.Turns()
	if turns[0].Reply != "done" || turns[1].Reply != "fine" {
		t.Fatalf("state corrupted: %+v", turns)
	}
}

func TestFailTurnKeepsUtteranceAndAllowsNewTurn(t *testing.T) {
	s := New("sys")
	id, _ := s.AppendUserUtterance("Ping")
	if err := s.FailTurn(id); err != nil {
		t.Fatalf("fail: %v", err)
	}

	turns := s.Turns()
	if len(turns) != 1 || turns[0].Done || !turns[0].Failed || turns[0].Reply != "" {
		t.Fatalf("unexpected failed turn state: %+v", turns)
	}

	// A failed turn cannot be completed afterwards.
	if err := s.CompleteTurn(id, "late"); err == nil {
		t.Fatalf("completing a failed turn must fail")
	}

	// A retry starts a fresh turn; the orphaned utterance stays in context.
	next, err := s.AppendUserUtterance("Ping")
	if err != nil {
		t.Fatalf("append after failure: %v", err)
	}
	if err := s.CompleteTurn(next, "Pong"); err != nil {
		t.Fatalf("complete retry: %v", err)
	}

	msgs := s.Messages()
	want := []string{"system", "user", "user", "assistant"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, role := range want {
		if msgs[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, msgs[i].Role)
		}
	}
}

func TestDefaultSystemPrompt(t *testing.T) {
	s := New("   ")
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != "system" || msgs[0].Content != DefaultSystemPrompt {
		t.Fatalf("expected default system message, got %+v", msgs)
	}
}

func TestTurnsSnapshotIsACopy(t *testing.T) {
	s := New("")
	id, _ := s.AppendUserUtterance("hello")
	_ = s.CompleteTurn(id, "hi")

	turns := s.Turns()
	turns[0].Reply = "mutated"
	if s.Turns()[0].Reply != "hi" {
		t.Fatalf("internal state mutated via returned slice")
	}
}
