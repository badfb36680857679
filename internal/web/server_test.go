package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-chatter/internal/assistant"
	"voice-chatter/internal/llm"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.reply, Model: "fake"}, nil
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	return f.text, f.err
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func newTestServer(gen *fakeLLM, stt *fakeSTT) (*WebServer, *assistant.Session) {
	return newTestServerWithTTS(gen, stt, &fakeTTS{audio: []byte("mp3")})
}

func newTestServerWithTTS(gen *fakeLLM, stt *fakeSTT, tts *fakeTTS) (*WebServer, *assistant.Session) {
	a := assistant.New(gen, stt, tts)
	sessions := assistant.NewManager("sys")
	ws := NewWebServer(a, sessions, 0)
	return ws, sessions.Create()
}

func TestHandleNewSession(t *testing.T) {
	ws, _ := newTestServer(&fakeLLM{reply: "hi"}, &fakeSTT{})

	rr := httptest.NewRecorder()
	ws.handleNewSession(rr, httptest.NewRequest("POST", "/api/session", nil))
	if rr.Code != 201 {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["session_id"] == "" {
		t.Fatalf("missing session id: %s", rr.Body.String())
	}
	if ws.sessions.Get(out["session_id"]) == nil {
		t.Fatalf("session not registered")
	}
}

func TestHandleMessage_HappyPath(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{reply: "Hi there"}, &fakeSTT{})

	body := strings.NewReader(`{"text":"Hello"}`)
	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/"+s.ID, body))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out struct {
		Transcript  string `json:"transcript"`
		Reply       string `json:"reply"`
		ReplyAudio  string `json:"reply_audio"`
		AudioFormat string `json:"audio_format"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Transcript != "Hello" || out.Reply != "Hi there" || out.AudioFormat != "mp3" {
		t.Fatalf("unexpected response: %+v", out)
	}
	audio, err := base64.StdEncoding.DecodeString(out.ReplyAudio)
	if err != nil || string(audio) != "mp3" {
		t.Fatalf("bad audio payload: %q %v", out.ReplyAudio, err)
	}

	turns := s.Turns()
	if len(turns) != 1 || !turns[0].Done {
		t.Fatalf("turn not recorded: %+v", turns)
	}
}

func TestHandleMessage_BlankTextRejected(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{reply: "unused"}, &fakeSTT{})

	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/"+s.ID, strings.NewReader(`{"text":"  "}`)))
	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(s.Turns()) != 0 {
		t.Fatalf("blank input recorded a turn")
	}
}

func TestHandleMessage_UpstreamFailure(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{err: fmt.Errorf("timeout")}, &fakeSTT{})

	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/"+s.ID, strings.NewReader(`{"text":"Ping"}`)))
	if rr.Code != 502 {
		t.Fatalf("expected 502, got %d", rr.Code)
	}

	turns := s.Turns()
	if len(turns) != 1 || turns[0].Done || turns[0].Reply != "" {
		t.Fatalf("expected one reply-less turn, got %+v", turns)
	}
}

func TestHandleMessage_SynthesisFailureKeepsReplyText(t *testing.T) {
	tts := &fakeTTS{err: fmt.Errorf("quota exceeded")}
	ws, s := newTestServerWithTTS(&fakeLLM{reply: "Hi there"}, &fakeSTT{}, tts)

	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/"+s.ID, strings.NewReader(`{"text":"Hello"}`)))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out struct {
		Reply           string `json:"reply"`
		ReplyAudio      string `json:"reply_audio"`
		SynthesisFailed bool   `json:"synthesis_failed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The turn is committed before synthesis; its text must not be dropped.
	if out.Reply != "Hi there" || out.ReplyAudio != "" || !out.SynthesisFailed {
		t.Fatalf("unexpected response: %+v", out)
	}

	turns := s.Turns()
	if len(turns) != 1 || !turns[0].Done || turns[0].Reply != "Hi there" {
		t.Fatalf("turn should stay committed: %+v", turns)
	}
}

func TestHandleMessage_UnknownSession(t *testing.T) {
	ws, _ := newTestServer(&fakeLLM{reply: "hi"}, &fakeSTT{})

	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/nope", strings.NewReader(`{"text":"Hello"}`)))
	if rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleUtterance_TranscribesAndReplies(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{reply: "Hi there"}, &fakeSTT{text: "Hello"})

	req := httptest.NewRequest("POST", "/api/utterance/"+s.ID, bytes.NewReader([]byte("wav-bytes")))
	req.Header.Set("Content-Type", "audio/wav")
	rr := httptest.NewRecorder()
	ws.handleUtterance(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out struct {
		Transcript string `json:"transcript"`
		Reply      string `json:"reply"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Transcript != "Hello" || out.Reply != "Hi there" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestHandleUtterance_EmptyBody(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{reply: "hi"}, &fakeSTT{})

	req := httptest.NewRequest("POST", "/api/utterance/"+s.ID, bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	ws.handleUtterance(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleTranscript(t *testing.T) {
	ws, s := newTestServer(&fakeLLM{reply: "Hi"}, &fakeSTT{})

	rr := httptest.NewRecorder()
	ws.handleMessage(rr, httptest.NewRequest("POST", "/api/message/"+s.ID, strings.NewReader(`{"text":"Hello"}`)))
	if rr.Code != 200 {
		t.Fatalf("seed turn failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	ws.handleTranscript(rr, httptest.NewRequest("GET", "/api/transcript/"+s.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var out struct {
		SessionID string `json:"session_id"`
		Turns     []struct {
			Utterance string `json:"utterance"`
			Reply     string `json:"reply"`
			Done      bool   `json:"done"`
		} `json:"turns"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID != s.ID || len(out.Turns) != 1 {
		t.Fatalf("unexpected transcript: %s", rr.Body.String())
	}
	if out.Turns[0].Utterance != "Hello" || out.Turns[0].Reply != "Hi" || !out.Turns[0].Done {
		t.Fatalf("unexpected turn: %+v", out.Turns[0])
	}
}

func TestAudioFormat(t *testing.T) {
	cases := map[string]string{
		"audio/wav":                "wav",
		"audio/webm;codecs=opus":   "webm",
		"audio/ogg":                "ogg",
		"audio/mpeg":               "mp3",
		"":                         "wav",
		"application/octet-stream": "wav",
	}
	for ct, want := range cases {
		if got := audioFormat(ct); got != want {
			t.Fatalf("audioFormat(%q) = %q, want %q", ct, got, want)
		}
	}
}
