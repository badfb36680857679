package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"voice-chatter/internal/assistant"
	"voice-chatter/internal/conversation"
)

// maxAudioBytes caps a single uploaded clip.
const maxAudioBytes = 25 << 20

// WebServer is the browser shell: it serves the recorder page, accepts
// captured audio, and renders the running transcript. It only ever reads
// conversation state through session snapshots; all writes go through the
// assistant.
type WebServer struct {
	assistant *assistant.Assistant
	sessions  *assistant.Manager
	hub       *hub
	server    *http.Server
	port      int
	startTime time.Time
	page      *template.Template
}

func NewWebServer(a *assistant.Assistant, sessions *assistant.Manager, port int) *WebServer {
	return &WebServer{
		assistant: a,
		sessions:  sessions,
		hub:       newHub(),
		port:      port,
		startTime: time.Now(),
		page:      template.Must(template.New("index").Parse(indexHTML)),
	}
}

func (ws *WebServer) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", ws.handleStatus)         // Health check endpoint
	mux.HandleFunc("/api/session", ws.handleNewSession)    // Create a fresh conversation
	mux.HandleFunc("/api/utterance/", ws.handleUtterance)  // Recorded audio in, reply out
	mux.HandleFunc("/api/message/", ws.handleMessage)      // Typed text in, reply out
	mux.HandleFunc("/api/transcript/", ws.handleTranscript) // Read-only transcript snapshot
	mux.HandleFunc("/ws/", ws.handleWS)                    // Live transcript feed
	mux.HandleFunc("/", ws.handleIndex)                    // Recorder page (must be last)

	ws.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", ws.port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("🌐 Starting voice chat web server on http://localhost:%d", ws.port)
	return ws.server.ListenAndServe()
}

func (ws *WebServer) Stop() error {
	if ws.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ws.page.Execute(w, nil); err != nil {
		log.Printf("failed to render index page: %v", err)
	}
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(ws.startTime).String(),
		"sessions": ws.sessions.Len(),
	})
}

func (ws *WebServer) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := ws.sessions.Create()
	log.Printf("🆕 New session %s", s.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID})
}

// handleUtterance accepts one recorded audio clip, transcribes it and runs a
// full turn. The response carries the transcript, the reply text and the
// spoken reply as base64 mp3.
func (ws *WebServer) handleUtterance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := ws.session(w, r, "/api/utterance/")
	if s == nil {
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
	if err != nil {
		http.Error(w, "Failed to read audio", http.StatusBadRequest)
		return
	}
	if len(audio) == 0 {
		http.Error(w, "Empty audio payload", http.StatusBadRequest)
		return
	}

	transcript, err := ws.assistant.Transcribe(r.Context(), audio, audioFormat(r.Header.Get("Content-Type")))
	if err != nil {
		ws.writeError(w, err)
		return
	}
	if strings.TrimSpace(transcript) == "" {
		http.Error(w, "Nothing was recognized in the recording", http.StatusBadRequest)
		return
	}

	ws.respond(w, r, s, transcript)
}

// handleMessage accepts a typed utterance as {"text": "..."}.
func (ws *WebServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := ws.session(w, r, "/api/message/")
	if s == nil {
		return
	}

	var in struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ws.respond(w, r, s, in.Text)
}

func (ws *WebServer) respond(w http.ResponseWriter, r *http.Request, s *assistant.Session, utterance string) {
	reply, err := ws.assistant.Respond(r.Context(), s, utterance)
	synthesisFailed := false
	if err != nil {
		// A reply text alongside the error means the turn is already
		// committed and only synthesis failed; deliver the text anyway.
		if reply.Text == "" {
			ws.writeError(w, err)
			return
		}
		log.Printf("❌ Synthesis failed, replying with text only: %v", err)
		synthesisFailed = true
	}

	ws.hub.broadcast(s.ID, turnEvent{Type: "turn", Utterance: utterance, Reply: reply.Text})

	out := map[string]any{
		"session_id":   s.ID,
		"transcript":   utterance,
		"reply":        reply.Text,
		"reply_audio":  base64.StdEncoding.EncodeToString(reply.Audio),
		"audio_format": "mp3",
	}
	if synthesisFailed {
		out["synthesis_failed"] = true
	}
	writeJSON(w, http.StatusOK, out)
}

func (ws *WebServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := ws.session(w, r, "/api/transcript/")
	if s == nil {
		return
	}

	type turnView struct {
		Utterance string    `json:"utterance"`
		Reply     string    `json:"reply,omitempty"`
		Done      bool      `json:"done"`
		Failed    bool      `json:"failed,omitempty"`
		StartedAt time.Time `json:"started_at"`
	}
	turns := s.Turns()
	out := make([]turnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnView{
			Utterance: t.Utterance,
			Reply:     t.Reply,
			Done:      t.Done,
			Failed:    t.Failed,
			StartedAt: t.StartedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": s.ID, "turns": out})
}

// session resolves the session id from the URL path; it writes the error
// response itself and returns nil when the request cannot proceed.
func (ws *WebServer) session(w http.ResponseWriter, r *http.Request, prefix string) *assistant.Session {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		http.Error(w, "Session ID is required in path "+prefix+"{sessionID}", http.StatusBadRequest)
		return nil
	}
	s := ws.sessions.Get(id)
	if s == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil
	}
	return s
}

func (ws *WebServer) writeError(w http.ResponseWriter, err error) {
	var upstream *assistant.UpstreamError
	var state *conversation.StateError
	switch {
	case errors.Is(err, conversation.ErrEmptyUtterance):
		http.Error(w, "Utterance is empty", http.StatusBadRequest)
	case errors.As(err, &upstream):
		log.Printf("❌ Upstream failure: %v", err)
		http.Error(w, "Upstream service failed, please retry", http.StatusBadGateway)
	case errors.As(err, &state):
		log.Printf("❌ Conversation state violation: %v", err)
		http.Error(w, "Internal conversation error", http.StatusInternalServerError)
	default:
		log.Printf("❌ Unexpected error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// audioFormat maps the upload Content-Type to the transcription format hint.
func audioFormat(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "wav"
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/ogg", "application/ogg":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/x-m4a":
		return "m4a"
	default:
		return "wav"
	}
}
