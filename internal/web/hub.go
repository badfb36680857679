package web

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// turnEvent is pushed to every subscriber of a session when a turn
// completes, so other open tabs keep their transcript current.
type turnEvent struct {
	Type      string `json:"type"`
	Utterance string `json:"utterance"`
	Reply     string `json:"reply"`
}

// hub tracks websocket subscribers per session.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*websocket.Conn]bool)}
}

func (h *hub) add(sessionID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.conns[sessionID][c] = true
}

func (h *hub) remove(sessionID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[sessionID], c)
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

// broadcast writes the event to every subscriber of the session, dropping
// connections that fail.
func (h *hub) broadcast(sessionID string, ev turnEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns[sessionID] {
		if err := c.WriteJSON(ev); err != nil {
			log.Printf("websocket write failed, dropping subscriber: %v", err)
			_ = c.Close()
			delete(h.conns[sessionID], c)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The page is served from the same host; origin is not checked.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	s := ws.session(w, r, "/ws/")
	if s == nil {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	ws.hub.add(s.ID, conn)
	defer func() {
		ws.hub.remove(s.ID, conn)
		_ = conn.Close()
	}()

	// The feed is one-way; read until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
