package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MB, comfortably above a single audio chunk
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser client is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMessage is a JSON text frame on the ingest socket. Binary frames are
// audio; text frames change session settings.
type controlMessage struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
}

// handleIngest accepts the audio ingest websocket. Binary frames are fed into
// the session's buffer; text frames carry control messages.
func (h *HTTPServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Ingest upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = fmt.Sprintf("call-%d", time.Now().UnixNano())
	}

	s := h.sessionMgr.CreateSession(sessionID)
	conn.SetReadLimit(maxMessageSize)

	h.logger.Info("Ingest connected",
		slog.String("session_id", sessionID),
		slog.String("remote", r.RemoteAddr),
	)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Ingest read error",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := h.sessionMgr.AddChunk(sessionID, data); err != nil {
				h.logger.Warn("Chunk rejected",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}

		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				h.logger.Warn("Malformed control message",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
				continue
			}
			h.handleControl(s.ID, msg)
		}
	}

	// The ingest connection owns the session's lifetime.
	h.sessionMgr.RemoveSession(sessionID)
	h.logger.Info("Ingest disconnected", slog.String("session_id", sessionID))
}

// handleControl applies one control message to a session.
func (h *HTTPServer) handleControl(sessionID string, msg controlMessage) {
	switch msg.Type {
	case "set_language":
		if msg.Language == "" {
			return
		}
		if s, exists := h.sessionMgr.GetSession(sessionID); exists {
			s.SetLanguage(msg.Language)
			h.logger.Info("Session language changed",
				slog.String("session_id", sessionID),
				slog.String("language", msg.Language),
			)
		}

	default:
		h.logger.Debug("Ignoring unknown control message",
			slog.String("session_id", sessionID),
			slog.String("type", msg.Type),
		)
	}
}

// wsSubscriber adapts a websocket connection to the hub's Subscriber
// interface. Writes are serialized; the hub delivers from one goroutine but
// the initial snapshot is written from the handler.
type wsSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSubscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// handleCoach accepts a coaching UI subscriber. The subscriber immediately
// receives the current snapshot and then every published update until it
// disconnects.
func (h *HTTPServer) handleCoach(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Coach upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// The UI may connect before the first audio arrives.
	s := h.sessionMgr.CreateSession(sessionID)
	hb := h.sessionMgr.Hub()

	sub := &wsSubscriber{conn: conn}
	hb.Register(sub)
	defer hb.Unregister(sub)

	h.logger.Info("Coach subscriber connected",
		slog.String("session_id", sessionID),
		slog.String("remote", r.RemoteAddr),
	)

	// Initial snapshot so the UI renders without waiting for a cycle.
	snapshot, err := json.Marshal(h.sessionMgr.BuildSnapshot(s))
	if err == nil {
		if err := sub.Send(snapshot); err != nil {
			h.logger.Warn("Initial snapshot send failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	// Block until the client goes away; inbound frames are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.logger.Info("Coach subscriber disconnected", slog.String("session_id", sessionID))
}
