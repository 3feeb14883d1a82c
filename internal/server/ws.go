package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/repcoach/internal/source"
)

const (
	streamReadLimit = 1 << 16
	streamWriteWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network clients
	},
}

// handleStream analyzes frames sent over a WebSocket. Each text message is a
// frame; each reply is the frame result or an {"error": ...} object.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", ls.id, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)

	s.log.Info("stream opened", "session", ls.id)
	defer s.log.Info("stream closed", "session", ls.id)

	stop := make(chan struct{})
	defer close(stop)
	go closeWithSession(conn, ls, stop)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ls.closed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("stream read failed", "session", ls.id, "error", err)
			}
			return
		}

		if ls.closed() {
			return
		}

		var reply any
		var frame source.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.metrics.FrameErrors.WithLabelValues("invalid_json").Inc()
			reply = map[string]string{"error": "invalid JSON: " + err.Error()}
		} else if result, err := s.analyze(ls, frame); err != nil {
			reply = map[string]string{"error": err.Error()}
		} else {
			reply = result
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			s.log.Warn("stream write failed", "session", ls.id, "error", err)
			return
		}
	}
}

// closeWithSession sends a close frame and drops conn once ls is removed or
// expires. It returns early when stop is closed.
func closeWithSession(conn *websocket.Conn, ls *liveSession, stop <-chan struct{}) {
	select {
	case <-stop:
	case <-ls.done:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, ErrSessionNotFound.Error())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
		conn.Close()
	}
}
