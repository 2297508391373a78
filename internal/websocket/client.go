package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"helixdesk/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Client is one websocket connection bound to an authenticated viewer.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	viewer model.AuthClaims
}

// NewUpgrader accepts handshakes from the configured browser origins only.
// Requests without an Origin header are non-browser clients and pass.
func NewUpgrader(origins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// Serve upgrades the request and attaches the connection to the hub. The
// caller must have authenticated viewer already. The connection is closed
// with a policy-violation frame once viewer.ExpiresAt passes, so clients
// reconnect with a refreshed session.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, viewer model.AuthClaims) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		viewer: viewer,
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return http.ErrServerClosed
	case <-r.Context().Done():
		_ = conn.Close()
		return r.Context().Err()
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump discards inbound messages; it exists to process control frames
// and notice disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "user_id", c.viewer.UserID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	// nil when the viewer carries no expiry
	var expired <-chan time.Time
	if !c.viewer.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(c.viewer.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-expired:
			closing := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired")
			_ = c.conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
			return
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
