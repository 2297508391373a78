package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Timeout bounds ordinary API requests. Websocket upgrades pass through
// untouched since http.TimeoutHandler cannot hijack connections.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, message)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}
