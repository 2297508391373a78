package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// TransferTimeout guards file downloads without buffering them the way
// http.TimeoutHandler does. The whole transfer is capped at maxDuration and
// aborted when no bytes are written for idle.
func TransferTimeout(maxDuration, idle time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(maxDuration))

			tw := &transferWriter{ResponseWriter: w, idle: idle}
			tw.timer = time.AfterFunc(idle, func() {
				_ = rc.SetWriteDeadline(time.Now())
				cancel()
			})
			defer tw.stop()

			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

type transferWriter struct {
	http.ResponseWriter
	mu    sync.Mutex
	timer *time.Timer
	idle  time.Duration
}

func (tw *transferWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	tw.timer.Reset(tw.idle)
	tw.mu.Unlock()
	return tw.ResponseWriter.Write(b)
}

func (tw *transferWriter) stop() {
	tw.mu.Lock()
	tw.timer.Stop()
	tw.mu.Unlock()
}

func (tw *transferWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func (tw *transferWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
