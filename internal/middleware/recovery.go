package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered",
				"request_id", RequestIDFromContext(r.Context()),
				"error", fmt.Sprintf("%v", recovered),
				"stack", string(debug.Stack()),
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
		}()

		next.ServeHTTP(w, r)
	})
}
