package middleware

import (
	"net/http"
	"runtime/debug"

	"moneymover/internal/logging"
)

// The error body is spelled out here rather than routed through the handler
// package, which would close an import cycle with the router.
const internalErrorBody = `{"success":false,"data":null,"error":{"code":"INTERNAL_ERROR","message":"An unexpected error occurred"}}`

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log := logging.FromContext(r.Context())
				log.Error("panic recovered", "error", err, "stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(internalErrorBody))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
