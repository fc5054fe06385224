package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fablebot/fable-api/internal/redact"
)

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithText writes a plain-text response with the given status code.
// The chat platform contract expects plain bodies for rejections, not JSON
// error envelopes.
func RespondWithText(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write text response", "error", err)
	}
}

// RespondWithEmptyAck writes the `{}` acknowledgement body. The queue and
// the chat platform both interpret it as "received, nothing to render".
func RespondWithEmptyAck(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, struct{}{})
}

// LogHandlerError logs an error that is deliberately not surfaced to the
// caller, with the trace ID for correlation. The logged error is redacted.
func LogHandlerError(r *http.Request, message string, err error) {
	slog.Error(message,
		"trace_id", GetTraceID(r.Context()),
		"path", r.URL.Path,
		"method", r.Method,
		"error", redact.Error(err))
}
