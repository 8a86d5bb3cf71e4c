package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
)

// envelope is the body of every JSON API response.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *AppError `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteError responds with err's envelope. Errors without an AppError in
// their chain are reported as internal and their text is not exposed.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = Wrap(err, CodeInternal, "An unexpected error occurred")
	}
	out := *appErr
	out.RequestID = requestID

	level := slog.LevelWarn
	if out.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("code", string(out.Code)),
		slog.Int("status", out.StatusCode),
		slog.String("message", out.Message),
		slog.String("request_id", requestID),
	}
	if out.Cause != nil {
		attrs = append(attrs, slog.String("cause", out.Cause.Error()))
	}

	if encErr := writeJSON(w, out.StatusCode, envelope{Error: &out}); encErr != nil {
		attrs = append(attrs, slog.String("encode_error", encErr.Error()))
	}
	logger.LogAttrs(context.Background(), level, "request failed", attrs...)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// WriteSuccessWithHeaders sets headers before writing the success envelope.
func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	WriteSuccess(w, data)
}
