package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{MissingData("no orders"), http.StatusNotFound},
		{JoinMismatch("route missing"), http.StatusBadRequest},
		{DegenerateInput("zero base price"), http.StatusUnprocessableEntity},
		{ModelFit("one class"), http.StatusUnprocessableEntity},
		{Validation("bad"), http.StatusBadRequest},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{NotFound("no such page"), http.StatusNotFound},
		{ServiceUnavailable("loading"), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", tt.err.StatusCode, tt.want)
			}
		})
	}
}

func TestHasCode_WrappedChain(t *testing.T) {
	base := ModelFitWrap(fmt.Errorf("tree build failed"), "fit delay model")
	wrapped := fmt.Errorf("train: %w", base)

	if !HasCode(wrapped, CodeModelFit) {
		t.Error("HasCode should find MODEL_FIT through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeMissingData) {
		t.Error("HasCode matched the wrong code")
	}
	if HasCode(nil, CodeModelFit) {
		t.Error("HasCode(nil) should be false")
	}
	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Error("CodeOf on a plain error should be empty")
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	w := httptest.NewRecorder()

	err := fmt.Errorf("forecast: %w", MissingData("no orders for product").WithDetails("product_id=%s", "P404"))
	WriteError(w, logger, err, "req-1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			Details   string `json:"details"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Error.Code != string(CodeMissingData) {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Details != "product_id=P404" {
		t.Errorf("details = %q", body.Error.Details)
	}
	if body.Error.RequestID != "req-1" {
		t.Errorf("request_id = %q", body.Error.RequestID)
	}
}

func TestWriteError_PlainErrorBecomesInternal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	w := httptest.NewRecorder()

	WriteError(w, logger, fmt.Errorf("disk on fire"), "")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAppError_Message(t *testing.T) {
	err := ModelFitWrap(fmt.Errorf("singular matrix"), "fit elasticity").WithDetails("product=%s", "P003")

	if got, want := err.Error(), "MODEL_FIT: fit elasticity (product=P003): singular matrix"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if StatusFor("SOMETHING_NEW") != http.StatusInternalServerError {
		t.Error("unknown codes should map to 500")
	}
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, map[string]int{"orders": 3}, map[string]string{"Cache-Control": "no-store"})

	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data["orders"] != 3 {
		t.Errorf("body = %+v", body)
	}
}
