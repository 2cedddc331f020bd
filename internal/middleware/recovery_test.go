package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/founderhub/internal/model"
)

func TestRecoveryMiddleware_PanicReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/coffee-chats/chat-1/complete", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if strings.Contains(body.Message, "nil map write") {
		t.Errorf("message leaks panic value: %q", body.Message)
	}

	logged := buf.String()
	if !strings.Contains(logged, "panic recovered") {
		t.Errorf("log = %q, want panic recovered entry", logged)
	}
	if !strings.Contains(logged, "/api/coffee-chats/chat-1/complete") {
		t.Errorf("log = %q, want request path", logged)
	}
}

func TestRecoveryMiddleware_AbortHandlerIsRepanicked(t *testing.T) {
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}),
	)

	defer func() {
		rec := recover()
		if rec != http.ErrAbortHandler {
			t.Errorf("recovered = %v, want %v", rec, http.ErrAbortHandler)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	t.Error("expected ErrAbortHandler to propagate")
}

func TestRecoveryMiddleware_NoPanicPassesThrough(t *testing.T) {
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
