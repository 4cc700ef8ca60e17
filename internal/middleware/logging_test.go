package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusConflict, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("hello"))
		}))
		req := httptest.NewRequest("POST", "/api/schedules/1/complete", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d logged %q, want %s", tt.status, out, tt.level)
		}
		if !strings.Contains(out, "path=/api/schedules/1/complete") || !strings.Contains(out, "bytes=5") {
			t.Errorf("log line missing attrs: %q", out)
		}
	}
}

func TestRequestLoggerRecordsOperator(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteOperator(r.Context(), 42)
		w.WriteHeader(http.StatusNoContent)
	})
	RequestLogger(logger)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/equipment", nil))

	if !strings.Contains(buf.String(), "operator_id=42") {
		t.Errorf("log line = %q, want operator_id", buf.String())
	}

	// Outside the logger, noting an operator is a no-op.
	noteOperator(httptest.NewRequest("GET", "/", nil).Context(), 1)
}
