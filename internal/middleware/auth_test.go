package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/database"
	"github.com/dukerupert/gymops/internal/store"
)

// setupOperator returns the operator store and a valid bearer token.
func setupOperator(t *testing.T) (*store.OperatorStore, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	secret, hash, err := auth.NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	ops := store.NewOperatorStore(db)
	op, err := ops.Create("Dana", "dana@example.com", hash)
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	return ops, auth.FormatToken(op.ID, secret)
}

func protected(t *testing.T, ops *store.OperatorStore, reached *auth.AuthContext) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RequireOperator(ops, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("AuthContext missing in handler")
		}
		*reached = ac
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequireOperatorValidToken(t *testing.T) {
	ops, token := setupOperator(t)
	var got auth.AuthContext
	handler := protected(t, ops, &got)

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got.Name != "Dana" || got.OperatorID == 0 {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireOperatorQueryToken(t *testing.T) {
	ops, token := setupOperator(t)
	var got auth.AuthContext
	handler := protected(t, ops, &got)

	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestRequireOperatorRejects(t *testing.T) {
	ops, token := setupOperator(t)
	var got auth.AuthContext
	handler := protected(t, ops, &got)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + token},
		{"malformed", "Bearer nonsense"},
		{"wrong secret", "Bearer 1.deadbeef"},
		{"unknown operator", "Bearer 999.deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}
