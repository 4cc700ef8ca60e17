package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/model"
)

// OperatorLookup is the part of store.OperatorStore auth needs.
type OperatorLookup interface {
	GetByID(id int64) (*model.Operator, error)
}

// RequireOperator validates "Authorization: Bearer <operatorID>.<secret>"
// and populates AuthContext. WebSocket clients, which cannot set headers,
// may pass the same token as the "token" query parameter.
func RequireOperator(operators OperatorLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			id, secret, err := auth.ParseToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			op, err := operators.GetByID(id)
			if err != nil {
				logger.Error("lookup operator", "operator_id", id, "error", err)
				unauthorized(w)
				return
			}
			if op == nil || !auth.CheckSecret(op.TokenHash, secret) {
				unauthorized(w)
				return
			}

			noteOperator(r.Context(), op.ID)
			ctx := auth.WithAuth(r.Context(), auth.AuthContext{OperatorID: op.ID, Name: op.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gymops"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
