package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseMeter records what a handler wrote so the access log can report it.
type responseMeter struct {
	http.ResponseWriter
	status  int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

// Unwrap exposes the original writer to http.ResponseController; the
// websocket upgrade hijacks through it.
func (m *responseMeter) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}

// accessEntry collects request facts learned further down the chain.
type accessEntry struct {
	operatorID int64
}

type accessKey struct{}

// noteOperator attaches the authenticated operator to the access log line.
func noteOperator(ctx context.Context, id int64) {
	if e, ok := ctx.Value(accessKey{}).(*accessEntry); ok {
		e.operatorID = id
	}
}

// RequestLogger writes one access log line per request. 4xx responses log
// at WARN and 5xx at ERROR.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}
			entry := &accessEntry{}

			next.ServeHTTP(meter, r.WithContext(context.WithValue(r.Context(), accessKey{}, entry)))

			level := slog.LevelInfo
			if meter.status >= 500 {
				level = slog.LevelError
			} else if meter.status >= 400 {
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", meter.status),
				slog.Int("bytes", meter.written),
				slog.Duration("duration", time.Since(began)),
				slog.String("remote", RealIP(r)),
			}
			if entry.operatorID != 0 {
				attrs = append(attrs, slog.Int64("operator_id", entry.operatorID))
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}
