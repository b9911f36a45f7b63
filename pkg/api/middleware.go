package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/contextkeys"
	"github.com/tasknest/tasknest/pkg/httputil"
	"github.com/tasknest/tasknest/pkg/observability"
)

// ClaimsMiddleware verifies the bearer claims token and attaches the
// decoded snapshot to the request context.
type ClaimsMiddleware struct {
	codec    *claims.Codec
	optional bool // when true, requests without a credential pass through
}

// NewClaimsMiddleware creates the claims verification middleware.
func NewClaimsMiddleware(codec *claims.Codec, optional bool) *ClaimsMiddleware {
	return &ClaimsMiddleware{codec: codec, optional: optional}
}

// Handler wraps an HTTP handler with claims verification.
func (m *ClaimsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		snap, err := m.codec.Decode(parts[1])
		if err != nil {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid or expired claims token")
			return
		}

		ctx := contextkeys.WithClaims(r.Context(), snap)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestMiddleware assigns a request ID, records metrics, and writes the
// access log line.
type RequestMiddleware struct {
	log     *logrus.Logger
	access  *observability.AccessLogger
	metrics *observability.Metrics
}

// NewRequestMiddleware creates the outermost request middleware.
func NewRequestMiddleware(log *logrus.Logger, access *observability.AccessLogger, metrics *observability.Metrics) *RequestMiddleware {
	return &RequestMiddleware{log: log, access: access, metrics: metrics}
}

// Handler wraps an HTTP handler with request bookkeeping.
func (m *RequestMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := contextkeys.WithRequestID(r.Context(), uuid.NewString())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)
		if m.metrics != nil {
			m.metrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, duration)
		}
		if m.access != nil {
			m.access.LogRequest(r, rec.status, duration)
		}
	})
}
