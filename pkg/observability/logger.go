package observability

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// AccessLogger writes one structured JSON line per HTTP request.
type AccessLogger struct {
	logger *slog.Logger
}

// NewAccessLogger creates an access logger writing to the given output.
func NewAccessLogger(output io.Writer) *AccessLogger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &AccessLogger{logger: slog.New(handler)}
}

// LogRequest records a completed HTTP request.
func (l *AccessLogger) LogRequest(r *http.Request, status int, duration time.Duration) {
	l.logger.Info("request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("remote", r.RemoteAddr),
	)
}
