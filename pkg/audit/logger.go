package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NopLogger discards all events. Used when auditing is not configured.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// LogrusLogger emits audit events as structured log lines.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates a logger that writes events through logrus.
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{log: log}
}

// Log writes the event as a single structured line.
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.ActorID != "" {
		fields["actor_id"] = event.ActorID
	}
	if event.TargetID != "" {
		fields["target_id"] = event.TargetID
	}
	if event.OrganizationID != nil {
		fields["organization_id"] = *event.OrganizationID
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := l.log.WithFields(fields)
	switch event.Status {
	case EventStatusFailure:
		entry.Warn(event.Message)
	case EventStatusDenied:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// Close is a no-op for the logrus logger.
func (l *LogrusLogger) Close() error { return nil }

// MultiLogger fans events out to several loggers. The first error is
// returned after all loggers have seen the event.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to all given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiLogger) Close() error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
