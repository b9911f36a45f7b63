package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBLogger persists audit events to a SQL database.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// audit_events table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR(36) PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor_id VARCHAR(255),
		target_id VARCHAR(255),
		organization_id VARCHAR(255),
		message TEXT,
		error_message TEXT,
		metadata TEXT
	)`
	if _, err := l.db.Exec(query); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_target ON audit_events(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_organization ON audit_events(organization_id)`,
	}
	for _, idx := range indexes {
		if _, err := l.db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

// Log writes the event to the audit_events table.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (
			id, timestamp, event_type, status, actor_id, target_id,
			organization_id, message, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = l.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, string(event.EventType), string(event.Status),
		nullableString(event.ActorID), nullableString(event.TargetID),
		event.OrganizationID, nullableString(event.Message),
		nullableString(event.ErrorMessage), nullableBytes(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns the most recent events for a target user, newest first.
func (l *DBLogger) List(ctx context.Context, targetID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, timestamp, event_type, status, actor_id, target_id,
		       organization_id, message, error_message, metadata
		FROM audit_events
		WHERE target_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := l.db.QueryContext(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		var actorID, targetID, orgID, message, errMsg, metadata sql.NullString
		err := rows.Scan(
			&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&actorID, &targetID, &orgID, &message, &errMsg, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.ActorID = actorID.String
		event.TargetID = targetID.String
		if orgID.Valid {
			event.OrganizationID = &orgID.String
		}
		event.Message = message.String
		event.ErrorMessage = errMsg.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Close is a no-op; the caller owns the database handle.
func (l *DBLogger) Close() error { return nil }

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
