package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeRoleChange        EventType = "authz.role_change"
	EventTypePermissionGrant   EventType = "authz.permission_grant"
	EventTypeTenancyChange     EventType = "authz.tenancy_change"
	EventTypeAccessDenied      EventType = "authz.access_denied"
	EventTypeClaimsInvalidated EventType = "authz.claims_invalidated"

	// Membership events
	EventTypeMemberAdd        EventType = "member.add"
	EventTypeMemberRoleChange EventType = "member.role_change"

	// Migration events
	EventTypeMigrationMember       EventType = "migration.member"
	EventTypeMigrationOrganization EventType = "migration.organization"
	EventTypeMigrationIndependent  EventType = "migration.independent"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
	EventStatusSkipped EventStatus = "skipped"
)

// Event represents a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is the user who performed the action, Target the user it was
	// performed on. They coincide for self-service operations.
	ActorID        string  `json:"actor_id,omitempty"`
	TargetID       string  `json:"target_id,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with the current time and a fresh id.
// Ids are assigned client side so the insert works the same against any
// SQL backend.
func NewEvent(eventType EventType, status EventStatus, actorID, targetID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		ActorID:   actorID,
		TargetID:  targetID,
	}
}

// WithOrganization attaches the organization the event happened in.
func (e *Event) WithOrganization(orgID string) *Event {
	e.OrganizationID = &orgID
	return e
}

// WithMessage attaches a human-readable description.
func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// WithError attaches the error that failed the operation.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// WithMetadata attaches a single metadata entry.
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}
