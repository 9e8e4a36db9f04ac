package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - case_id is required: every audited action targets exactly one case.
// - actor and ip capture are best-effort; never block the guarded path on audit.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.
type Event struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated operator causing the event, when one
	// exists. Share-link access has no actor; Capability is set instead.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Capability is the link role (client/workshop) involved, if any.
	Capability string `json:"capability,omitempty" db:"capability"`

	// Reason carries the coarse denial bucket for access_denied events.
	Reason string `json:"reason,omitempty" db:"reason"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeLinkIssued    EventType = "link_issued"
	EventTypeAccessGranted EventType = "access_granted"
	EventTypeAccessDenied  EventType = "access_denied"
)
