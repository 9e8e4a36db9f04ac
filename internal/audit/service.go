package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. The log is
// append-only; there are no update or delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
//
// Audit is internal-only; these records are never exposed through the share
// surfaces. Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CaseID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogLinkIssued records an operator issuing or regenerating a share link.
func (s *Service) LogLinkIssued(ctx context.Context, caseID, capability, actorUserID, actorRole, ip string) error {
	return s.Append(ctx, Event{
		CaseID:      caseID,
		Type:        EventTypeLinkIssued,
		Capability:  capability,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     "share link issued",
	})
}

// LogAccessGranted records a successful capability-link access.
func (s *Service) LogAccessGranted(ctx context.Context, caseID, capability, ip string) error {
	return s.Append(ctx, Event{
		CaseID:     caseID,
		Type:       EventTypeAccessGranted,
		Capability: capability,
		IPAddress:  ip,
		Message:    "share link access granted",
	})
}

// LogAccessDenied records a rejected capability-link access with its coarse
// denial bucket. caseID comes from the URL path, not the token.
func (s *Service) LogAccessDenied(ctx context.Context, caseID, capability, reason, ip string) error {
	return s.Append(ctx, Event{
		CaseID:     caseID,
		Type:       EventTypeAccessDenied,
		Capability: capability,
		Reason:     reason,
		IPAddress:  ip,
		Message:    "share link access denied",
	})
}
