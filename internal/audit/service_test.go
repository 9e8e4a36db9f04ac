package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresCaseAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeLinkIssued}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CaseID: "case-1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogLinkIssued(context.Background(), "case-1", "workshop", "u-1", "dispatcher", "1.2.3.4"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogAccessDenied(context.Background(), "case-1", "client", "expired", "5.6.7.8"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeLinkIssued || evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("unexpected first event: %+v", evs[0])
	}
	if evs[1].Type != EventTypeAccessDenied || evs[1].Reason != "expired" {
		t.Fatalf("unexpected second event: %+v", evs[1])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}
