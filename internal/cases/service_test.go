package cases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assist-platform/internal/capability"
	"assist-platform/internal/config"
)

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	cache *MemoryLinkCache
	k     *capability.Keychain
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	k, err := capability.NewKeychain(config.LinkConfig{Secret: "cases-secret"})
	if err != nil {
		t.Fatalf("keychain: %v", err)
	}

	f := &fixture{
		repo: NewMemoryRepo(),
		k:    k,
		now:  time.Unix(1700000000, 0).UTC(),
	}
	f.cache = NewMemoryLinkCache(func() time.Time { return f.now })

	svc, err := NewService(f.repo, k, ServiceConfig{
		PublicBaseURL: "https://assist.example",
		Cache:         f.cache,
		Clock:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) createCase(t *testing.T) (Case, ShareLink) {
	t.Helper()
	c, link, err := f.svc.CreateCase(context.Background(), CreateCaseRequest{
		OrgID:         "org-1",
		PlateNumber:   "AB123CD",
		ReporterName:  "Mario",
		ReporterPhone: "+39000000000",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c, link
}

func TestCreateCaseIssuesClientLink(t *testing.T) {
	f := newFixture(t)
	c, link := f.createCase(t)

	if c.Status != StatusOpen {
		t.Fatalf("expected open status, got %s", c.Status)
	}
	if link.Capability != capability.TypeClient {
		t.Fatalf("expected client link, got %s", link.Capability)
	}
	if !strings.HasPrefix(link.URL, "https://assist.example/share/client/cases/"+c.ID+"?token=") {
		t.Fatalf("unexpected link URL: %s", link.URL)
	}

	res := f.k.Verify(link.Token, capability.Expectation{Type: capability.TypeClient, CaseID: c.ID}, f.now)
	if !res.IsValid {
		t.Fatalf("expected issued link to verify, got %q", res.Reason)
	}
}

func TestCreateCaseRejectsInvalidArgs(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.CreateCase(context.Background(), CreateCaseRequest{PlateNumber: "AB123CD"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing org, got %v", err)
	}
	_, _, err = f.svc.CreateCase(context.Background(), CreateCaseRequest{OrgID: "org-1"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing plate, got %v", err)
	}
}

func TestGetForOrgHidesOtherOrgsCases(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	if _, err := f.svc.GetForOrg(context.Background(), "org-1", c.ID); err != nil {
		t.Fatalf("expected own case, got %v", err)
	}
	if _, err := f.svc.GetForOrg(context.Background(), "org-2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for foreign org, got %v", err)
	}
}

func TestWorkshopLinkIsLazyAndShared(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	first, err := f.svc.WorkshopLink(context.Background(), "org-1", c.ID)
	if err != nil {
		t.Fatalf("workshop link: %v", err)
	}
	if first.Capability != capability.TypeWorkshop {
		t.Fatalf("expected workshop link, got %s", first.Capability)
	}

	// A second request within the token's life hands out the same token:
	// workshop links are shared, not single-use.
	second, err := f.svc.WorkshopLink(context.Background(), "org-1", c.ID)
	if err != nil {
		t.Fatalf("workshop link: %v", err)
	}
	if second.Token != first.Token {
		t.Fatalf("expected cached token to be reused")
	}
}

func TestWorkshopLinkRegeneratesAfterExpiry(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	first, err := f.svc.WorkshopLink(context.Background(), "org-1", c.ID)
	if err != nil {
		t.Fatalf("workshop link: %v", err)
	}

	// Advance past the workshop TTL; the cached token is dead and a new one
	// must be minted.
	f.now = f.now.Add(169 * time.Hour)
	second, err := f.svc.WorkshopLink(context.Background(), "org-1", c.ID)
	if err != nil {
		t.Fatalf("workshop link: %v", err)
	}
	if second.Token == first.Token {
		t.Fatalf("expected fresh token after expiry")
	}
	res := f.k.Verify(second.Token, capability.Expectation{Type: capability.TypeWorkshop, CaseID: c.ID}, f.now)
	if !res.IsValid {
		t.Fatalf("expected fresh token to verify, got %q", res.Reason)
	}
}

func TestWorkshopLinkThrottled(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	denied := func(ctx context.Context, key string) (func(), bool, error) {
		return nil, false, nil
	}
	svc, err := NewService(f.repo, f.k, ServiceConfig{
		PublicBaseURL: "https://assist.example",
		Limiter:       denied,
		Clock:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	if _, err := svc.WorkshopLink(context.Background(), "org-1", c.ID); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestSetStatusEnforcesTransitions(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	if _, err := f.svc.SetStatus(context.Background(), c.ID, StatusDiagnosing); err != nil {
		t.Fatalf("open -> diagnosing: %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), c.ID, StatusAtWorkshop); err != nil {
		t.Fatalf("diagnosing -> at_workshop: %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), c.ID, StatusOpen); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition going backwards, got %v", err)
	}
}

func TestAttachDiagnosis(t *testing.T) {
	f := newFixture(t)
	c, _ := f.createCase(t)

	if err := f.svc.AttachDiagnosis(context.Background(), c.ID, "diag-7"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DiagnosisID != "diag-7" {
		t.Fatalf("expected diagnosis id recorded, got %q", got.DiagnosisID)
	}

	if err := f.svc.AttachDiagnosis(context.Background(), c.ID, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty diagnosis id, got %v", err)
	}
}
