package cases

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"assist-platform/internal/capability"

	"github.com/google/uuid"
)

// ErrThrottled means link regeneration for this case is already in flight.
var ErrThrottled = errors.New("cases: link regeneration throttled")

// Limiter caps concurrent link regeneration per key. release must be called
// when done; ok=false means the slot was not acquired.
type Limiter func(ctx context.Context, key string) (release func(), ok bool, err error)

// ShareLink is a capability link ready to hand to a client or workshop.
type ShareLink struct {
	URL        string          `json:"url"`
	Token      string          `json:"token"`
	Capability capability.Type `json:"capability"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Service owns the case lifecycle and share-link issuance.
//
// Client links are issued once at case creation. Workshop links are issued
// lazily on request and cached: they are meant to be shared by several people
// at the garage, so handing out the same unexpired token is the point, not an
// optimization.
type Service struct {
	repo     Repository
	keychain *capability.Keychain
	cache    LinkCache
	limiter  Limiter

	baseURL    string
	tokenParam string
	clock      func() time.Time
}

type ServiceConfig struct {
	PublicBaseURL string
	TokenParam    string

	// Cache and Limiter are optional; without them every WorkshopLink call
	// mints a fresh token.
	Cache   LinkCache
	Limiter Limiter

	// Clock defaults to time.Now. Tests inject it.
	Clock func() time.Time
}

func NewService(repo Repository, keychain *capability.Keychain, cfg ServiceConfig) (*Service, error) {
	if repo == nil {
		return nil, errors.New("cases: repository is required")
	}
	if keychain == nil {
		return nil, errors.New("cases: keychain is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("cases: public base URL is required")
	}
	if cfg.TokenParam == "" {
		cfg.TokenParam = "token"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Service{
		repo:       repo,
		keychain:   keychain,
		cache:      cfg.Cache,
		limiter:    cfg.Limiter,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		tokenParam: cfg.TokenParam,
		clock:      cfg.Clock,
	}, nil
}

type CreateCaseRequest struct {
	OrgID         string `json:"-"`
	VehicleID     string `json:"vehicle_id"`
	PlateNumber   string `json:"plate_number"`
	ReporterName  string `json:"reporter_name"`
	ReporterPhone string `json:"reporter_phone"`
}

// CreateCase persists a new case and issues its client link in the same call:
// the vehicle owner gets their link the moment the case exists.
func (s *Service) CreateCase(ctx context.Context, req CreateCaseRequest) (Case, ShareLink, error) {
	if req.OrgID == "" {
		return Case{}, ShareLink{}, fmt.Errorf("%w: org id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.PlateNumber) == "" {
		return Case{}, ShareLink{}, fmt.Errorf("%w: plate number is required", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	c := Case{
		ID:            uuid.NewString(),
		OrgID:         req.OrgID,
		VehicleID:     strings.TrimSpace(req.VehicleID),
		PlateNumber:   strings.TrimSpace(req.PlateNumber),
		ReporterName:  strings.TrimSpace(req.ReporterName),
		ReporterPhone: strings.TrimSpace(req.ReporterPhone),
		Status:        StatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return Case{}, ShareLink{}, err
	}

	link, err := s.issueLink(capability.TypeClient, c, now)
	if err != nil {
		return Case{}, ShareLink{}, err
	}
	return c, link, nil
}

func (s *Service) Get(ctx context.Context, id string) (Case, error) {
	return s.repo.Get(ctx, id)
}

// GetForOrg fetches a case scoped to the operator's org. A case belonging to
// another org reports not-found rather than forbidden.
func (s *Service) GetForOrg(ctx context.Context, orgID, id string) (Case, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if c.OrgID != orgID {
		return Case{}, ErrNotFound
	}
	return c, nil
}

// ClientLink mints a fresh client link for an existing case.
func (s *Service) ClientLink(ctx context.Context, orgID, caseID string) (ShareLink, error) {
	c, err := s.GetForOrg(ctx, orgID, caseID)
	if err != nil {
		return ShareLink{}, err
	}
	return s.issueLink(capability.TypeClient, c, s.clock().UTC())
}

// WorkshopLink returns the case's current workshop link, minting one lazily.
// An unexpired cached token is reused so everyone at the workshop gets the
// same link; a fresh token is only minted when none is live.
func (s *Service) WorkshopLink(ctx context.Context, orgID, caseID string) (ShareLink, error) {
	c, err := s.GetForOrg(ctx, orgID, caseID)
	if err != nil {
		return ShareLink{}, err
	}
	now := s.clock().UTC()

	if link, ok := s.cachedWorkshopLink(ctx, c, now); ok {
		return link, nil
	}

	if s.limiter != nil {
		release, ok, err := s.limiter(ctx, "case:"+c.ID+":link_regen")
		if err != nil {
			return ShareLink{}, err
		}
		if !ok {
			return ShareLink{}, ErrThrottled
		}
		defer release()

		// Someone may have regenerated while we waited for the slot.
		if link, ok := s.cachedWorkshopLink(ctx, c, now); ok {
			return link, nil
		}
	}

	link, err := s.issueLink(capability.TypeWorkshop, c, now)
	if err != nil {
		return ShareLink{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, c.ID, link.Token, link.ExpiresAt.Sub(now)); err != nil {
			// Cache trouble must not block the operator; the link is valid.
			return link, nil
		}
	}
	return link, nil
}

func (s *Service) cachedWorkshopLink(ctx context.Context, c Case, now time.Time) (ShareLink, bool) {
	if s.cache == nil {
		return ShareLink{}, false
	}
	tok, err := s.cache.Get(ctx, c.ID)
	if err != nil {
		return ShareLink{}, false
	}
	// Never trust the cache blindly: the token must still verify for this
	// case and still be alive.
	res := s.keychain.Verify(tok, capability.Expectation{Type: capability.TypeWorkshop, CaseID: c.ID}, now)
	if !res.IsValid {
		return ShareLink{}, false
	}
	return ShareLink{
		URL:        s.linkURL(capability.TypeWorkshop, c.ID, tok),
		Token:      tok,
		Capability: capability.TypeWorkshop,
		ExpiresAt:  res.Payload.ExpiryTime(),
	}, true
}

// SetStatus advances the case lifecycle.
func (s *Service) SetStatus(ctx context.Context, id string, to CaseStatus) (Case, error) {
	return s.repo.SetStatus(ctx, id, to)
}

// AttachDiagnosis records the backend's diagnosis report id on the case.
func (s *Service) AttachDiagnosis(ctx context.Context, id, diagnosisID string) error {
	if diagnosisID == "" {
		return fmt.Errorf("%w: diagnosis id is required", ErrInvalidArgument)
	}
	return s.repo.SetDiagnosisID(ctx, id, diagnosisID)
}

func (s *Service) issueLink(typ capability.Type, c Case, now time.Time) (ShareLink, error) {
	tok, err := s.keychain.Issue(typ, c.ID, now, capability.IssueOptions{
		VehicleID:   c.VehicleID,
		DiagnosisID: c.DiagnosisID,
	})
	if err != nil {
		return ShareLink{}, err
	}

	res := s.keychain.Verify(tok, capability.Expectation{Type: typ, CaseID: c.ID}, now)
	if !res.IsValid {
		return ShareLink{}, errors.New("cases: freshly issued link failed verification")
	}

	return ShareLink{
		URL:        s.linkURL(typ, c.ID, tok),
		Token:      tok,
		Capability: typ,
		ExpiresAt:  res.Payload.ExpiryTime(),
	}, nil
}

func (s *Service) linkURL(typ capability.Type, caseID, token string) string {
	return fmt.Sprintf("%s/share/%s/cases/%s?%s=%s",
		s.baseURL, typ, url.PathEscape(caseID), s.tokenParam, url.QueryEscape(token))
}
