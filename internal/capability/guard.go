package capability

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DenyReason is one of the four coarse user-facing denial buckets. The guard
// never leaks which underlying check failed beyond these.
type DenyReason string

const (
	DenyMissing   DenyReason = "missing"
	DenyInvalid   DenyReason = "invalid"
	DenyExpired   DenyReason = "expired"
	DenyWrongCase DenyReason = "wrong_case"
)

// denyCopy is the user-facing message per denial bucket. Every denial is
// terminal: the only recovery is an operator issuing a fresh link.
var denyCopy = map[DenyReason]string{
	DenyMissing:   "this link is missing its access token",
	DenyInvalid:   "this link is not valid",
	DenyExpired:   "this link has expired; ask for a new one",
	DenyWrongCase: "this link does not grant access to this case",
}

// Grant is the validated capability made available to handlers downstream of
// the guard.
type Grant struct {
	Type        Type
	CaseID      string
	VehicleID   string
	DiagnosisID string

	// RawToken is the still-opaque token string, kept so it can be presented
	// as a bearer credential on outbound calls.
	RawToken  string
	ExpiresAt time.Time
}

// CredentialSink receives the raw token for the scope of one guarded request.
// The release func must be called on teardown; the guard guarantees it.
type CredentialSink interface {
	AcquireScoped(token string) (release func())
}

// GuardOptions tunes RequireCapability. Zero values take the defaults used
// across the share routes.
type GuardOptions struct {
	// TokenParam is the query parameter carrying the token. Default "token".
	TokenParam string
	// CaseParam is the route path parameter carrying the case id. Default "case_id".
	CaseParam string

	// Credentials, when set, holds the scoped token for the request lifetime
	// so outbound calls can fall back to it.
	Credentials CredentialSink

	// Now is the verification clock; defaults to time.Now. Tests inject it.
	Now func() time.Time

	// OnGrant and OnDeny are best-effort observation hooks (audit). They must
	// not block or fail the guarded path.
	OnGrant func(c *gin.Context, g Grant)
	OnDeny  func(c *gin.Context, reason DenyReason)
}

func (o GuardOptions) withDefaults() GuardOptions {
	if o.TokenParam == "" {
		o.TokenParam = "token"
	}
	if o.CaseParam == "" {
		o.CaseParam = "case_id"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// RequireCapability gates a share route until the link token is proven valid
// for the case in the URL and the expected capability type.
//
// Verification completes fully before any protected handler runs; on grant the
// decoded claims are placed in the request context and the raw token is held
// on the credential sink until the request is done.
func RequireCapability(k *Keychain, expected Type, opts GuardOptions) gin.HandlerFunc {
	opts = opts.withDefaults()

	return func(c *gin.Context) {
		token := c.Query(opts.TokenParam)
		if token == "" {
			deny(c, opts, DenyMissing)
			return
		}
		caseID := c.Param(opts.CaseParam)
		if caseID == "" {
			// Guard misconfiguration or malformed route; indistinguishable
			// from a bad link on purpose.
			deny(c, opts, DenyInvalid)
			return
		}

		res := k.Verify(token, Expectation{Type: expected, CaseID: caseID}, opts.Now())
		if !res.IsValid {
			deny(c, opts, classify(res))
			return
		}

		grant := Grant{
			Type:        res.Payload.Type,
			CaseID:      res.Payload.CaseID,
			VehicleID:   res.Payload.VehicleID,
			DiagnosisID: res.Payload.DiagnosisID,
			RawToken:    token,
			ExpiresAt:   res.Payload.ExpiryTime(),
		}
		c.Request = c.Request.WithContext(WithGrant(c.Request.Context(), grant))

		if opts.OnGrant != nil {
			opts.OnGrant(c, grant)
		}

		if opts.Credentials != nil {
			release := opts.Credentials.AcquireScoped(token)
			defer release()
		}

		c.Next()
	}
}

// classify collapses codec reasons into the four denial buckets.
// Type and case mismatches are both access-control violations against the
// requested case; they share the wrong-case bucket.
func classify(res Result) DenyReason {
	if res.IsExpired {
		return DenyExpired
	}
	switch res.Reason {
	case ReasonTypeMismatch, ReasonCaseMismatch:
		return DenyWrongCase
	default:
		return DenyInvalid
	}
}

func deny(c *gin.Context, opts GuardOptions, reason DenyReason) {
	if opts.OnDeny != nil {
		opts.OnDeny(c, reason)
	}
	status := http.StatusUnauthorized
	if reason == DenyWrongCase {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"code": string(reason), "error": denyCopy[reason]})
}

type ctxKey int

const ctxGrant ctxKey = iota

func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, ctxGrant, g)
}

// GrantFrom returns the capability grant placed in context by the guard.
func GrantFrom(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(ctxGrant).(Grant)
	return g, ok
}
