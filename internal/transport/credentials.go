package transport

import (
	"context"
	"sync"
)

// CredentialKind identifies which source supplied a bearer credential.
type CredentialKind string

const (
	// CredentialSession is a full operator login session.
	CredentialSession CredentialKind = "session"
	// CredentialService is the shared anonymous service credential.
	CredentialService CredentialKind = "service"
	// CredentialScoped is a capability link token, restricted to one case.
	CredentialScoped CredentialKind = "scoped"
)

type Credential struct {
	Kind  CredentialKind
	Token string
}

// Chain resolves the bearer credential for outbound calls with a fixed
// precedence: login session > shared service credential > scoped capability
// token. The scoped token is strictly a fallback for callers holding nothing
// stronger.
//
// The scoped slot is singular and process-wide; only the access guard sets it
// (on grant) and clears it (on teardown via the release handle). A release is
// a no-op if a newer acquisition has replaced the slot in the meantime.
type Chain struct {
	service string

	mu     sync.Mutex
	scoped string
	seq    uint64
}

func NewChain(serviceToken string) *Chain {
	return &Chain{service: serviceToken}
}

// AcquireScoped installs token as the active scoped credential and returns
// the release func that clears it. Callers must release on teardown; the
// guard does so in a defer.
func (c *Chain) AcquireScoped(token string) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scoped = token
	c.seq++
	seq := c.seq

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq == seq {
			c.scoped = ""
		}
	}
}

// ScopedToken reports the currently installed scoped credential, if any.
func (c *Chain) ScopedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scoped, c.scoped != ""
}

// Resolve picks the strongest credential available for a request.
func (c *Chain) Resolve(ctx context.Context) (Credential, bool) {
	if tok, ok := SessionFrom(ctx); ok {
		return Credential{Kind: CredentialSession, Token: tok}, true
	}
	if c.service != "" {
		return Credential{Kind: CredentialService, Token: c.service}, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scoped != "" {
		return Credential{Kind: CredentialScoped, Token: c.scoped}, true
	}
	return Credential{}, false
}

type sessionKey struct{}

// WithSession stashes an operator session token in context so outbound calls
// made while serving that operator present their credential.
func WithSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, token)
}

func SessionFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(sessionKey{}).(string)
	return tok, ok && tok != ""
}
