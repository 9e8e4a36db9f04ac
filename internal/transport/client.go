package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrAuthRejected is terminal for the caller: the backend refused the
	// presented scoped or service credential and there is no login to fall
	// back to. Callers must not start a login flow on this error.
	ErrAuthRejected = errors.New("transport: authorization rejected")

	// ErrSessionExpired means the operator's login session was refused and
	// re-authentication is the correct recovery.
	ErrSessionExpired = errors.New("transport: session rejected, login required")
)

// ClientConfig identifies one outbound destination.
type ClientConfig struct {
	Name    string
	BaseURL string
}

// Client is a thin resty wrapper that attaches the strongest available bearer
// credential to every request and classifies authorization failures by the
// credential that was presented.
type Client struct {
	name  string
	rest  *resty.Client
	creds *Chain
}

type presentedKey struct{}

func NewClient(cfg ClientConfig, creds *Chain, log *slog.Logger) *Client {
	rc := resty.New().SetBaseURL(cfg.BaseURL)

	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		cred, ok := creds.Resolve(req.Context())
		if !ok {
			return nil
		}
		req.SetHeader("Authorization", "Bearer "+cred.Token)
		// Remember what was presented so the response hook can classify
		// an authorization failure.
		req.SetContext(context.WithValue(req.Context(), presentedKey{}, cred.Kind))
		return nil
	})

	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		status := resp.StatusCode()
		if log != nil {
			lvl := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				lvl = slog.LevelWarn
			}
			log.Log(resp.Request.Context(), lvl, "outbound call",
				"destination", cfg.Name,
				"method", resp.Request.Method,
				"status", status,
				"duration_ms", float64(resp.Time().Milliseconds()),
			)
		}

		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return nil
		}
		kind, _ := resp.Request.Context().Value(presentedKey{}).(CredentialKind)
		if kind == CredentialSession {
			return ErrSessionExpired
		}
		// Scoped and service credentials (and the no-credential case) never
		// trigger a login flow; the denial is terminal.
		return ErrAuthRejected
	})

	return &Client{name: cfg.Name, rest: rc, creds: creds}
}

func (c *Client) NewRequest(ctx context.Context) *resty.Request {
	return c.rest.R().SetContext(ctx)
}

// Credentials exposes the chain so guards can install scoped tokens.
func (c *Client) Credentials() *Chain {
	return c.creds
}
