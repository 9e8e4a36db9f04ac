package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"time"

	"assist-platform/internal/config"
)

// keyContext namespaces the derived key so the link secret can never be
// confused with a key derived for another purpose from the same config.
const keyContext = "assist-platform/capability-link/v1"

// Keychain holds the symmetric signing key and the per-type TTL policy for
// capability links. It is constructed once from config and injected into both
// the issuing and the verifying code paths; there is no package-level key.
//
// The key is derived deterministically from the configured secret, so every
// process built from the same config issues and verifies interchangeably.
// This is a signed-capability-in-URL scheme, not a server-held secret: anyone
// holding the build config can mint tokens.
type Keychain struct {
	key         []byte
	clientTTL   time.Duration
	workshopTTL time.Duration
}

var ErrInvalidArgument = errors.New("capability: invalid argument")

func NewKeychain(cfg config.LinkConfig) (*Keychain, error) {
	if cfg.Secret == "" {
		return nil, errors.New("capability: link secret is required")
	}

	clientTTL := cfg.ClientTTL
	if clientTTL <= 0 {
		clientTTL = 24 * time.Hour
	}
	workshopTTL := cfg.WorkshopTTL
	if workshopTTL <= 0 {
		workshopTTL = 168 * time.Hour
	}

	mac := hmac.New(sha256.New, []byte(cfg.Secret))
	mac.Write([]byte(keyContext))

	return &Keychain{
		key:         mac.Sum(nil),
		clientTTL:   clientTTL,
		workshopTTL: workshopTTL,
	}, nil
}

// defaultTTL is chosen by capability type, not by the caller, so a caller
// cannot mint a long-lived client token.
func (k *Keychain) defaultTTL(typ Type) time.Duration {
	if typ == TypeWorkshop {
		return k.workshopTTL
	}
	return k.clientTTL
}

func (k *Keychain) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, k.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
