package capability

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire format: base64url-no-padding(JSON payload) "." base64url-no-padding(HMAC-SHA256).
// This two-part, dot-delimited shape is a compatibility contract with links
// already in the wild; do not change it without a version bump.
const tokenDelimiter = "."

var wireEncoding = base64.RawURLEncoding

// IssueOptions carries the optional fields of a capability link.
//
// TTL overrides the per-type default when non-zero. Negative values are
// accepted so tests can mint already-expired tokens.
type IssueOptions struct {
	VehicleID   string
	DiagnosisID string
	TTL         time.Duration
}

// Issue builds a signed capability token for a single case.
//
// The only failure modes are caller bugs (empty case id, unknown type);
// those return ErrInvalidArgument.
func (k *Keychain) Issue(typ Type, caseID string, now time.Time, opts IssueOptions) (string, error) {
	if !typ.IsValid() {
		return "", fmt.Errorf("%w: unknown capability type %q", ErrInvalidArgument, typ)
	}
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return "", fmt.Errorf("%w: case id is required", ErrInvalidArgument)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = k.defaultTTL(typ)
	}

	issuedAt := now.UnixMilli()
	payload := Payload{
		Version:   Version,
		Type:      typ,
		CaseID:    caseID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt + ttl.Milliseconds(),
	}

	// Empty strings are normalized to absent so "empty" and "missing" cannot
	// diverge downstream; omitempty keeps them out of the signed bytes.
	if v := strings.TrimSpace(opts.VehicleID); v != "" {
		payload.VehicleID = v
	}
	if d := strings.TrimSpace(opts.DiagnosisID); d != "" {
		payload.DiagnosisID = d
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("capability: marshal payload: %w", err)
	}

	return wireEncoding.EncodeToString(raw) + tokenDelimiter + wireEncoding.EncodeToString(k.sign(raw)), nil
}

// Verify checks a token string against the expected capability type and case.
//
// Checks run in strict order and short-circuit: shape, payload parse,
// signature, version, expiry, type, case. Expired tokens are reported
// distinctly (IsExpired) because the user-facing copy differs from other
// rejections. Verify never returns an error for untrusted input; every
// failure mode is captured in the Result.
func (k *Keychain) Verify(token string, expect Expectation, now time.Time) Result {
	res := Result{Raw: token}

	payloadPart, sigPart, ok := strings.Cut(token, tokenDelimiter)
	if !ok || payloadPart == "" || sigPart == "" || strings.Contains(sigPart, tokenDelimiter) {
		res.Reason = ReasonMalformed
		return res
	}

	payloadBytes, err := wireEncoding.DecodeString(payloadPart)
	if err != nil {
		res.Reason = ReasonMalformed
		return res
	}
	sig, err := wireEncoding.DecodeString(sigPart)
	if err != nil {
		res.Reason = ReasonMalformed
		return res
	}

	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		res.Reason = ReasonMalformed
		return res
	}
	if payload.CaseID == "" {
		// A token without a case grants nothing; treat like garbage.
		res.Reason = ReasonMalformed
		return res
	}

	// The signature is recomputed over the raw decoded bytes, not over a
	// re-serialization: field order and whitespace of the issuer are part of
	// the signed content. hmac.Equal is constant time.
	if !hmac.Equal(sig, k.sign(payloadBytes)) {
		res.Reason = ReasonBadSignature
		return res
	}

	res.Payload = payload

	if payload.Version != Version {
		res.Reason = ReasonVersionMismatch
		return res
	}

	if now.UnixMilli() >= payload.ExpiresAt {
		res.IsExpired = true
		res.Reason = ReasonExpired
		return res
	}

	if expect.Type != "" && expect.Type != payload.Type {
		res.Reason = ReasonTypeMismatch
		return res
	}
	if expect.CaseID != "" && expect.CaseID != payload.CaseID {
		// The cross-tenant check: a token for workshop A replayed against
		// workshop B's case URL dies here, with its own classification.
		res.Reason = ReasonCaseMismatch
		return res
	}

	res.IsValid = true
	return res
}

// ExtractCaseID is a best-effort, unauthenticated peek at the case id.
// It skips signature verification so obviously-wrong links can be
// short-circuited cheaply; its result must never feed an access-control
// decision. That is what Verify is for.
func ExtractCaseID(token string) (string, bool) {
	payloadPart, _, ok := strings.Cut(token, tokenDelimiter)
	if !ok || payloadPart == "" {
		return "", false
	}
	raw, err := wireEncoding.DecodeString(payloadPart)
	if err != nil {
		return "", false
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}
	if payload.CaseID == "" {
		return "", false
	}
	return payload.CaseID, true
}
