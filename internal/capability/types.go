package capability

import "time"

// Type is the restricted role a capability token impersonates.
type Type string

const (
	// TypeClient grants the vehicle owner access to their own case.
	TypeClient Type = "client"
	// TypeWorkshop grants the receiving garage access to a case. Workshop
	// links are meant to be shared by multiple people at the workshop.
	TypeWorkshop Type = "workshop"
)

func (t Type) IsValid() bool {
	return t == TypeClient || t == TypeWorkshop
}

// Version is the only payload schema version this codec understands.
// A version mismatch invalidates the token.
const Version = "1"

// Payload is the signed content of a capability token.
//
// Invariants:
// - Immutable once issued; expiry is the only termination mechanism.
// - CaseID is never empty; a token without it fails construction and validation.
// - The signature covers the serialized payload byte-for-byte.
type Payload struct {
	Version     string `json:"v"`
	Type        Type   `json:"typ"`
	CaseID      string `json:"case_id"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	DiagnosisID string `json:"diagnosis_id,omitempty"`

	// Epoch milliseconds.
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

func (p Payload) IssuedTime() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

func (p Payload) ExpiryTime() time.Time {
	return time.UnixMilli(p.ExpiresAt)
}

// Reason classifies why verification rejected a token.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMalformed       Reason = "malformed"
	ReasonBadSignature    Reason = "bad_signature"
	ReasonVersionMismatch Reason = "version_mismatch"
	ReasonExpired         Reason = "expired"
	ReasonTypeMismatch    Reason = "type_mismatch"
	ReasonCaseMismatch    Reason = "case_mismatch"
)

// Result is the outcome of one verification call. It is transient: it lives
// for the duration of a single guarded request and is never persisted.
//
// Verification failures on untrusted input are reported here, not as errors:
// the token comes straight from a URL and every failure mode is expected.
type Result struct {
	Payload Payload
	Raw     string

	IsValid   bool
	IsExpired bool
	Reason    Reason
}

// Expectation pins verification to the capability type and case the caller
// is serving. Zero values leave the corresponding check unpinned.
type Expectation struct {
	Type   Type
	CaseID string
}
