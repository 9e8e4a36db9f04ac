package cases

import "time"

// Case is an assistance case: one breakdown, one vehicle, one report.
//
// Multi-tenant invariant: OrgID is required on every row. Share-link access
// skips org scoping entirely; the capability token itself is pinned to
// exactly one case id.
type Case struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`

	VehicleID   string `json:"vehicle_id,omitempty" db:"vehicle_id"`
	PlateNumber string `json:"plate_number" db:"plate_number"`

	ReporterName  string `json:"reporter_name,omitempty" db:"reporter_name"`
	ReporterPhone string `json:"reporter_phone,omitempty" db:"reporter_phone"`

	// DiagnosisID references the report held by the diagnosis backend.
	// Empty until the backend has produced one.
	DiagnosisID string `json:"diagnosis_id,omitempty" db:"diagnosis_id"`

	Status CaseStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CaseStatus string

const (
	StatusOpen       CaseStatus = "open"
	StatusDiagnosing CaseStatus = "diagnosing"
	StatusAtWorkshop CaseStatus = "at_workshop"
	StatusClosed     CaseStatus = "closed"
)

// nextStatuses defines the allowed forward transitions.
var nextStatuses = map[CaseStatus][]CaseStatus{
	StatusOpen:       {StatusDiagnosing, StatusClosed},
	StatusDiagnosing: {StatusAtWorkshop, StatusClosed},
	StatusAtWorkshop: {StatusClosed},
}

func canTransition(from, to CaseStatus) bool {
	for _, s := range nextStatuses[from] {
		if s == to {
			return true
		}
	}
	return false
}
