package httpapi

import (
	"errors"
	"net/http"
	"time"

	"assist-platform/internal/audit"
	"assist-platform/internal/auth"
	"assist-platform/internal/capability"
	"assist-platform/internal/cases"
	"assist-platform/internal/diagnosis"
	"assist-platform/internal/transport"
	"assist-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Cases     *cases.Service
	Diagnosis *diagnosis.Client
	Audit     *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: real credential validation (password/SSO) lives upstream; this
// endpoint only mints the pair once identity is established.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrgID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, org_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrgID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	oid, _ := auth.OrgID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "org_id": oid, "role": role})
}

// --- Operator case management ---

func (h Handlers) CreateCase(c *gin.Context) {
	var req cases.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	req.OrgID = orgID

	created, link, err := h.Cases.CreateCase(c.Request.Context(), req)
	if err != nil {
		h.caseError(c, err)
		return
	}

	h.auditLinkIssued(c, created.ID, string(link.Capability))
	c.JSON(http.StatusCreated, gin.H{"case": created, "client_link": link})
}

func (h Handlers) GetCase(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	found, err := h.Cases.GetForOrg(c.Request.Context(), orgID, c.Param("case_id"))
	if err != nil {
		h.caseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"case": found})
}

// WorkshopLink returns the case's current workshop share link, minting one
// lazily when none is live.
func (h Handlers) WorkshopLink(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	link, err := h.Cases.WorkshopLink(c.Request.Context(), orgID, c.Param("case_id"))
	if err != nil {
		h.caseError(c, err)
		return
	}

	h.auditLinkIssued(c, c.Param("case_id"), string(link.Capability))
	c.JSON(http.StatusOK, gin.H{"workshop_link": link})
}

// ClientLink mints a fresh client link (the old one keeps working until it
// expires; there is no revocation).
func (h Handlers) ClientLink(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	link, err := h.Cases.ClientLink(c.Request.Context(), orgID, c.Param("case_id"))
	if err != nil {
		h.caseError(c, err)
		return
	}

	h.auditLinkIssued(c, c.Param("case_id"), string(link.Capability))
	c.JSON(http.StatusOK, gin.H{"client_link": link})
}

// --- Share surfaces (behind the capability guard) ---

// ShareDiagnosis serves the diagnosis report to a client or workshop link
// holder. The guard has already pinned the grant to the case in the URL.
func (h Handlers) ShareDiagnosis(c *gin.Context) {
	grant, ok := capability.GrantFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "capability grant required"})
		return
	}

	report, err := h.Diagnosis.GetReport(c.Request.Context(), grant.CaseID)
	if err != nil {
		h.diagnosisError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnosis": report})
}

type submitAnswersRequest struct {
	Answers []diagnosis.Answer `json:"answers"`
}

// ShareSubmitAnswers receives questionnaire answers from the client chat
// flow and forwards them to the diagnosis backend.
func (h Handlers) ShareSubmitAnswers(c *gin.Context) {
	grant, ok := capability.GrantFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "capability grant required"})
		return
	}

	var req submitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answers) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "answers required"})
		return
	}

	report, err := h.Diagnosis.SubmitAnswers(c.Request.Context(), grant.CaseID, req.Answers)
	if err != nil {
		h.diagnosisError(c, err)
		return
	}

	// First answers move the case into diagnosing; later ones are a no-op
	// transition and that is fine, keep this best-effort.
	if _, err := h.Cases.SetStatus(c.Request.Context(), grant.CaseID, cases.StatusDiagnosing); err != nil && !errors.Is(err, cases.ErrBadTransition) {
		logger.FromGin(c).Warn("status advance failed", "case_id", grant.CaseID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{"diagnosis": report})
}

type receptionRequest struct {
	Notes string `json:"notes"`
}

// ShareWorkshopReception records that the workshop received the vehicle and
// reviewed the diagnosis report.
func (h Handlers) ShareWorkshopReception(c *gin.Context) {
	grant, ok := capability.GrantFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "capability grant required"})
		return
	}

	var req receptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if err := h.Diagnosis.MarkReviewed(c.Request.Context(), grant.CaseID, req.Notes); err != nil {
		h.diagnosisError(c, err)
		return
	}

	updated, err := h.Cases.SetStatus(c.Request.Context(), grant.CaseID, cases.StatusAtWorkshop)
	if errors.Is(err, cases.ErrBadTransition) {
		// Reception recorded twice; report the case as it stands.
		updated, err = h.Cases.Get(c.Request.Context(), grant.CaseID)
	}
	if err != nil {
		h.caseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"case": updated})
}

// --- error mapping ---

func (h Handlers) caseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cases.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, cases.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "case not found"})
	case errors.Is(err, cases.ErrBadTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "illegal status transition"})
	case errors.Is(err, cases.ErrThrottled):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "link regeneration in progress, retry shortly"})
	default:
		logger.FromGin(c).Error("case operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h Handlers) diagnosisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, diagnosis.ErrReportNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "diagnosis not available yet"})
	case errors.Is(err, transport.ErrAuthRejected):
		// Terminal for link holders: no login flow exists for them.
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access to the diagnosis was refused"})
	case errors.Is(err, transport.ErrSessionExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired, login again"})
	default:
		logger.FromGin(c).Error("diagnosis call failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "diagnosis backend unavailable"})
	}
}

func (h Handlers) auditLinkIssued(c *gin.Context, caseID, capabilityType string) {
	if h.Audit == nil {
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := h.Audit.LogLinkIssued(c.Request.Context(), caseID, capabilityType, uid, role, c.ClientIP()); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}
