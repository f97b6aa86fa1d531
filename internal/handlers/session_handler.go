package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/fieldtrack/internal/errors"
	"github.com/stwalsh4118/fieldtrack/internal/export"
	"github.com/stwalsh4118/fieldtrack/internal/middleware"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/services"
	"github.com/stwalsh4118/fieldtrack/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SessionHandler drives processing sessions over HTTP.
type SessionHandler struct {
	service services.InspectionService
}

// NewSessionHandler creates a new SessionHandler instance.
func NewSessionHandler(service services.InspectionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// CreateSessionRequest opens a session over one file version of the job
// named in the path.
type CreateSessionRequest struct {
	StartDate   string `json:"startDate" binding:"required,datetime=2006-01-02"`
	FileVersion int    `json:"fileVersion" binding:"required,gte=1"`
}

// DecisionRequest records a manager's ruling on one flagged record.
type DecisionRequest struct {
	Accepted     *bool  `json:"accepted" binding:"required"`
	CompositeKey string `json:"compositeKey" binding:"required"`
	ApprovedBy   string `json:"approvedBy" binding:"required"`
	Reason       string `json:"reason" binding:"max=500"`
}

// IssuesResponse lists a session's flagged records.
type IssuesResponse struct {
	Issues []models.ValidationIssue `json:"issues"`
	Count  int                      `json:"count"`
}

// OutcomeResponse is the reconciled result of a session.
type OutcomeResponse struct {
	Bundle        models.WorkflowBundle `json:"bundle"`
	LedgerRecords int                   `json:"ledgerRecords"`
}

func outcomeResponse(o *session.Outcome) OutcomeResponse {
	return OutcomeResponse{Bundle: o.Bundle, LedgerRecords: len(o.Ledger)}
}

// Create handles POST /api/v1/jobs/:jobId/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, "Invalid session request", err)
		return
	}
	startDate, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		apierrors.BadRequest(c, "startDate must be YYYY-MM-DD", nil)
		return
	}

	view, err := h.service.CreateSession(c.Request.Context(), c.Param(JobParam), req.FileVersion, startDate)
	if err != nil {
		respondError(c, err, "Failed to create session")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	view, err := h.service.GetSession(c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Fetch handles POST /api/v1/sessions/:id/fetch. A partial retrieval
// answers 503 with how many records were kept.
func (h *SessionHandler) Fetch(c *gin.Context) {
	view, err := h.service.Fetch(c.Request.Context(), c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to fetch records")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Issues handles GET /api/v1/sessions/:id/issues.
func (h *SessionHandler) Issues(c *gin.Context) {
	issues, err := h.service.Issues(c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to list validation issues")
		return
	}
	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	c.JSON(http.StatusOK, IssuesResponse{Issues: issues, Count: len(issues)})
}

// Decide handles POST /api/v1/sessions/:id/decisions.
func (h *SessionHandler) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, "Invalid decision", err)
		return
	}

	view, err := h.service.Decide(c.Param(middleware.SessionParam), models.OverrideDecision{
		CompositeKey: req.CompositeKey,
		Accepted:     *req.Accepted,
		ApprovedBy:   req.ApprovedBy,
		Reason:       req.Reason,
	})
	if err != nil {
		respondError(c, err, "Failed to record decision")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reconcile handles POST /api/v1/sessions/:id/reconcile.
func (h *SessionHandler) Reconcile(c *gin.Context) {
	outcome, err := h.service.Reconcile(c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to reconcile session")
		return
	}
	c.JSON(http.StatusOK, outcomeResponse(outcome))
}

// Outcome handles GET /api/v1/sessions/:id/outcome.
func (h *SessionHandler) Outcome(c *gin.Context) {
	outcome, err := h.service.Outcome(c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to load session outcome")
		return
	}
	c.JSON(http.StatusOK, outcomeResponse(outcome))
}

// Commit handles POST /api/v1/sessions/:id/commit.
func (h *SessionHandler) Commit(c *gin.Context) {
	res, err := h.service.Commit(c.Request.Context(), c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to commit session")
		return
	}
	c.JSON(http.StatusOK, res)
}

// Export handles GET /api/v1/sessions/:id/export and streams the
// reconciled reports as an XLSX workbook.
func (h *SessionHandler) Export(c *gin.Context) {
	outcome, err := h.service.Outcome(c.Param(middleware.SessionParam))
	if err != nil {
		respondError(c, err, "Failed to export session")
		return
	}

	wb, err := export.Workbook(outcome.Bundle)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build report workbook", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(outcome.Bundle)+`"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := wb.Write(c.Writer); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Failed to stream report workbook", err, nil)
		}
		_ = c.Error(err)
	}
}

// Delete handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Abandon(c.Param(middleware.SessionParam)); err != nil {
		respondError(c, err, "Failed to discard session")
		return
	}
	c.Status(http.StatusNoContent)
}
