package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/screening-lifecycle/internal/application/service"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	screeningService service.ScreeningService
	consentService   service.ConsentService
	importService    service.ImportService
	caseService      service.CaseService
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	screeningService service.ScreeningService,
	consentService service.ConsentService,
	importService service.ImportService,
	caseService service.CaseService,
	logger Logger,
) *Handlers {
	return &Handlers{
		screeningService: screeningService,
		consentService:   consentService,
		importService:    importService,
		caseService:      caseService,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StartScreeningRequest is the body for POST /api/screenings
type StartScreeningRequest struct {
	ChildID         string `json:"child_id" binding:"required"`
	ScreeningTypeID string `json:"screening_type_id" binding:"required"`
}

// SaveProgressRequest is the body for PUT /api/screenings/:id/progress
type SaveProgressRequest struct {
	Responses       map[string]string `json:"responses"`
	ProgressPercent int               `json:"progress_percent" binding:"min=0,max=99"`
}

// CompleteScreeningRequest is the body for POST /api/screenings/:id/complete
type CompleteScreeningRequest struct {
	Responses map[string]string `json:"responses"`
}

// RequestConsentRequest is the body for POST /api/consents
type RequestConsentRequest struct {
	SubjectID   string `json:"subject_id" binding:"required"`
	ConsentType string `json:"consent_type" binding:"required"`
}

// ResolveConsentRequest is the body for POST /api/consents/:id/resolve
type ResolveConsentRequest struct {
	Decision string `json:"decision" binding:"required,oneof=GRANT DENY"`
}

// CreateBatchRequest is the body for POST /api/imports. Rows arrive
// already parsed; the API does not accept raw CSV.
type CreateBatchRequest struct {
	SchoolID       string             `json:"school_id" binding:"required"`
	Filename       string             `json:"filename"`
	ConflictPolicy string             `json:"conflict_policy" binding:"required,oneof=SKIP UPDATE"`
	Rows           []entity.ImportRow `json:"rows" binding:"required,min=1"`
}

// OpenCaseRequest is the body for POST /api/cases
type OpenCaseRequest struct {
	SubjectID      string `json:"subject_id" binding:"required"`
	PreviousCaseID int64  `json:"previous_case_id"`
}

// AdvanceCaseRequest is the body for POST /api/cases/:id/advance
type AdvanceCaseRequest struct {
	ClosureType string `json:"closure_type" binding:"required,oneof=SUCCESS TRANSFER DISCONTINUE"`
}

// FinalizeCaseRequest is the body for POST /api/cases/:id/finalize
type FinalizeCaseRequest struct {
	Checklist map[string]bool `json:"checklist"`
	Signature string          `json:"signature"`
}

// ValidateReportResponse pairs a batch with its validation report
type ValidateReportResponse struct {
	Batch        *entity.ImportBatch `json:"batch"`
	TotalRows    int                 `json:"total_rows"`
	ValidCount   int                 `json:"valid_count"`
	WarningCount int                 `json:"warning_count"`
	ErrorCount   int                 `json:"error_count"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// StartScreening handles POST /api/screenings
func (h *Handlers) StartScreening(c *gin.Context) {
	var req StartScreeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	screening, err := h.screeningService.StartScreening(c.Request.Context(), req.ChildID, req.ScreeningTypeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: screening})
}

// GetScreening handles GET /api/screenings/:id
func (h *Handlers) GetScreening(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	screening, err := h.screeningService.GetScreening(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: screening})
}

// ListScreenings handles GET /api/screenings?child_id=...
func (h *Handlers) ListScreenings(c *gin.Context) {
	childID := c.Query("child_id")
	if childID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "child_id query parameter is required"})
		return
	}

	screenings, err := h.screeningService.ListByChild(c.Request.Context(), childID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: screenings})
}

// SaveProgress handles PUT /api/screenings/:id/progress
func (h *Handlers) SaveProgress(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	screening, err := h.screeningService.SaveProgress(c.Request.Context(), id, req.Responses, req.ProgressPercent)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: screening})
}

// CompleteScreening handles POST /api/screenings/:id/complete
func (h *Handlers) CompleteScreening(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req CompleteScreeningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	screening, err := h.screeningService.CompleteScreening(c.Request.Context(), id, req.Responses)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: screening})
}

// RequestConsent handles POST /api/consents
func (h *Handlers) RequestConsent(c *gin.Context) {
	var req RequestConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	record, err := h.consentService.RequestConsent(c.Request.Context(), req.SubjectID, req.ConsentType)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: record})
}

// GetConsent handles GET /api/consents/:id
func (h *Handlers) GetConsent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	record, err := h.consentService.GetConsent(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// ListConsents handles GET /api/consents?subject_id=...
func (h *Handlers) ListConsents(c *gin.Context) {
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "subject_id query parameter is required"})
		return
	}

	records, err := h.consentService.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// EvaluateConsent handles POST /api/consents/:id/evaluate
func (h *Handlers) EvaluateConsent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	record, err := h.consentService.EvaluateConsent(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// ResolveConsent handles POST /api/consents/:id/resolve
func (h *Handlers) ResolveConsent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ResolveConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	record, err := h.consentService.ResolveConsent(c.Request.Context(), id, req.Decision)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// CreateBatch handles POST /api/imports
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	batch, err := h.importService.CreateBatch(c.Request.Context(), req.SchoolID, req.Filename, req.Rows, req.ConflictPolicy)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: batch})
}

// GetBatch handles GET /api/imports/:id
func (h *Handlers) GetBatch(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	batch, err := h.importService.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: batch})
}

// ListBatches handles GET /api/imports?school_id=...
func (h *Handlers) ListBatches(c *gin.Context) {
	schoolID := c.Query("school_id")
	if schoolID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "school_id query parameter is required"})
		return
	}

	batches, err := h.importService.ListBySchool(c.Request.Context(), schoolID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: batches})
}

// ValidateImport handles POST /api/imports/:id/validate
func (h *Handlers) ValidateImport(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	batch, report, err := h.importService.ValidateImport(c.Request.Context(), id)
	if err != nil && !errors.Is(err, apperr.ErrValidationFailed) {
		h.respondError(c, err)
		return
	}

	resp := ValidateReportResponse{Batch: batch}
	if report != nil {
		resp.TotalRows = report.TotalRows
		resp.ValidCount = report.ValidCount
		resp.WarningCount = report.WarningCount
		resp.ErrorCount = report.ErrorCount
	}

	// A failed validation still returns the annotated batch so the
	// caller can see per-row reasons.
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Data: resp, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// CommitImport handles POST /api/imports/:id/commit
func (h *Handlers) CommitImport(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	batch, err := h.importService.CommitImport(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: batch})
}

// OpenCase handles POST /api/cases
func (h *Handlers) OpenCase(c *gin.Context) {
	var req OpenCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	caseFile, err := h.caseService.OpenCase(c.Request.Context(), req.SubjectID, req.PreviousCaseID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: caseFile})
}

// GetCase handles GET /api/cases/:id
func (h *Handlers) GetCase(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	caseFile, err := h.caseService.GetCase(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: caseFile})
}

// ListCases handles GET /api/cases?subject_id=...
func (h *Handlers) ListCases(c *gin.Context) {
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "subject_id query parameter is required"})
		return
	}

	cases, err := h.caseService.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: cases})
}

// AdvanceCase handles POST /api/cases/:id/advance
func (h *Handlers) AdvanceCase(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req AdvanceCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	caseFile, err := h.caseService.AdvanceCase(c.Request.Context(), id, req.ClosureType)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: caseFile})
}

// FinalizeCase handles POST /api/cases/:id/finalize
func (h *Handlers) FinalizeCase(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req FinalizeCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	caseFile, err := h.caseService.FinalizeCase(c.Request.Context(), id, req.Checklist, req.Signature)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: caseFile})
}

// pathID parses the :id path parameter, writing a 400 on failure
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid ID in path", "id", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// badRequest writes a 400 for a malformed or invalid request body
func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request: " + err.Error()})
}

// respondError maps service errors onto HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrConcurrentModification),
		errors.Is(err, apperr.ErrDuplicateActiveScreening):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrValidationFailed),
		errors.Is(err, apperr.ErrChecklistIncomplete),
		errors.Is(err, apperr.ErrMissingSignature),
		errors.Is(err, apperr.ErrRegressingProgress):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
