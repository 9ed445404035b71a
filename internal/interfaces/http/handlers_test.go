package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/screening-lifecycle/internal/application/service"
	"github.com/brightpath/screening-lifecycle/internal/application/validation"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/memory"
)

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestServer() (*Server, *clock.FixedClock) {
	store := memory.NewStore()
	clk := clock.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	logger := testLogger{}

	screeningService := service.NewScreeningService(store.Screenings(), clk, logger)
	consentService := service.NewConsentService(store.Consents(), clk, service.ConsentPolicy{
		AutoConsentWindowDays: 7,
		ValidityDays:          365,
	}, logger)
	pipeline := validation.NewPipeline(validation.Config{GradeMin: 0, GradeMax: 12})
	importService := service.NewImportService(store.Batches(), store.Students(), pipeline, store, logger)
	caseService := service.NewCaseService(store.Cases(), clk, logger)

	server := NewServer(DefaultServerConfig(), screeningService, consentService, importService, caseService, logger)
	return server, clk
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func TestHealthCheck(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScreeningEndpoints(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/screenings", StartScreeningRequest{
		ChildID: "child-1", ScreeningTypeID: "ASQ-3",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var screening entity.Screening
	decodeData(t, w, &screening)
	assert.Equal(t, entity.ScreeningStatusInProgress, screening.Status)

	w = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/screenings/%d/progress", screening.ID), SaveProgressRequest{
		Responses: map[string]string{"q1": "yes"}, ProgressPercent: 40,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/screenings/%d/complete", screening.ID), CompleteScreeningRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var done entity.Screening
	decodeData(t, w, &done)
	assert.Equal(t, entity.ScreeningStatusCompleted, done.Status)
	assert.Equal(t, 100, done.ProgressPercent)

	w = doJSON(t, server, http.MethodGet, "/api/screenings?child_id=child-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestScreeningEndpoints_ErrorMapping(t *testing.T) {
	server, _ := newTestServer()

	// Missing body field
	w := doJSON(t, server, http.MethodPost, "/api/screenings", map[string]string{"child_id": "child-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown id
	w = doJSON(t, server, http.MethodGet, "/api/screenings/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Non-numeric id
	w = doJSON(t, server, http.MethodGet, "/api/screenings/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate open screening
	w = doJSON(t, server, http.MethodPost, "/api/screenings", StartScreeningRequest{ChildID: "child-1", ScreeningTypeID: "ASQ-3"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, server, http.MethodPost, "/api/screenings", StartScreeningRequest{ChildID: "child-1", ScreeningTypeID: "ASQ-3"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Regressing progress
	var screening entity.Screening
	w = doJSON(t, server, http.MethodGet, "/api/screenings?child_id=child-1", nil)
	var list []entity.Screening
	decodeData(t, w, &list)
	require.NotEmpty(t, list)
	screening = list[0]

	w = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/screenings/%d/progress", screening.ID), SaveProgressRequest{ProgressPercent: 50})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/screenings/%d/progress", screening.ID), SaveProgressRequest{ProgressPercent: 30})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Full progress is reachable only through the complete endpoint
	w = doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/screenings/%d/progress", screening.ID), map[string]int{"progress_percent": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/screenings/%d", screening.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored entity.Screening
	decodeData(t, w, &stored)
	assert.Equal(t, entity.ScreeningStatusInProgress, stored.Status)
	assert.Equal(t, 50, stored.ProgressPercent)
	assert.Nil(t, stored.CompletedAt)
}

func TestConsentEndpoints(t *testing.T) {
	server, clk := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/consents", RequestConsentRequest{
		SubjectID: "child-1", ConsentType: entity.ConsentTypeScreening,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var record entity.ConsentRecord
	decodeData(t, w, &record)
	assert.Equal(t, entity.ConsentStatusPending, record.Status)

	// Past the window, evaluation auto-grants
	clk.Advance(8 * 24 * time.Hour)
	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/consents/%d/evaluate", record.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var evaluated entity.ConsentRecord
	decodeData(t, w, &evaluated)
	assert.Equal(t, entity.ConsentStatusGranted, evaluated.Status)

	// A late explicit decision conflicts
	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/consents/%d/resolve", record.ID), ResolveConsentRequest{Decision: "DENY"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConsentEndpoints_InvalidDecision(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/consents", RequestConsentRequest{
		SubjectID: "child-1", ConsentType: entity.ConsentTypeScreening,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var record entity.ConsentRecord
	decodeData(t, w, &record)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/consents/%d/resolve", record.ID), map[string]string{"decision": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A consent type the service does not know maps to 400, not 500
	w = doJSON(t, server, http.MethodPost, "/api/consents", RequestConsentRequest{
		SubjectID: "child-1", ConsentType: "HAIRCUT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportEndpoints(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/imports", CreateBatchRequest{
		SchoolID:       "school-1",
		Filename:       "roster.csv",
		ConflictPolicy: entity.ConflictPolicySkip,
		Rows: []entity.ImportRow{
			{FirstName: "Ana", LastName: "Silva", Grade: "3", Guardian: "R. Silva"},
			{FirstName: "Ben", LastName: "Okafor", Grade: "5", Guardian: "C. Okafor"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var batch entity.ImportBatch
	decodeData(t, w, &batch)
	assert.Equal(t, entity.BatchStatusValidating, batch.Status)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/imports/%d/validate", batch.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report ValidateReportResponse
	decodeData(t, w, &report)
	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, entity.BatchStatusReadyToCommit, report.Batch.Status)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/imports/%d/commit", batch.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var committed entity.ImportBatch
	decodeData(t, w, &committed)
	assert.Equal(t, entity.BatchStatusCommitted, committed.Status)

	// A second commit conflicts
	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/imports/%d/commit", batch.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportEndpoints_ValidationFailure(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/imports", CreateBatchRequest{
		SchoolID:       "school-1",
		ConflictPolicy: entity.ConflictPolicyUpdate,
		Rows: []entity.ImportRow{
			{FirstName: "Dana", LastName: "Reyes", Grade: "2"}, // no guardian
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var batch entity.ImportBatch
	decodeData(t, w, &batch)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/imports/%d/validate", batch.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The body still carries the annotated batch
	var report ValidateReportResponse
	decodeData(t, w, &report)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, entity.BatchStatusFailed, report.Batch.Status)
}

func TestCaseEndpoints(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/cases", OpenCaseRequest{SubjectID: "child-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var caseFile entity.CaseFile
	decodeData(t, w, &caseFile)
	assert.Equal(t, entity.CaseStatusActive, caseFile.Status)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/cases/%d/advance", caseFile.ID), AdvanceCaseRequest{
		ClosureType: entity.ClosureTypeSuccess,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Incomplete checklist is a 422
	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/cases/%d/finalize", caseFile.ID), FinalizeCaseRequest{
		Checklist: map[string]bool{"guardian_notified": true},
		Signature: "Dr. Moreau",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/cases/%d/finalize", caseFile.ID), FinalizeCaseRequest{
		Checklist: map[string]bool{
			"final_assessment_recorded": true,
			"outcome_summary_written":   true,
			"guardian_notified":         true,
		},
		Signature: "Dr. Moreau",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var closed entity.CaseFile
	decodeData(t, w, &closed)
	assert.Equal(t, entity.CaseStatusClosed, closed.Status)
}

func TestCaseEndpoints_MissingSignature(t *testing.T) {
	server, _ := newTestServer()

	w := doJSON(t, server, http.MethodPost, "/api/cases", OpenCaseRequest{SubjectID: "child-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var caseFile entity.CaseFile
	decodeData(t, w, &caseFile)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/cases/%d/advance", caseFile.ID), AdvanceCaseRequest{
		ClosureType: entity.ClosureTypeDiscontinue,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/cases/%d/finalize", caseFile.ID), FinalizeCaseRequest{
		Checklist: map[string]bool{
			"discontinue_reason_recorded": true,
			"guardian_notified":           true,
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
