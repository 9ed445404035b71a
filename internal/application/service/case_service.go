package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	appwf "github.com/brightpath/screening-lifecycle/internal/application/workflow"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// closureChecklists maps each closure type to the items that must be
// confirmed before the case can close.
var closureChecklists = map[string][]string{
	entity.ClosureTypeSuccess: {
		"final_assessment_recorded",
		"outcome_summary_written",
		"guardian_notified",
	},
	entity.ClosureTypeTransfer: {
		"receiving_provider_confirmed",
		"records_release_signed",
		"guardian_notified",
	},
	entity.ClosureTypeDiscontinue: {
		"discontinue_reason_recorded",
		"guardian_notified",
	},
}

// CaseService manages case files through the gated closure workflow
type CaseService interface {
	// OpenCase creates an ACTIVE case. previousCaseID links a
	// reactivation back to the closed case it replaces; zero means a
	// brand-new case.
	OpenCase(ctx context.Context, subjectID string, previousCaseID int64) (*entity.CaseFile, error)

	// AdvanceCase chooses a closure type and initializes the
	// closure-type-specific checklist
	AdvanceCase(ctx context.Context, id int64, closureType string) (*entity.CaseFile, error)

	// FinalizeCase closes the case once every checklist item is
	// confirmed and a signature is present. Terminal and irreversible.
	FinalizeCase(ctx context.Context, id int64, checklistAnswers map[string]bool, signature string) (*entity.CaseFile, error)

	GetCase(ctx context.Context, id int64) (*entity.CaseFile, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*entity.CaseFile, error)
}

type caseServiceImpl struct {
	repo   port.CaseRepository
	clk    clock.Clock
	logger Logger
}

// NewCaseService creates a new CaseService
func NewCaseService(repo port.CaseRepository, clk clock.Clock, logger Logger) CaseService {
	return &caseServiceImpl{
		repo:   repo,
		clk:    clk,
		logger: logger,
	}
}

// OpenCase creates a new active case for the subject
func (s *caseServiceImpl) OpenCase(ctx context.Context, subjectID string, previousCaseID int64) (*entity.CaseFile, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", apperr.ErrInvalidInput)
	}

	if previousCaseID != 0 {
		prev, err := s.repo.GetByID(ctx, previousCaseID)
		if err != nil {
			return nil, fmt.Errorf("load previous case: %w", err)
		}
		if prev == nil {
			return nil, notFound("case", previousCaseID)
		}
		if prev.Status != entity.CaseStatusClosed {
			return nil, fmt.Errorf("%w: previous case %d is %s, reactivation requires a closed case",
				apperr.ErrInvalidState, previousCaseID, prev.Status)
		}
	}

	caseFile := &entity.CaseFile{
		SubjectID:      subjectID,
		Status:         entity.CaseStatusActive,
		PreviousCaseID: previousCaseID,
	}

	if err := s.repo.Create(ctx, caseFile); err != nil {
		s.logger.Error("Failed to create case", "error", err, "subject_id", subjectID)
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.logger.Info("Case opened", "id", caseFile.ID, "subject_id", subjectID)
	return caseFile, nil
}

// AdvanceCase moves the case to PENDING_CLOSURE with a fresh checklist
func (s *caseServiceImpl) AdvanceCase(ctx context.Context, id int64, closureType string) (*entity.CaseFile, error) {
	if !entity.ValidClosureType(closureType) {
		return nil, fmt.Errorf("%w: unsupported closure type %q", apperr.ErrInvalidInput, closureType)
	}

	caseFile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if caseFile == nil {
		return nil, notFound("case", id)
	}

	machine := appwf.NewCaseMachine(domainwf.State(caseFile.Status))
	if err := machine.Fire(ctx, appwf.EventChooseClosure); err != nil {
		return nil, mapMachineErr(err)
	}

	checklist := make(map[string]bool, len(closureChecklists[closureType]))
	for _, item := range closureChecklists[closureType] {
		checklist[item] = false
	}

	caseFile.Status = machine.State().String()
	caseFile.ClosureType = closureType
	caseFile.Checklist = checklist

	if err := s.repo.Update(ctx, caseFile); err != nil {
		return nil, err
	}

	s.logger.Info("Case advanced to pending closure", "id", id, "closure_type", closureType)
	return caseFile, nil
}

// FinalizeCase closes the case if the gate conditions hold
func (s *caseServiceImpl) FinalizeCase(ctx context.Context, id int64, checklistAnswers map[string]bool, signature string) (*entity.CaseFile, error) {
	caseFile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if caseFile == nil {
		return nil, notFound("case", id)
	}

	machine := appwf.NewCaseMachine(domainwf.State(caseFile.Status))
	if !machine.CanFire(appwf.EventFinalizeCase) {
		return nil, fmt.Errorf("%w: case %d is %s", apperr.ErrInvalidState, id, caseFile.Status)
	}

	// Only items the checklist was initialized with count; stray keys
	// in the answers are ignored.
	for item, done := range checklistAnswers {
		if _, known := caseFile.Checklist[item]; known {
			caseFile.Checklist[item] = done
		}
	}

	if missing := caseFile.MissingChecklistItems(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrChecklistIncomplete, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: case %d", apperr.ErrMissingSignature, id)
	}

	if err := machine.Fire(ctx, appwf.EventFinalizeCase); err != nil {
		return nil, mapMachineErr(err)
	}

	now := s.clk.Now()
	caseFile.Status = machine.State().String()
	caseFile.Signature = signature
	caseFile.ClosedAt = &now

	if err := s.repo.Update(ctx, caseFile); err != nil {
		return nil, err
	}

	s.logger.Info("Case closed", "id", id, "closure_type", caseFile.ClosureType)
	return caseFile, nil
}

// GetCase returns one case by id
func (s *caseServiceImpl) GetCase(ctx context.Context, id int64) (*entity.CaseFile, error) {
	caseFile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if caseFile == nil {
		return nil, notFound("case", id)
	}
	return caseFile, nil
}

// ListBySubject returns all cases for a subject
func (s *caseServiceImpl) ListBySubject(ctx context.Context, subjectID string) ([]*entity.CaseFile, error) {
	return s.repo.ListBySubject(ctx, subjectID)
}
