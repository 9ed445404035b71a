package service

import (
	"context"
	"fmt"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	appwf "github.com/brightpath/screening-lifecycle/internal/application/workflow"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// ScreeningService manages the developmental screening lifecycle
type ScreeningService interface {
	// StartScreening creates a screening in IN_PROGRESS. At most one
	// open screening per type per child is allowed.
	StartScreening(ctx context.Context, childID, screeningTypeID string) (*entity.Screening, error)

	// SaveProgress merges new responses and advances the progress
	// percentage. Progress never decreases and stays below 100: full
	// progress belongs to CompleteScreening alone.
	SaveProgress(ctx context.Context, id int64, responses map[string]string, progressPercent int) (*entity.Screening, error)

	// CompleteScreening applies the final responses and closes the
	// screening. Terminal: no further mutation is possible.
	CompleteScreening(ctx context.Context, id int64, finalResponses map[string]string) (*entity.Screening, error)

	GetScreening(ctx context.Context, id int64) (*entity.Screening, error)
	ListByChild(ctx context.Context, childID string) ([]*entity.Screening, error)
}

type screeningServiceImpl struct {
	repo   port.ScreeningRepository
	clk    clock.Clock
	logger Logger
}

// NewScreeningService creates a new ScreeningService
func NewScreeningService(repo port.ScreeningRepository, clk clock.Clock, logger Logger) ScreeningService {
	return &screeningServiceImpl{
		repo:   repo,
		clk:    clk,
		logger: logger,
	}
}

// StartScreening creates a new screening for the child
func (s *screeningServiceImpl) StartScreening(ctx context.Context, childID, screeningTypeID string) (*entity.Screening, error) {
	if childID == "" || screeningTypeID == "" {
		return nil, fmt.Errorf("%w: child id and screening type id are required", apperr.ErrInvalidInput)
	}

	open, err := s.repo.GetOpenByChildAndType(ctx, childID, screeningTypeID)
	if err != nil {
		return nil, fmt.Errorf("check open screening: %w", err)
	}
	if open != nil {
		return nil, fmt.Errorf("%w: child %s type %s (screening %d)",
			apperr.ErrDuplicateActiveScreening, childID, screeningTypeID, open.ID)
	}

	machine := appwf.NewScreeningMachine(entity.ScreeningStatusNotStarted)
	if err := machine.Fire(ctx, appwf.EventStartScreening); err != nil {
		return nil, mapMachineErr(err)
	}

	screening := &entity.Screening{
		ChildID:         childID,
		ScreeningTypeID: screeningTypeID,
		Status:          machine.State().String(),
		Responses:       make(map[string]string),
		ProgressPercent: 0,
		StartedAt:       s.clk.Now(),
	}

	if err := s.repo.Create(ctx, screening); err != nil {
		s.logger.Error("Failed to create screening", "error", err, "child_id", childID)
		return nil, fmt.Errorf("create screening: %w", err)
	}

	s.logger.Info("Screening started", "id", screening.ID, "child_id", childID, "type", screeningTypeID)
	return screening, nil
}

// SaveProgress persists a partial response set for an open screening
func (s *screeningServiceImpl) SaveProgress(ctx context.Context, id int64, responses map[string]string, progressPercent int) (*entity.Screening, error) {
	// 100 is reserved for completion, which is the only path that may
	// mark a screening fully done.
	if progressPercent < 0 || progressPercent > 99 {
		return nil, fmt.Errorf("%w: progress percent must be between 0 and 99, got %d",
			apperr.ErrInvalidInput, progressPercent)
	}

	screening, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load screening: %w", err)
	}
	if screening == nil {
		return nil, notFound("screening", id)
	}

	machine := appwf.NewScreeningMachine(domainwf.State(screening.Status))
	if err := machine.Fire(ctx, appwf.EventSaveProgress); err != nil {
		return nil, mapMachineErr(err)
	}

	if progressPercent < screening.ProgressPercent {
		return nil, fmt.Errorf("%w: stored %d, got %d",
			apperr.ErrRegressingProgress, screening.ProgressPercent, progressPercent)
	}

	// Merge: new keys overwrite old, untouched keys survive
	if screening.Responses == nil {
		screening.Responses = make(map[string]string)
	}
	for k, v := range responses {
		screening.Responses[k] = v
	}
	screening.ProgressPercent = progressPercent
	screening.Status = machine.State().String()

	if err := s.repo.Update(ctx, screening); err != nil {
		return nil, err
	}

	s.logger.Info("Screening progress saved", "id", id, "progress", progressPercent)
	return screening, nil
}

// CompleteScreening closes the screening with its final responses
func (s *screeningServiceImpl) CompleteScreening(ctx context.Context, id int64, finalResponses map[string]string) (*entity.Screening, error) {
	screening, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load screening: %w", err)
	}
	if screening == nil {
		return nil, notFound("screening", id)
	}

	machine := appwf.NewScreeningMachine(domainwf.State(screening.Status))
	if err := machine.Fire(ctx, appwf.EventCompleteScreening); err != nil {
		return nil, mapMachineErr(err)
	}

	if screening.Responses == nil {
		screening.Responses = make(map[string]string)
	}
	for k, v := range finalResponses {
		screening.Responses[k] = v
	}

	now := s.clk.Now()
	screening.Status = machine.State().String()
	screening.ProgressPercent = 100
	screening.CompletedAt = &now

	if err := s.repo.Update(ctx, screening); err != nil {
		return nil, err
	}

	s.logger.Info("Screening completed", "id", id)
	return screening, nil
}

// GetScreening returns one screening by id
func (s *screeningServiceImpl) GetScreening(ctx context.Context, id int64) (*entity.Screening, error) {
	screening, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load screening: %w", err)
	}
	if screening == nil {
		return nil, notFound("screening", id)
	}
	return screening, nil
}

// ListByChild returns all screenings for a child
func (s *screeningServiceImpl) ListByChild(ctx context.Context, childID string) ([]*entity.Screening, error) {
	return s.repo.ListByChild(ctx, childID)
}
