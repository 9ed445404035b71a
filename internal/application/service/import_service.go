package service

import (
	"context"
	"fmt"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/application/validation"
	appwf "github.com/brightpath/screening-lifecycle/internal/application/workflow"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// ImportService manages bulk student import batches. Rows arrive
// already parsed; CSV handling belongs to the caller.
type ImportService interface {
	// CreateBatch stores an uploaded batch in VALIDATING
	CreateBatch(ctx context.Context, schoolID, filename string, rows []entity.ImportRow, conflictPolicy string) (*entity.ImportBatch, error)

	// ValidateImport runs the validation pipeline and stores the
	// report. Row errors move the batch to FAILED; the report comes
	// back either way.
	ValidateImport(ctx context.Context, id int64) (*entity.ImportBatch, *validation.Report, error)

	// CommitImport writes the batch's rows into student records under
	// the batch's conflict policy. All-or-nothing: a row failure
	// leaves zero committed rows and the batch FAILED.
	CommitImport(ctx context.Context, id int64) (*entity.ImportBatch, error)

	GetBatch(ctx context.Context, id int64) (*entity.ImportBatch, error)
	ListBySchool(ctx context.Context, schoolID string) ([]*entity.ImportBatch, error)
}

type importServiceImpl struct {
	batchRepo   port.BatchRepository
	studentRepo port.StudentRepository
	pipeline    *validation.Pipeline
	txManager   port.TransactionManager
	logger      Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	batchRepo port.BatchRepository,
	studentRepo port.StudentRepository,
	pipeline *validation.Pipeline,
	txManager port.TransactionManager,
	logger Logger,
) ImportService {
	return &importServiceImpl{
		batchRepo:   batchRepo,
		studentRepo: studentRepo,
		pipeline:    pipeline,
		txManager:   txManager,
		logger:      logger,
	}
}

// CreateBatch stores an uploaded batch awaiting validation
func (s *importServiceImpl) CreateBatch(ctx context.Context, schoolID, filename string, rows []entity.ImportRow, conflictPolicy string) (*entity.ImportBatch, error) {
	if schoolID == "" {
		return nil, fmt.Errorf("%w: school id is required", apperr.ErrInvalidInput)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: batch has no rows", apperr.ErrInvalidInput)
	}
	if !entity.ValidConflictPolicy(conflictPolicy) {
		return nil, fmt.Errorf("%w: unsupported conflict policy %q", apperr.ErrInvalidInput, conflictPolicy)
	}

	// Row order is upload order; indexes are assigned here once and
	// never change afterwards.
	for i := range rows {
		rows[i].RowIndex = i
		rows[i].Status = ""
		rows[i].ErrorReason = ""
		rows[i].Duplicate = false
		rows[i].DuplicateOf = 0
	}

	batch := &entity.ImportBatch{
		SchoolID:         schoolID,
		UploadedFilename: filename,
		Status:           entity.BatchStatusValidating,
		ConflictPolicy:   conflictPolicy,
		Rows:             rows,
		TotalRows:        len(rows),
	}

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		s.logger.Error("Failed to create import batch", "error", err, "school_id", schoolID)
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("Import batch created", "id", batch.ID, "school_id", schoolID, "rows", len(rows))
	return batch, nil
}

// ValidateImport runs row and batch checks and stores the outcome
func (s *importServiceImpl) ValidateImport(ctx context.Context, id int64) (*entity.ImportBatch, *validation.Report, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, nil, notFound("import batch", id)
	}

	machine := appwf.NewBatchMachine(domainwf.State(batch.Status))
	if !machine.CanFire(appwf.EventValidationPassed) {
		return nil, nil, fmt.Errorf("%w: batch %d is %s", apperr.ErrInvalidState, id, batch.Status)
	}

	existing, err := s.studentRepo.ListBySchool(ctx, batch.SchoolID)
	if err != nil {
		return nil, nil, fmt.Errorf("load existing students: %w", err)
	}

	report := s.pipeline.ValidateBatch(batch.Rows, existing)

	event := appwf.EventValidationPassed
	if report.ErrorCount > 0 {
		event = appwf.EventValidationFailed
	}
	if err := machine.Fire(ctx, event); err != nil {
		return nil, nil, mapMachineErr(err)
	}

	batch.Rows = report.Rows
	batch.ValidCount = report.ValidCount
	batch.WarningCount = report.WarningCount
	batch.ErrorCount = report.ErrorCount
	batch.Status = machine.State().String()

	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, nil, err
	}

	if report.ErrorCount > 0 {
		s.logger.Info("Import batch failed validation", "id", id, "errors", report.ErrorCount)
		return batch, &report, fmt.Errorf("%w: %d row errors", apperr.ErrValidationFailed, report.ErrorCount)
	}

	s.logger.Info("Import batch validated", "id", id, "valid", report.ValidCount, "warnings", report.WarningCount)
	return batch, &report, nil
}

// CommitImport applies the batch to the student records
func (s *importServiceImpl) CommitImport(ctx context.Context, id int64) (*entity.ImportBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, notFound("import batch", id)
	}

	machine := appwf.NewBatchMachine(domainwf.State(batch.Status))
	if err := machine.Fire(ctx, appwf.EventBeginCommit); err != nil {
		return nil, mapMachineErr(err)
	}

	// Claim the batch. The version check makes this the commit race
	// arbiter: of two concurrent committers, exactly one writes
	// COMMITTING and the other gets ConcurrentModification.
	batch.Status = machine.State().String()
	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, err
	}

	commitErr := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.studentRepo.ListBySchool(txCtx, batch.SchoolID)
		if err != nil {
			return fmt.Errorf("load existing students: %w", err)
		}

		// Live key map: conflicts are resolved at commit time against
		// both pre-existing records and rows committed earlier in this
		// batch.
		byKey := make(map[string]*entity.StudentRecord, len(existing))
		for _, st := range existing {
			byKey[st.DuplicateKey()] = st
		}

		for i := range batch.Rows {
			row := &batch.Rows[i]
			key := entity.NormalizedStudentKey(row.FirstName, row.LastName, row.Grade)

			match, exists := byKey[key]
			if !exists {
				student := &entity.StudentRecord{
					SchoolID:  batch.SchoolID,
					FirstName: row.FirstName,
					LastName:  row.LastName,
					Grade:     row.Grade,
					Guardian:  row.Guardian,
				}
				if err := s.studentRepo.Create(txCtx, student); err != nil {
					return fmt.Errorf("row %d: create student: %w", row.RowIndex, err)
				}
				byKey[key] = student
				continue
			}

			switch batch.ConflictPolicy {
			case entity.ConflictPolicySkip:
				row.Status = entity.RowStatusSkipped
			case entity.ConflictPolicyUpdate:
				match.FirstName = row.FirstName
				match.LastName = row.LastName
				match.Grade = row.Grade
				match.Guardian = row.Guardian
				if err := s.studentRepo.Update(txCtx, match); err != nil {
					return fmt.Errorf("row %d: update student %d: %w", row.RowIndex, match.ID, err)
				}
			}
		}

		if err := machine.Fire(txCtx, appwf.EventCommitSucceeded); err != nil {
			return mapMachineErr(err)
		}
		batch.Status = machine.State().String()
		return s.batchRepo.Update(txCtx, batch)
	})

	if commitErr != nil {
		// The transaction rolled back: no partial rows are visible.
		// Reload the stored batch (its rows carry no half-applied
		// marks) and record the failure on it.
		if fresh, loadErr := s.batchRepo.GetByID(ctx, id); loadErr == nil && fresh != nil {
			failed := appwf.NewBatchMachine(domainwf.State(fresh.Status))
			if err := failed.Fire(ctx, appwf.EventRowFailure); err == nil {
				fresh.Status = failed.State().String()
				if updErr := s.batchRepo.Update(ctx, fresh); updErr != nil {
					s.logger.Error("Failed to mark batch failed", "id", id, "error", updErr)
				}
			}
		}
		s.logger.Error("Import batch commit failed", "id", id, "error", commitErr)
		return nil, fmt.Errorf("commit batch %d: %w", id, commitErr)
	}

	s.logger.Info("Import batch committed", "id", id, "rows", batch.TotalRows)
	return batch, nil
}

// GetBatch returns one batch by id
func (s *importServiceImpl) GetBatch(ctx context.Context, id int64) (*entity.ImportBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, notFound("import batch", id)
	}
	return batch, nil
}

// ListBySchool returns all batches uploaded for a school
func (s *importServiceImpl) ListBySchool(ctx context.Context, schoolID string) ([]*entity.ImportBatch, error) {
	return s.batchRepo.ListBySchool(ctx, schoolID)
}
