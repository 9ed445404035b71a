package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/sqlite"
)

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sqlite.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new case file
func (r *CaseRepository) Create(ctx context.Context, c *entity.CaseFile) error {
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}

	query := `
		INSERT INTO case_files (
			subject_id, status, closure_type, checklist, signature,
			previous_case_id, version
		) VALUES (?, ?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.SubjectID,
		c.Status,
		c.ClosureType,
		string(checklist),
		c.Signature,
		c.PreviousCaseID,
	)
	if err != nil {
		r.logger.Error("Failed to create case file", zap.Error(err))
		return fmt.Errorf("create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	c.ID = id
	c.Version = 1
	return nil
}

// GetByID retrieves a case file by ID, (nil, nil) when absent
func (r *CaseRepository) GetByID(ctx context.Context, id int64) (*entity.CaseFile, error) {
	query := selectCase + ` WHERE id = ?`

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, id)
	c, err := scanCase(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case file", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// ListBySubject retrieves all case files for a subject, oldest first
func (r *CaseRepository) ListBySubject(ctx context.Context, subjectID string) ([]*entity.CaseFile, error) {
	query := selectCase + ` WHERE subject_id = ? ORDER BY id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to list case files", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []*entity.CaseFile
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Update writes the case file back with an optimistic version check
func (r *CaseRepository) Update(ctx context.Context, c *entity.CaseFile) error {
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}

	var closedAt interface{}
	if c.ClosedAt != nil {
		closedAt = *c.ClosedAt
	}

	query := `
		UPDATE case_files
		SET status = ?, closure_type = ?, checklist = ?, signature = ?,
			closed_at = ?, version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.Status,
		c.ClosureType,
		string(checklist),
		c.Signature,
		closedAt,
		c.ID,
		c.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update case file", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("update case: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return staleOrMissing(ctx, r.db, "case_files", "case", c.ID)
	}

	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

const selectCase = `
	SELECT id, subject_id, status, closure_type, checklist, signature,
		previous_case_id, closed_at, version, created_at, updated_at
	FROM case_files`

func scanCase(scan func(...interface{}) error) (*entity.CaseFile, error) {
	var c entity.CaseFile
	var checklist string
	var closedAt sql.NullTime

	err := scan(
		&c.ID,
		&c.SubjectID,
		&c.Status,
		&c.ClosureType,
		&checklist,
		&c.Signature,
		&c.PreviousCaseID,
		&closedAt,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(checklist), &c.Checklist); err != nil {
		return nil, fmt.Errorf("unmarshal checklist: %w", err)
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}
