package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/sqlite"
)

// ScreeningRepository implements port.ScreeningRepository
type ScreeningRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewScreeningRepository creates a new screening repository
func NewScreeningRepository(db *sqlite.DB, logger *zap.Logger) port.ScreeningRepository {
	return &ScreeningRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new screening
func (r *ScreeningRepository) Create(ctx context.Context, s *entity.Screening) error {
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	query := `
		INSERT INTO screenings (
			child_id, screening_type_id, status, responses,
			progress_percent, started_at, version
		) VALUES (?, ?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		s.ChildID,
		s.ScreeningTypeID,
		s.Status,
		string(responses),
		s.ProgressPercent,
		s.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create screening", zap.Error(err))
		return fmt.Errorf("create screening: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	s.ID = id
	s.Version = 1
	return nil
}

// GetByID retrieves a screening by ID, (nil, nil) when absent
func (r *ScreeningRepository) GetByID(ctx context.Context, id int64) (*entity.Screening, error) {
	query := selectScreening + ` WHERE id = ?`
	return r.scanOne(ctx, query, id)
}

// GetOpenByChildAndType retrieves the incomplete screening of the given
// type for the child, if one exists
func (r *ScreeningRepository) GetOpenByChildAndType(ctx context.Context, childID, screeningTypeID string) (*entity.Screening, error) {
	query := selectScreening + ` WHERE child_id = ? AND screening_type_id = ? AND status != ? LIMIT 1`
	return r.scanOne(ctx, query, childID, screeningTypeID, entity.ScreeningStatusCompleted)
}

// ListByChild retrieves all screenings for a child in creation order
func (r *ScreeningRepository) ListByChild(ctx context.Context, childID string) ([]*entity.Screening, error) {
	query := selectScreening + ` WHERE child_id = ? ORDER BY id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, childID)
	if err != nil {
		r.logger.Error("Failed to list screenings", zap.String("child_id", childID), zap.Error(err))
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	defer rows.Close()

	var screenings []*entity.Screening
	for rows.Next() {
		s, err := scanScreening(rows.Scan)
		if err != nil {
			return nil, err
		}
		screenings = append(screenings, s)
	}
	return screenings, rows.Err()
}

// Update writes the screening back with an optimistic version check
func (r *ScreeningRepository) Update(ctx context.Context, s *entity.Screening) error {
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	var completedAt interface{}
	if s.CompletedAt != nil {
		completedAt = *s.CompletedAt
	}

	query := `
		UPDATE screenings
		SET status = ?, responses = ?, progress_percent = ?,
			completed_at = ?, version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		s.Status,
		string(responses),
		s.ProgressPercent,
		completedAt,
		s.ID,
		s.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update screening", zap.Int64("id", s.ID), zap.Error(err))
		return fmt.Errorf("update screening: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return staleOrMissing(ctx, r.db, "screenings", "screening", s.ID)
	}

	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

const selectScreening = `
	SELECT id, child_id, screening_type_id, status, responses,
		progress_percent, started_at, completed_at, version,
		created_at, updated_at
	FROM screenings`

func (r *ScreeningRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*entity.Screening, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx, query, args...)
	s, err := scanScreening(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get screening", zap.Error(err))
		return nil, fmt.Errorf("get screening: %w", err)
	}
	return s, nil
}

func scanScreening(scan func(...interface{}) error) (*entity.Screening, error) {
	var s entity.Screening
	var responses string
	var completedAt sql.NullTime

	err := scan(
		&s.ID,
		&s.ChildID,
		&s.ScreeningTypeID,
		&s.Status,
		&responses,
		&s.ProgressPercent,
		&s.StartedAt,
		&completedAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(responses), &s.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

// staleOrMissing classifies a zero-row UPDATE: the entity either
// vanished or someone else won the version race.
func staleOrMissing(ctx context.Context, db *sqlite.DB, table, kind string, id int64) error {
	var one int
	err := db.Executor(ctx).QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s %d", apperr.ErrNotFound, kind, id)
	}
	if err != nil {
		return fmt.Errorf("check %s %d: %w", kind, id, err)
	}
	return fmt.Errorf("%w: %s %d", apperr.ErrConcurrentModification, kind, id)
}
