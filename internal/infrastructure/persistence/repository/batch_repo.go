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

// BatchRepository implements port.BatchRepository. Rows are stored as a
// JSON document alongside the batch; they are always read and written
// as one unit, which keeps row annotations and batch status in step.
type BatchRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *sqlite.DB, logger *zap.Logger) port.BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new import batch
func (r *BatchRepository) Create(ctx context.Context, b *entity.ImportBatch) error {
	rows, err := json.Marshal(b.Rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	query := `
		INSERT INTO import_batches (
			school_id, uploaded_filename, status, conflict_policy,
			rows_json, total_rows, valid_count, warning_count,
			error_count, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		b.SchoolID,
		b.UploadedFilename,
		b.Status,
		b.ConflictPolicy,
		string(rows),
		b.TotalRows,
		b.ValidCount,
		b.WarningCount,
		b.ErrorCount,
	)
	if err != nil {
		r.logger.Error("Failed to create import batch", zap.Error(err))
		return fmt.Errorf("create batch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	b.ID = id
	b.Version = 1
	return nil
}

// GetByID retrieves an import batch by ID, (nil, nil) when absent
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*entity.ImportBatch, error) {
	query := selectBatch + ` WHERE id = ?`

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, id)
	b, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get import batch", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListBySchool retrieves all batches for a school, oldest first
func (r *BatchRepository) ListBySchool(ctx context.Context, schoolID string) ([]*entity.ImportBatch, error) {
	query := selectBatch + ` WHERE school_id = ? ORDER BY id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, schoolID)
	if err != nil {
		r.logger.Error("Failed to list import batches", zap.String("school_id", schoolID), zap.Error(err))
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*entity.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Update writes the batch back with an optimistic version check
func (r *BatchRepository) Update(ctx context.Context, b *entity.ImportBatch) error {
	rows, err := json.Marshal(b.Rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	query := `
		UPDATE import_batches
		SET status = ?, rows_json = ?, valid_count = ?,
			warning_count = ?, error_count = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		b.Status,
		string(rows),
		b.ValidCount,
		b.WarningCount,
		b.ErrorCount,
		b.ID,
		b.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update import batch", zap.Int64("id", b.ID), zap.Error(err))
		return fmt.Errorf("update batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return staleOrMissing(ctx, r.db, "import_batches", "import batch", b.ID)
	}

	b.Version++
	b.UpdatedAt = time.Now()
	return nil
}

const selectBatch = `
	SELECT id, school_id, uploaded_filename, status, conflict_policy,
		rows_json, total_rows, valid_count, warning_count, error_count,
		version, created_at, updated_at
	FROM import_batches`

func scanBatch(scan func(...interface{}) error) (*entity.ImportBatch, error) {
	var b entity.ImportBatch
	var rowsJSON string

	err := scan(
		&b.ID,
		&b.SchoolID,
		&b.UploadedFilename,
		&b.Status,
		&b.ConflictPolicy,
		&rowsJSON,
		&b.TotalRows,
		&b.ValidCount,
		&b.WarningCount,
		&b.ErrorCount,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rowsJSON), &b.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	return &b, nil
}
