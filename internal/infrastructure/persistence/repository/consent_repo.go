package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/sqlite"
)

// ConsentRepository implements port.ConsentRepository
type ConsentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *sqlite.DB, logger *zap.Logger) port.ConsentRepository {
	return &ConsentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new consent record
func (r *ConsentRepository) Create(ctx context.Context, c *entity.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (
			subject_id, consent_type, status, requested_on,
			auto_consent_window_days, version
		) VALUES (?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.SubjectID,
		c.ConsentType,
		c.Status,
		c.RequestedOn,
		c.AutoConsentWindowDays,
	)
	if err != nil {
		r.logger.Error("Failed to create consent record", zap.Error(err))
		return fmt.Errorf("create consent: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	c.ID = id
	c.Version = 1
	return nil
}

// GetByID retrieves a consent record by ID, (nil, nil) when absent
func (r *ConsentRepository) GetByID(ctx context.Context, id int64) (*entity.ConsentRecord, error) {
	query := selectConsent + ` WHERE id = ?`

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, id)
	c, err := scanConsent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get consent record", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get consent: %w", err)
	}
	return c, nil
}

// ListBySubject retrieves all consent records for a subject, oldest first.
// Superseded records are included; nothing is ever deleted.
func (r *ConsentRepository) ListBySubject(ctx context.Context, subjectID string) ([]*entity.ConsentRecord, error) {
	query := selectConsent + ` WHERE subject_id = ? ORDER BY id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to list consent records", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []*entity.ConsentRecord
	for rows.Next() {
		c, err := scanConsent(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

// Update writes the consent record back with an optimistic version check
func (r *ConsentRepository) Update(ctx context.Context, c *entity.ConsentRecord) error {
	var resolvedOn, validUntil interface{}
	if c.ResolvedOn != nil {
		resolvedOn = *c.ResolvedOn
	}
	if c.ValidUntil != nil {
		validUntil = *c.ValidUntil
	}

	query := `
		UPDATE consent_records
		SET status = ?, resolved_on = ?, valid_until = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.Status,
		resolvedOn,
		validUntil,
		c.ID,
		c.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update consent record", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("update consent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return staleOrMissing(ctx, r.db, "consent_records", "consent", c.ID)
	}

	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

const selectConsent = `
	SELECT id, subject_id, consent_type, status, requested_on,
		resolved_on, auto_consent_window_days, valid_until, version,
		created_at, updated_at
	FROM consent_records`

func scanConsent(scan func(...interface{}) error) (*entity.ConsentRecord, error) {
	var c entity.ConsentRecord
	var resolvedOn, validUntil sql.NullTime

	err := scan(
		&c.ID,
		&c.SubjectID,
		&c.ConsentType,
		&c.Status,
		&c.RequestedOn,
		&resolvedOn,
		&c.AutoConsentWindowDays,
		&validUntil,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resolvedOn.Valid {
		c.ResolvedOn = &resolvedOn.Time
	}
	if validUntil.Valid {
		c.ValidUntil = &validUntil.Time
	}
	return &c, nil
}
