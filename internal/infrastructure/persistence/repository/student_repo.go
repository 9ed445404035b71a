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

// StudentRepository implements port.StudentRepository
type StudentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sqlite.DB, logger *zap.Logger) port.StudentRepository {
	return &StudentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new student record
func (r *StudentRepository) Create(ctx context.Context, s *entity.StudentRecord) error {
	query := `
		INSERT INTO student_records (
			school_id, first_name, last_name, grade, guardian, version
		) VALUES (?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		s.SchoolID,
		s.FirstName,
		s.LastName,
		s.Grade,
		s.Guardian,
	)
	if err != nil {
		r.logger.Error("Failed to create student record", zap.Error(err))
		return fmt.Errorf("create student: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	s.ID = id
	s.Version = 1
	return nil
}

// GetByID retrieves a student record by ID, (nil, nil) when absent
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*entity.StudentRecord, error) {
	query := selectStudent + ` WHERE id = ?`

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, id)
	s, err := scanStudent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get student record", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// ListBySchool retrieves all student records for a school, oldest first
func (r *StudentRepository) ListBySchool(ctx context.Context, schoolID string) ([]*entity.StudentRecord, error) {
	query := selectStudent + ` WHERE school_id = ? ORDER BY id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, schoolID)
	if err != nil {
		r.logger.Error("Failed to list student records", zap.String("school_id", schoolID), zap.Error(err))
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []*entity.StudentRecord
	for rows.Next() {
		s, err := scanStudent(rows.Scan)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Update writes the student record back with an optimistic version check
func (r *StudentRepository) Update(ctx context.Context, s *entity.StudentRecord) error {
	query := `
		UPDATE student_records
		SET first_name = ?, last_name = ?, grade = ?, guardian = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		s.FirstName,
		s.LastName,
		s.Grade,
		s.Guardian,
		s.ID,
		s.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update student record", zap.Int64("id", s.ID), zap.Error(err))
		return fmt.Errorf("update student: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return staleOrMissing(ctx, r.db, "student_records", "student", s.ID)
	}

	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

const selectStudent = `
	SELECT id, school_id, first_name, last_name, grade, guardian,
		version, created_at, updated_at
	FROM student_records`

func scanStudent(scan func(...interface{}) error) (*entity.StudentRecord, error) {
	var s entity.StudentRecord
	err := scan(
		&s.ID,
		&s.SchoolID,
		&s.FirstName,
		&s.LastName,
		&s.Grade,
		&s.Guardian,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
