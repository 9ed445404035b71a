package port

import (
	"context"

	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
)

// Repositories return (nil, nil) when an entity id does not exist; the
// service layer owns the NotFound classification. Every Update is a
// compare-and-swap on the entity's Version: a stale version fails with
// apperr.ErrConcurrentModification and leaves the stored row untouched.

// ScreeningRepository defines persistence operations for Screening
type ScreeningRepository interface {
	Create(ctx context.Context, s *entity.Screening) error
	GetByID(ctx context.Context, id int64) (*entity.Screening, error)
	GetOpenByChildAndType(ctx context.Context, childID, screeningTypeID string) (*entity.Screening, error)
	ListByChild(ctx context.Context, childID string) ([]*entity.Screening, error)
	Update(ctx context.Context, s *entity.Screening) error
}

// ConsentRepository defines persistence operations for ConsentRecord
type ConsentRepository interface {
	Create(ctx context.Context, c *entity.ConsentRecord) error
	GetByID(ctx context.Context, id int64) (*entity.ConsentRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*entity.ConsentRecord, error)
	Update(ctx context.Context, c *entity.ConsentRecord) error
}

// BatchRepository defines persistence operations for ImportBatch
type BatchRepository interface {
	Create(ctx context.Context, b *entity.ImportBatch) error
	GetByID(ctx context.Context, id int64) (*entity.ImportBatch, error)
	ListBySchool(ctx context.Context, schoolID string) ([]*entity.ImportBatch, error)
	Update(ctx context.Context, b *entity.ImportBatch) error
}

// StudentRepository defines persistence operations for StudentRecord
type StudentRepository interface {
	Create(ctx context.Context, s *entity.StudentRecord) error
	GetByID(ctx context.Context, id int64) (*entity.StudentRecord, error)
	ListBySchool(ctx context.Context, schoolID string) ([]*entity.StudentRecord, error)
	Update(ctx context.Context, s *entity.StudentRecord) error
}

// CaseRepository defines persistence operations for CaseFile
type CaseRepository interface {
	Create(ctx context.Context, c *entity.CaseFile) error
	GetByID(ctx context.Context, id int64) (*entity.CaseFile, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*entity.CaseFile, error)
	Update(ctx context.Context, c *entity.CaseFile) error
}

// TransactionManager executes a function within a single store
// transaction. Nested calls join the enclosing transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
