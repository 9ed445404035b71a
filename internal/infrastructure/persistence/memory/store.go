// Package memory provides an in-memory implementation of every
// repository port plus the transaction manager. It backs tests and
// callers that do not want a database file; semantics match the sqlite
// tier, including the optimistic version check on updates.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
)

// Store holds all entities behind one mutex. Individual operations are
// serialized; WithTransaction additionally snapshots the maps so a
// failed callback rolls every write back.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	screenings map[int64]*entity.Screening
	consents   map[int64]*entity.ConsentRecord
	batches    map[int64]*entity.ImportBatch
	students   map[int64]*entity.StudentRecord
	cases      map[int64]*entity.CaseFile

	nextID int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		screenings: make(map[int64]*entity.Screening),
		consents:   make(map[int64]*entity.ConsentRecord),
		batches:    make(map[int64]*entity.ImportBatch),
		students:   make(map[int64]*entity.StudentRecord),
		cases:      make(map[int64]*entity.CaseFile),
	}
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

// WithTransaction implements port.TransactionManager. Transactions are
// serialized against each other; a callback error restores the
// pre-transaction snapshot, so partial writes never become visible.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey, struct{}{})); err != nil {
		s.mu.Lock()
		s.restoreLocked(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type contextKeyType string

const txKey contextKeyType = "memtx"

type storeSnapshot struct {
	screenings map[int64]*entity.Screening
	consents   map[int64]*entity.ConsentRecord
	batches    map[int64]*entity.ImportBatch
	students   map[int64]*entity.StudentRecord
	cases      map[int64]*entity.CaseFile
	nextID     int64
}

func (s *Store) snapshotLocked() storeSnapshot {
	snap := storeSnapshot{
		screenings: make(map[int64]*entity.Screening, len(s.screenings)),
		consents:   make(map[int64]*entity.ConsentRecord, len(s.consents)),
		batches:    make(map[int64]*entity.ImportBatch, len(s.batches)),
		students:   make(map[int64]*entity.StudentRecord, len(s.students)),
		cases:      make(map[int64]*entity.CaseFile, len(s.cases)),
		nextID:     s.nextID,
	}
	for id, v := range s.screenings {
		snap.screenings[id] = cloneScreening(v)
	}
	for id, v := range s.consents {
		snap.consents[id] = cloneConsent(v)
	}
	for id, v := range s.batches {
		snap.batches[id] = cloneBatch(v)
	}
	for id, v := range s.students {
		snap.students[id] = cloneStudent(v)
	}
	for id, v := range s.cases {
		snap.cases[id] = cloneCase(v)
	}
	return snap
}

func (s *Store) restoreLocked(snap storeSnapshot) {
	s.screenings = snap.screenings
	s.consents = snap.consents
	s.batches = snap.batches
	s.students = snap.students
	s.cases = snap.cases
	s.nextID = snap.nextID
}

// Screenings returns the screening repository view of the store
func (s *Store) Screenings() port.ScreeningRepository { return (*screeningStore)(s) }

// Consents returns the consent repository view of the store
func (s *Store) Consents() port.ConsentRepository { return (*consentStore)(s) }

// Batches returns the import batch repository view of the store
func (s *Store) Batches() port.BatchRepository { return (*batchStore)(s) }

// Students returns the student repository view of the store
func (s *Store) Students() port.StudentRepository { return (*studentStore)(s) }

// Cases returns the case repository view of the store
func (s *Store) Cases() port.CaseRepository { return (*caseStore)(s) }

var _ port.TransactionManager = (*Store)(nil)

// --- screenings ---

type screeningStore Store

func (s *screeningStore) Create(_ context.Context, sc *entity.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = (*Store)(s).allocID()
	sc.Version = 1
	sc.CreatedAt = time.Now()
	sc.UpdatedAt = sc.CreatedAt
	s.screenings[sc.ID] = cloneScreening(sc)
	return nil
}

func (s *screeningStore) GetByID(_ context.Context, id int64) (*entity.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.screenings[id]
	if !ok {
		return nil, nil
	}
	return cloneScreening(sc), nil
}

func (s *screeningStore) GetOpenByChildAndType(_ context.Context, childID, screeningTypeID string) (*entity.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.screenings {
		if sc.ChildID == childID && sc.ScreeningTypeID == screeningTypeID &&
			sc.Status != entity.ScreeningStatusCompleted {
			return cloneScreening(sc), nil
		}
	}
	return nil, nil
}

func (s *screeningStore) ListByChild(_ context.Context, childID string) ([]*entity.Screening, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Screening
	for id := int64(1); id <= s.nextID; id++ {
		if sc, ok := s.screenings[id]; ok && sc.ChildID == childID {
			out = append(out, cloneScreening(sc))
		}
	}
	return out, nil
}

func (s *screeningStore) Update(_ context.Context, sc *entity.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.screenings[sc.ID]
	if !ok {
		return fmt.Errorf("%w: screening %d", apperr.ErrNotFound, sc.ID)
	}
	if stored.Version != sc.Version {
		return fmt.Errorf("%w: screening %d", apperr.ErrConcurrentModification, sc.ID)
	}
	sc.Version++
	sc.UpdatedAt = time.Now()
	s.screenings[sc.ID] = cloneScreening(sc)
	return nil
}

// --- consents ---

type consentStore Store

func (s *consentStore) Create(_ context.Context, c *entity.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = (*Store)(s).allocID()
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.consents[c.ID] = cloneConsent(c)
	return nil
}

func (s *consentStore) GetByID(_ context.Context, id int64) (*entity.ConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[id]
	if !ok {
		return nil, nil
	}
	return cloneConsent(c), nil
}

func (s *consentStore) ListBySubject(_ context.Context, subjectID string) ([]*entity.ConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.ConsentRecord
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.consents[id]; ok && c.SubjectID == subjectID {
			out = append(out, cloneConsent(c))
		}
	}
	return out, nil
}

func (s *consentStore) Update(_ context.Context, c *entity.ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.consents[c.ID]
	if !ok {
		return fmt.Errorf("%w: consent %d", apperr.ErrNotFound, c.ID)
	}
	if stored.Version != c.Version {
		return fmt.Errorf("%w: consent %d", apperr.ErrConcurrentModification, c.ID)
	}
	c.Version++
	c.UpdatedAt = time.Now()
	s.consents[c.ID] = cloneConsent(c)
	return nil
}

// --- batches ---

type batchStore Store

func (s *batchStore) Create(_ context.Context, b *entity.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = (*Store)(s).allocID()
	b.Version = 1
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	s.batches[b.ID] = cloneBatch(b)
	return nil
}

func (s *batchStore) GetByID(_ context.Context, id int64) (*entity.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, nil
	}
	return cloneBatch(b), nil
}

func (s *batchStore) ListBySchool(_ context.Context, schoolID string) ([]*entity.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.ImportBatch
	for id := int64(1); id <= s.nextID; id++ {
		if b, ok := s.batches[id]; ok && b.SchoolID == schoolID {
			out = append(out, cloneBatch(b))
		}
	}
	return out, nil
}

func (s *batchStore) Update(_ context.Context, b *entity.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.batches[b.ID]
	if !ok {
		return fmt.Errorf("%w: import batch %d", apperr.ErrNotFound, b.ID)
	}
	if stored.Version != b.Version {
		return fmt.Errorf("%w: import batch %d", apperr.ErrConcurrentModification, b.ID)
	}
	b.Version++
	b.UpdatedAt = time.Now()
	s.batches[b.ID] = cloneBatch(b)
	return nil
}

// --- students ---

type studentStore Store

func (s *studentStore) Create(_ context.Context, st *entity.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = (*Store)(s).allocID()
	st.Version = 1
	st.CreatedAt = time.Now()
	st.UpdatedAt = st.CreatedAt
	s.students[st.ID] = cloneStudent(st)
	return nil
}

func (s *studentStore) GetByID(_ context.Context, id int64) (*entity.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return cloneStudent(st), nil
}

func (s *studentStore) ListBySchool(_ context.Context, schoolID string) ([]*entity.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.StudentRecord
	for id := int64(1); id <= s.nextID; id++ {
		if st, ok := s.students[id]; ok && st.SchoolID == schoolID {
			out = append(out, cloneStudent(st))
		}
	}
	return out, nil
}

func (s *studentStore) Update(_ context.Context, st *entity.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.students[st.ID]
	if !ok {
		return fmt.Errorf("%w: student %d", apperr.ErrNotFound, st.ID)
	}
	if stored.Version != st.Version {
		return fmt.Errorf("%w: student %d", apperr.ErrConcurrentModification, st.ID)
	}
	st.Version++
	st.UpdatedAt = time.Now()
	s.students[st.ID] = cloneStudent(st)
	return nil
}

// --- cases ---

type caseStore Store

func (s *caseStore) Create(_ context.Context, c *entity.CaseFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = (*Store)(s).allocID()
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.cases[c.ID] = cloneCase(c)
	return nil
}

func (s *caseStore) GetByID(_ context.Context, id int64) (*entity.CaseFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, nil
	}
	return cloneCase(c), nil
}

func (s *caseStore) ListBySubject(_ context.Context, subjectID string) ([]*entity.CaseFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.CaseFile
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.cases[id]; ok && c.SubjectID == subjectID {
			out = append(out, cloneCase(c))
		}
	}
	return out, nil
}

func (s *caseStore) Update(_ context.Context, c *entity.CaseFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.cases[c.ID]
	if !ok {
		return fmt.Errorf("%w: case %d", apperr.ErrNotFound, c.ID)
	}
	if stored.Version != c.Version {
		return fmt.Errorf("%w: case %d", apperr.ErrConcurrentModification, c.ID)
	}
	c.Version++
	c.UpdatedAt = time.Now()
	s.cases[c.ID] = cloneCase(c)
	return nil
}
