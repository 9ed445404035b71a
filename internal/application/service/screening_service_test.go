package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/screening-lifecycle/internal/application/port"
	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	"github.com/brightpath/screening-lifecycle/internal/domain/clock"
	"github.com/brightpath/screening-lifecycle/internal/domain/entity"
	"github.com/brightpath/screening-lifecycle/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func testClock() *clock.FixedClock {
	return clock.NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}

func newScreeningService() (ScreeningService, *memory.Store, *clock.FixedClock) {
	store := memory.NewStore()
	clk := testClock()
	return NewScreeningService(store.Screenings(), clk, nopLogger{}), store, clk
}

func TestStartScreening(t *testing.T) {
	svc, _, clk := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	assert.Equal(t, entity.ScreeningStatusInProgress, screening.Status)
	assert.Equal(t, 0, screening.ProgressPercent)
	assert.Equal(t, clk.Now(), screening.StartedAt)
	assert.NotZero(t, screening.ID)
}

func TestStartScreening_DuplicateOpenRejected(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	_, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	_, err = svc.StartScreening(ctx, "child-1", "ASQ-3")
	assert.ErrorIs(t, err, apperr.ErrDuplicateActiveScreening)

	// A different type for the same child is fine
	_, err = svc.StartScreening(ctx, "child-1", "M-CHAT")
	assert.NoError(t, err)
}

func TestStartScreening_AllowedAfterCompletion(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	first, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)
	_, err = svc.CompleteScreening(ctx, first.ID, nil)
	require.NoError(t, err)

	_, err = svc.StartScreening(ctx, "child-1", "ASQ-3")
	assert.NoError(t, err)
}

func TestSaveProgress(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	updated, err := svc.SaveProgress(ctx, screening.ID, map[string]string{"q1": "yes"}, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.ProgressPercent)
	assert.Equal(t, "yes", updated.Responses["q1"])

	// Later saves merge: q1 survives, q2 arrives
	updated, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q2": "no"}, 40)
	require.NoError(t, err)
	assert.Equal(t, "yes", updated.Responses["q1"])
	assert.Equal(t, "no", updated.Responses["q2"])
	assert.Equal(t, entity.ScreeningStatusInProgress, updated.Status)
}

func TestSaveProgress_NeverDecreases(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	_, err = svc.SaveProgress(ctx, screening.ID, nil, 50)
	require.NoError(t, err)

	_, err = svc.SaveProgress(ctx, screening.ID, nil, 30)
	assert.ErrorIs(t, err, apperr.ErrRegressingProgress)

	// Equal progress is fine (pure response merge)
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q3": "maybe"}, 50)
	assert.NoError(t, err)
}

func TestSaveProgress_Bounds(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	for _, pct := range []int{-1, 100, 101} {
		_, err = svc.SaveProgress(ctx, screening.ID, nil, pct)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "progress %d", pct)
	}

	_, err = svc.SaveProgress(ctx, screening.ID, nil, 99)
	assert.NoError(t, err)
}

func TestSaveProgress_FullProgressOnlyThroughCompletion(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q1": "yes"}, 99)
	require.NoError(t, err)

	// Saving 100 must fail and leave the screening untouched: an open
	// screening may never report full progress.
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q2": "no"}, 100)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	stored, err := svc.GetScreening(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ScreeningStatusInProgress, stored.Status)
	assert.Equal(t, 99, stored.ProgressPercent)
	assert.Nil(t, stored.CompletedAt)
	assert.NotContains(t, stored.Responses, "q2")

	done, err := svc.CompleteScreening(ctx, screening.ID, map[string]string{"q2": "no"})
	require.NoError(t, err)
	assert.Equal(t, 100, done.ProgressPercent)
	require.NotNil(t, done.CompletedAt)
}

func TestCompleteScreening(t *testing.T) {
	svc, _, clk := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q1": "yes"}, 60)
	require.NoError(t, err)

	done, err := svc.CompleteScreening(ctx, screening.ID, map[string]string{"q2": "no"})
	require.NoError(t, err)

	assert.Equal(t, entity.ScreeningStatusCompleted, done.Status)
	assert.Equal(t, 100, done.ProgressPercent)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, clk.Now(), *done.CompletedAt)
	assert.Equal(t, "yes", done.Responses["q1"])
	assert.Equal(t, "no", done.Responses["q2"])
}

func TestCompletedScreeningIsImmutable(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)
	_, err = svc.CompleteScreening(ctx, screening.ID, nil)
	require.NoError(t, err)

	_, err = svc.SaveProgress(ctx, screening.ID, nil, 99)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.CompleteScreening(ctx, screening.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

// staleReadScreeningRepo serves every read after the first from the
// same snapshot, simulating two writers that both loaded the screening
// before either wrote it back.
type staleReadScreeningRepo struct {
	port.ScreeningRepository
	snapshot *entity.Screening
}

func (r *staleReadScreeningRepo) GetByID(ctx context.Context, id int64) (*entity.Screening, error) {
	if r.snapshot == nil {
		s, err := r.ScreeningRepository.GetByID(ctx, id)
		if err != nil || s == nil {
			return s, err
		}
		r.snapshot = s
	}
	stale := *r.snapshot
	stale.Responses = make(map[string]string, len(r.snapshot.Responses))
	for k, v := range r.snapshot.Responses {
		stale.Responses[k] = v
	}
	return &stale, nil
}

func TestSaveProgress_StaleWriteLosesVersionRace(t *testing.T) {
	store := memory.NewStore()
	repo := &staleReadScreeningRepo{ScreeningRepository: store.Screenings()}
	svc := NewScreeningService(repo, testClock(), nopLogger{})
	ctx := context.Background()

	screening, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)

	// First writer commits against the version both writers read
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q1": "yes"}, 30)
	require.NoError(t, err)

	// Second writer carries the stale version and must lose
	_, err = svc.SaveProgress(ctx, screening.ID, map[string]string{"q1": "no"}, 40)
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

	stored, err := store.Screenings().GetByID(ctx, screening.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.ProgressPercent)
	assert.Equal(t, "yes", stored.Responses["q1"])
}

func TestGetScreening_NotFound(t *testing.T) {
	svc, _, _ := newScreeningService()

	_, err := svc.GetScreening(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListByChild(t *testing.T) {
	svc, _, _ := newScreeningService()
	ctx := context.Background()

	first, err := svc.StartScreening(ctx, "child-1", "ASQ-3")
	require.NoError(t, err)
	_, err = svc.StartScreening(ctx, "child-2", "ASQ-3")
	require.NoError(t, err)
	second, err := svc.StartScreening(ctx, "child-1", "M-CHAT")
	require.NoError(t, err)

	list, err := svc.ListByChild(ctx, "child-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}
