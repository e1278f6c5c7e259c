package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sigede/internal/config"
	"sigede/internal/featureflags"
	"sigede/internal/models"
	"sigede/internal/repository"
	"sigede/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var submittedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	repo    repository.RequestRepository
	warga   *models.User
	kadus   *models.User
	clock   time.Time
	sweeper *Sweeper
}

func newFixture(t *testing.T, cfg Config, wrap func(repository.RequestRepository) repository.RequestRepository) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:    db,
		repo:  repository.NewRequestRepository(db),
		warga: testutil.CreateUser(t, db, "warga_r1", models.RoleWarga),
		kadus: testutil.CreateUser(t, db, "kadus_r1", models.RoleKadus),
		clock: submittedAt,
	}
	repo := f.repo
	if wrap != nil {
		repo = wrap(repo)
	}
	f.sweeper = New(repo, NewLocalLocker(), cfg, WithClock(func() time.Time { return f.clock }))
	return f
}

func TestSweeper_ApprovalWindowScenario(t *testing.T) {
	f := newFixture(t, Config{Staleness: 24 * time.Hour}, nil)
	ctx := context.Background()
	testutil.PendingRequest(t, f.db, "r1", f.warga.ID, submittedAt)

	f.clock = submittedAt.Add(12 * time.Hour)
	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, f.db, "r1"))

	f.clock = submittedAt.Add(25 * time.Hour)
	res, err = f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, models.StatusAutoApproved, testutil.Status(t, f.db, "r1"))

	got, err := f.repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.LastStatusChangeAt.Equal(f.clock), "last change is the sweep time")
	assert.Nil(t, got.ReviewedByUserID)

	history, err := f.repo.History(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.EventSweepTimeout, history[1].Event)
	assert.Nil(t, history[1].ActorUserID, "sweeper acts as the system actor")

	f.clock = submittedAt.Add(49 * time.Hour)
	res, err = f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{RunID: res.RunID, StartedAt: res.StartedAt, Duration: res.Duration}, res, "second sweep is a no-op")
	assert.Equal(t, models.StatusAutoApproved, testutil.Status(t, f.db, "r1"))
}

func TestSweeper_BoundaryIsInclusive(t *testing.T) {
	f := newFixture(t, Config{Staleness: 24 * time.Hour}, nil)
	f.clock = submittedAt.Add(24 * time.Hour)
	testutil.PendingRequest(t, f.db, "exact", f.warga.ID, submittedAt)
	testutil.PendingRequest(t, f.db, "one-second-short", f.warga.ID, submittedAt.Add(time.Second))

	res, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, models.StatusAutoApproved, testutil.Status(t, f.db, "exact"))
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, f.db, "one-second-short"))
}

func TestSweeper_PagesThroughBatches(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour, BatchSize: 2}, nil)
	f.clock = submittedAt.Add(48 * time.Hour)
	for i := 0; i < 5; i++ {
		testutil.PendingRequest(t, f.db, fmt.Sprintf("req-%02d", i), f.warga.ID, submittedAt)
	}

	res, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Candidates)
	assert.Equal(t, 5, res.Promoted)
}

func TestSweeper_BatchLargerThanListPage(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour, BatchSize: 1000}, nil)
	assert.Equal(t, repository.MaxListLimit, f.sweeper.cfg.BatchSize)
	f.clock = submittedAt.Add(48 * time.Hour)
	const total = 600
	for i := 0; i < total; i++ {
		testutil.PendingRequest(t, f.db, fmt.Sprintf("stale-%03d", i), f.warga.ID, submittedAt)
	}

	res, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, res.Candidates)
	assert.Equal(t, total, res.Promoted)

	var stillPending int64
	require.NoError(t, f.db.Model(&models.ServiceRequest{}).
		Where("status = ?", models.StatusPendingLocal).Count(&stillPending).Error)
	assert.Zero(t, stillPending)
}

func TestSweeper_IgnoresOtherStatuses(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour}, nil)
	ctx := context.Background()
	testutil.PendingRequest(t, f.db, "escalated", f.warga.ID, submittedAt)
	_, err := f.repo.TransitionStatus(ctx, "escalated", models.StatusPendingLocal, models.StatusPendingAdmin, repository.TransitionMeta{
		Event: models.EventLocalApprove, ActorUserID: &f.kadus.ID, At: submittedAt,
	})
	require.NoError(t, err)

	f.clock = submittedAt.Add(72 * time.Hour)
	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
	assert.Equal(t, models.StatusPendingAdmin, testutil.Status(t, f.db, "escalated"))
}

// racingRepo lets a human approve a request between the sweeper's read and write.
type racingRepo struct {
	repository.RequestRepository
	raceID string
	actor  uint
}

func (r *racingRepo) TransitionStatus(ctx context.Context, id string, expected, next models.RequestStatus, meta repository.TransitionMeta) (*models.ServiceRequest, error) {
	if id == r.raceID {
		if _, err := r.RequestRepository.TransitionStatus(ctx, id, models.StatusPendingLocal, models.StatusPendingAdmin, repository.TransitionMeta{
			Event: models.EventLocalApprove, ActorUserID: &r.actor, At: meta.At,
		}); err != nil {
			return nil, err
		}
	}
	return r.RequestRepository.TransitionStatus(ctx, id, expected, next, meta)
}

func TestSweeper_ConflictIsSkipped(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour}, func(inner repository.RequestRepository) repository.RequestRepository {
		return &racingRepo{RequestRepository: inner, raceID: "contested"}
	})
	f.sweeper.repo.(*racingRepo).actor = f.kadus.ID
	testutil.PendingRequest(t, f.db, "contested", f.warga.ID, submittedAt)
	testutil.PendingRequest(t, f.db, "quiet", f.warga.ID, submittedAt)

	f.clock = submittedAt.Add(2 * time.Hour)
	res, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Equal(t, models.StatusPendingAdmin, testutil.Status(t, f.db, "contested"), "the human decision wins")
	assert.Equal(t, models.StatusAutoApproved, testutil.Status(t, f.db, "quiet"))
}

// flakyRepo fails writes for selected ids.
type flakyRepo struct {
	repository.RequestRepository
	failIDs map[string]bool
}

func (r *flakyRepo) TransitionStatus(ctx context.Context, id string, expected, next models.RequestStatus, meta repository.TransitionMeta) (*models.ServiceRequest, error) {
	if r.failIDs[id] {
		return nil, models.NewPersistenceError(errors.New("connection reset by peer"))
	}
	return r.RequestRepository.TransitionStatus(ctx, id, expected, next, meta)
}

func TestSweeper_FailureDoesNotAbortRun(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour}, func(inner repository.RequestRepository) repository.RequestRepository {
		return &flakyRepo{RequestRepository: inner, failIDs: map[string]bool{"b": true}}
	})
	for _, id := range []string{"a", "b", "c"} {
		testutil.PendingRequest(t, f.db, id, f.warga.ID, submittedAt)
	}

	f.clock = submittedAt.Add(2 * time.Hour)
	res, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 2, res.Promoted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "partial", res.Outcome())
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, f.db, "b"))

	// The failed item is picked up by the next run once the store recovers.
	f.sweeper.repo.(*flakyRepo).failIDs = nil
	f.clock = f.clock.Add(time.Hour)
	res, err = f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
}

func TestSweeper_LeaseHeldElsewhere(t *testing.T) {
	db := testutil.NewDB(t)
	warga := testutil.CreateUser(t, db, "warga_lock", models.RoleWarga)
	testutil.PendingRequest(t, db, "held", warga.ID, submittedAt)

	locker := NewLocalLocker()
	lease, err := locker.Acquire(context.Background(), "sweep:auto_approval:lock", time.Hour)
	require.NoError(t, err)

	s := New(repository.NewRequestRepository(db), locker, Config{Staleness: time.Hour},
		WithClock(func() time.Time { return submittedAt.Add(48 * time.Hour) }))

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, db, "held"))

	require.NoError(t, lease.Release(context.Background()))
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
}

// Two instances without a shared lease still promote each request once.
func TestSweeper_ConcurrentInstancesPromoteOnce(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour, BatchSize: 7}, nil)
	f.clock = submittedAt.Add(48 * time.Hour)
	const total = 40
	for i := 0; i < total; i++ {
		testutil.PendingRequest(t, f.db, fmt.Sprintf("multi-%02d", i), f.warga.ID, submittedAt)
	}

	clock := WithClock(func() time.Time { return submittedAt.Add(48 * time.Hour) })
	instances := []*Sweeper{
		New(f.repo, NewLocalLocker(), Config{Staleness: time.Hour, BatchSize: 7}, clock),
		New(f.repo, NewLocalLocker(), Config{Staleness: time.Hour, BatchSize: 7}, clock),
	}

	results := make([]Result, len(instances))
	errs := make([]error, len(instances))
	var wg sync.WaitGroup
	for i, s := range instances {
		wg.Add(1)
		go func(i int, s *Sweeper) {
			defer wg.Done()
			results[i], errs[i] = s.RunOnce(context.Background())
		}(i, s)
	}
	wg.Wait()

	promoted := 0
	for i := range instances {
		require.NoError(t, errs[i])
		assert.Zero(t, results[i].Failed)
		promoted += results[i].Promoted
	}
	assert.Equal(t, total, promoted)

	var autoApproved int64
	require.NoError(t, f.db.Model(&models.ServiceRequest{}).
		Where("status = ?", models.StatusAutoApproved).Count(&autoApproved).Error)
	assert.Equal(t, int64(total), autoApproved)

	type timeoutRows struct {
		RequestID string
		N         int
	}
	var rows []timeoutRows
	require.NoError(t, f.db.Model(&models.RequestStatusHistory{}).
		Select("request_id, COUNT(*) AS n").
		Where("event = ?", models.EventSweepTimeout).
		Group("request_id").
		Scan(&rows).Error)
	require.Len(t, rows, total)
	for _, r := range rows {
		assert.Equal(t, 1, r.N, r.RequestID)
	}
}

func TestSweeper_InProcessGuard(t *testing.T) {
	s := New(nil, nil, Config{})
	s.running.Lock()
	defer s.running.Unlock()

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

func TestSweeper_KillSwitch(t *testing.T) {
	db := testutil.NewDB(t)
	warga := testutil.CreateUser(t, db, "warga_flag", models.RoleWarga)
	testutil.PendingRequest(t, db, "flagged", warga.ID, submittedAt)

	s := New(repository.NewRequestRepository(db), nil, Config{Staleness: time.Hour},
		WithClock(func() time.Time { return submittedAt.Add(48 * time.Hour) }),
		WithFlags(featureflags.NewManager("auto_approval=off")))

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepDisabled)
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, db, "flagged"))
}

func TestSweeper_CancelledContextStopsBetweenItems(t *testing.T) {
	f := newFixture(t, Config{Staleness: time.Hour}, nil)
	testutil.PendingRequest(t, f.db, "x", f.warga.ID, submittedAt)
	f.clock = submittedAt.Add(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.sweeper.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatusPendingLocal, testutil.Status(t, f.db, "x"))
}

func TestConfigFrom(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFrom(&config.Config{}))

	got := ConfigFrom(&config.Config{SweepStaleness: 48 * time.Hour, SweepBatchSize: 10})
	assert.Equal(t, 48*time.Hour, got.Staleness)
	assert.Equal(t, 10, got.BatchSize)
	assert.Equal(t, DefaultConfig().LockTTL, got.LockTTL)

	capped := New(nil, nil, ConfigFrom(&config.Config{SweepBatchSize: 5000}))
	assert.Equal(t, repository.MaxListLimit, capped.cfg.BatchSize)
}
