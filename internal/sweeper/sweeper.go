// Package sweeper promotes requests whose local approver did not act within
// the approval window.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sigede/internal/cache"
	"sigede/internal/config"
	"sigede/internal/featureflags"
	"sigede/internal/middleware"
	"sigede/internal/models"
	"sigede/internal/observability"
	"sigede/internal/repository"
	"sigede/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const operationName = "auto_approval_sweep"

var (
	// ErrSweepInProgress is returned when another run holds the guard or the lease.
	ErrSweepInProgress = errors.New("sweeper: a sweep is already running")
	// ErrSweepDisabled is returned while the auto_approval flag is switched off.
	ErrSweepDisabled = errors.New("sweeper: auto-approval is switched off")
)

// Config controls one Sweeper.
type Config struct {
	// Staleness is how long a request may wait for local approval.
	Staleness time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// DefaultConfig returns a 24h window, 200-row batches and a 10 minute lease.
func DefaultConfig() Config {
	return Config{
		Staleness: 24 * time.Hour,
		BatchSize: 200,
		LockTTL:   10 * time.Minute,
	}
}

// ConfigFrom overlays the non-zero SWEEP_* settings on DefaultConfig.
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg.SweepStaleness > 0 {
		out.Staleness = cfg.SweepStaleness
	}
	if cfg.SweepBatchSize > 0 {
		out.BatchSize = cfg.SweepBatchSize
	}
	if cfg.SweepLockTTL > 0 {
		out.LockTTL = cfg.SweepLockTTL
	}
	return out
}

// Result summarises one run.
type Result struct {
	RunID      string        `json:"run_id"`
	Candidates int           `json:"candidates"`
	Promoted   int           `json:"promoted"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Outcome classifies the result for metrics.
func (r Result) Outcome() string {
	if r.Failed > 0 {
		return observability.SweepOutcomePartial
	}
	return observability.SweepOutcomeSuccess
}

// Sweeper applies sweep_timeout to stale pending_local_approval requests.
type Sweeper struct {
	repo   repository.RequestRepository
	locker Locker
	flags  *featureflags.Manager
	cfg    Config
	now    func() time.Time

	running sync.Mutex
}

// Option customises a Sweeper.
type Option func(*Sweeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithFlags wires the auto_approval kill switch.
func WithFlags(flags *featureflags.Manager) Option {
	return func(s *Sweeper) { s.flags = flags }
}

// New returns a Sweeper. A nil locker falls back to an in-process one and
// BatchSize is capped at repository.MaxListLimit.
func New(repo repository.RequestRepository, locker Locker, cfg Config, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.Staleness <= 0 {
		cfg.Staleness = def.Staleness
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	// List never returns more than MaxListLimit rows; a larger batch would
	// make a full page look like the last one.
	if cfg.BatchSize > repository.MaxListLimit {
		cfg.BatchSize = repository.MaxListLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	s := &Sweeper{repo: repo, locker: locker, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Staleness returns the configured approval window.
func (s *Sweeper) Staleness() time.Duration {
	return s.cfg.Staleness
}

// RunOnce performs a single sweep. Per-item failures are counted in the
// result and do not abort the run; a non-nil error means the run could not
// start or could not list candidates.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if s.flags.Off(featureflags.AutoApproval) {
		observability.RecordSweep(observability.SweepOutcomeDisabled, 0, 0, 0, 0, s.now())
		return Result{}, ErrSweepDisabled
	}
	if !s.running.TryLock() {
		observability.RecordSweep(observability.SweepOutcomeSkipped, 0, 0, 0, 0, s.now())
		return Result{}, ErrSweepInProgress
	}
	defer s.running.Unlock()

	lease, err := s.locker.Acquire(ctx, cache.SweepLockKey, s.cfg.LockTTL)
	if errors.Is(err, ErrLockHeld) {
		observability.RecordSweep(observability.SweepOutcomeSkipped, 0, 0, 0, 0, s.now())
		return Result{}, ErrSweepInProgress
	}
	if err != nil {
		observability.RecordSweep(observability.SweepOutcomeError, 0, 0, 0, 0, s.now())
		return Result{}, fmt.Errorf("acquire sweep lease: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to release sweep lease", slog.String("error", err.Error()))
		}
	}()

	res := Result{RunID: uuid.NewString(), StartedAt: s.now().UTC()}
	ctx = middleware.WithSweepRun(ctx, res.RunID)
	span, ctx := observability.StartServiceSpan(ctx, "Sweeper", "RunOnce")
	defer span.End()

	observability.LogAsyncOperationStart(ctx, operationName, map[string]any{
		"staleness": s.cfg.Staleness.String(),
		"cutoff":    workflow.Cutoff(res.StartedAt, s.cfg.Staleness),
	})

	err = s.sweep(ctx, &res)
	res.Duration = s.now().Sub(res.StartedAt)
	span.AddAttributes(
		attribute.Int("sweep.candidates", res.Candidates),
		attribute.Int("sweep.promoted", res.Promoted),
		attribute.Int("sweep.skipped", res.Skipped),
		attribute.Int("sweep.failed", res.Failed),
	)

	summary := map[string]any{
		"candidates":  res.Candidates,
		"promoted":    res.Promoted,
		"skipped":     res.Skipped,
		"failed":      res.Failed,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if err != nil {
		span.SetError(err)
		observability.LogAsyncOperationError(ctx, operationName, err, summary)
		observability.RecordSweep(observability.SweepOutcomeError, res.Promoted, res.Skipped, res.Failed, res.Duration, s.now())
		return res, err
	}
	observability.LogAsyncOperationEnd(ctx, operationName, summary)
	observability.RecordSweep(res.Outcome(), res.Promoted, res.Skipped, res.Failed, res.Duration, s.now())
	return res, nil
}

func (s *Sweeper) sweep(ctx context.Context, res *Result) error {
	now := res.StartedAt
	cutoff := workflow.Cutoff(now, s.cfg.Staleness)
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.repo.List(ctx, repository.RequestFilter{
			Statuses:      []models.RequestStatus{models.StatusPendingLocal},
			ChangedBefore: &cutoff,
			AfterID:       after,
			Limit:         s.cfg.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("list stale requests: %w", err)
		}

		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Candidates++
			s.promote(ctx, &batch[i], now, res)
		}

		if len(batch) == 0 || len(batch) < s.cfg.BatchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (s *Sweeper) promote(ctx context.Context, req *models.ServiceRequest, now time.Time, res *Result) {
	next, err := workflow.Transition(workflow.Input{
		From:       req.Status,
		Event:      models.EventSweepTimeout,
		Actor:      workflow.SystemActor(),
		Now:        now,
		LastChange: req.LastStatusChangeAt,
		Threshold:  s.cfg.Staleness,
	})
	if err != nil {
		res.Skipped++
		middleware.Logger.DebugContext(ctx, "Request no longer eligible for auto-approval",
			slog.String("request_id", req.ID),
			slog.String("reason", err.Error()),
		)
		return
	}

	_, err = s.repo.TransitionStatus(ctx, req.ID, req.Status, next, repository.TransitionMeta{
		Event: models.EventSweepTimeout,
		At:    now,
	})
	switch {
	case err == nil:
		res.Promoted++
		observability.RecordTransition(string(req.Status), string(next), string(models.EventSweepTimeout))
	case models.HasCode(err, models.CodeConflict):
		res.Skipped++
		middleware.Logger.InfoContext(ctx, "Request already processed, skipping",
			slog.String("request_id", req.ID),
		)
	default:
		res.Failed++
		observability.RecordTransitionError(string(models.EventSweepTimeout), errorCode(err))
		middleware.Logger.ErrorContext(ctx, "Failed to auto-approve request",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
	}
}

func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
