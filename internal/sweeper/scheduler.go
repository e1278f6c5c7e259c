package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sigede/internal/middleware"
)

// Scheduler errors.
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
)

// Runner is the work fired on each tick.
type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// SchedulerConfig controls tick alignment.
type SchedulerConfig struct {
	// Interval between runs. Ticks are aligned to local midnight in Location.
	// Default: 1h
	Interval time.Duration
	// Location used for alignment. Default: UTC
	Location *time.Location
}

// Scheduler fires a Runner on fixed wall-clock boundaries. Missed boundaries
// are not replayed: after each run it waits for the next boundary after now.
type Scheduler struct {
	runner Runner
	cfg    SchedulerConfig
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		after:  time.After,
	}
}

// Start runs the loop in the background until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	middleware.Logger.Info("Sweep scheduler stopped")
	return nil
}

// Run blocks, firing the runner at each boundary until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	middleware.Logger.InfoContext(ctx, "Sweep scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.String("timezone", s.cfg.Location.String()),
	)
	for {
		now := s.now()
		next := NextBoundary(now, s.cfg.Interval, s.cfg.Location)
		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(now)):
		}
		s.tick(ctx)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.runner.RunOnce(ctx)
	switch {
	case err == nil:
		if res.Failed > 0 {
			middleware.Logger.WarnContext(ctx, "Sweep finished with failures",
				slog.String("run_id", res.RunID),
				slog.Int("failed", res.Failed),
			)
		}
	case errors.Is(err, ErrSweepDisabled):
		middleware.Logger.InfoContext(ctx, "Auto-approval switched off, skipping sweep")
	case errors.Is(err, ErrSweepInProgress):
		middleware.Logger.InfoContext(ctx, "Previous sweep still running, skipping tick")
	case errors.Is(err, context.Canceled):
	default:
		middleware.Logger.ErrorContext(ctx, "Sweep failed", slog.String("error", err.Error()))
	}
}

// NextBoundary returns the first instant strictly after now that is a whole
// number of intervals past local midnight in loc.
func NextBoundary(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	next := midnight.Add((elapsed/interval + 1) * interval)
	if interval < 24*time.Hour {
		if tomorrow := midnight.AddDate(0, 0, 1); next.After(tomorrow) {
			next = tomorrow
		}
	}
	return next
}
