// Package scheduler triggers distribution runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/revshare/internal/models"
)

// Distributor runs one distribution. A nil event means nothing was pending.
type Distributor interface {
	DistributeUndistributed(ctx context.Context) (*models.DistributionEvent, error)
}

// Config controls when payouts run.
type Config struct {
	// Schedule is a five-field cron expression or a descriptor such as "@daily".
	Schedule string

	// Timeout bounds a single run. Zero means no bound.
	Timeout time.Duration
}

// Scheduler calls a Distributor on a cron schedule. Overlapping runs are
// skipped.
type Scheduler struct {
	config      Config
	distributor Distributor
	cron        *cron.Cron

	runCtx    context.Context
	cancelRun context.CancelFunc
	stopOnce  sync.Once
	stopped   chan struct{}
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a usable schedule.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid payout schedule %q: %w", spec, err)
	}
	return nil
}

// New creates a scheduler. The schedule is validated immediately.
func New(cfg Config, distributor Distributor) (*Scheduler, error) {
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return nil, err
	}

	logger := cronLogger{}
	s := &Scheduler{
		config:      cfg,
		distributor: distributor,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		stopped: make(chan struct{}),
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(cfg.Schedule, func() { s.RunOnce(s.runCtx) }); err != nil {
		return nil, fmt.Errorf("failed to register payout job: %w", err)
	}
	return s, nil
}

// Start runs the schedule until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	slog.Info("Payout scheduler started", "schedule", s.config.Schedule, "next_run", s.Next())

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()
}

// Stop cancels any run in progress and waits for it to return. Safe to call
// multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Payout scheduler stopping")
		s.cancelRun()
		<-s.cron.Stop().Done()
		close(s.stopped)
		slog.Info("Payout scheduler stopped")
	})
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs a single distribution run bounded by the configured
// timeout. Failures are logged and retried at the next tick.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.DistributionEvent, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	dist, err := s.distributor.DistributeUndistributed(ctx)
	if err != nil {
		slog.Error("Scheduled distribution failed", "error", err)
		return nil, err
	}
	if dist != nil {
		slog.Info("Scheduled distribution committed", "distribution_id", dist.ID, "total", dist.Total)
	}
	return dist, nil
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
