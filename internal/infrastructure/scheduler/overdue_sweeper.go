package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSchedulerNotRunning is returned when a manual trigger is requested
// while the scheduler is stopped.
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

// QuotaSweeper marks overdue quotas as of a reference time.
type QuotaSweeper interface {
	MarkOverdueQuotas(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueSweeper periodically marks unpaid quotas past their due date as overdue.
type OverdueSweeper struct {
	service   QuotaSweeper
	logger    *zap.Logger
	config    OverdueSweeperConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// OverdueSweeperConfig holds configuration for the overdue sweep scheduler
type OverdueSweeperConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between sweep runs
	Interval time.Duration

	// SweepTimeout is the maximum time for a single sweep run
	SweepTimeout time.Duration
}

// DefaultOverdueSweeperConfig returns default configuration
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Enabled:      true,
		Interval:     6 * time.Hour,
		SweepTimeout: 5 * time.Minute,
	}
}

// NewOverdueSweeper creates a new overdue sweep scheduler
func NewOverdueSweeper(service QuotaSweeper, logger *zap.Logger, config OverdueSweeperConfig) *OverdueSweeper {
	return &OverdueSweeper{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the overdue sweep scheduler
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runSweepLoop(ctx)

	s.logger.Info("Overdue sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// runSweepLoop runs the sweep at the configured interval until the context is cancelled
func (s *OverdueSweeper) runSweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once at startup so a restart does not delay overdue marking
	// by a full interval.
	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Overdue sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep performs a single overdue sweep run
func (s *OverdueSweeper) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	marked, err := s.service.MarkOverdueQuotas(sweepCtx, startTime)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Overdue sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Overdue sweep completed",
		zap.Duration("duration", duration),
		zap.Int("quotas_marked", marked),
	)
}

// TriggerImmediateSweep triggers an immediate sweep run
func (s *OverdueSweeper) TriggerImmediateSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate overdue sweep")

	go func() {
		defer s.wg.Done()
		s.executeSweep(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
