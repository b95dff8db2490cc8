// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/goroutine"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const statusMonitorJobName = "status-monitor"

// ErrMonitorNotRegistered is returned by TriggerSweep before RegisterStatusMonitor.
var ErrMonitorNotRegistered = errors.New("status monitor is not registered")

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// SchedulerManager manages all scheduled jobs using gocron v2.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	monitorMu sync.RWMutex
	monitor   gocron.Job

	// ctx parents every job run; Stop cancels it so in-flight runs wind down.
	ctx    context.Context
	cancel context.CancelFunc

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// ========================================
// Status Monitor (configurable interval, delayed first run)
// ========================================

// RegisterStatusMonitor registers the recurring agent status sweep. Runs never
// overlap: a tick that fires while a sweep is still running is skipped. A
// panicking sweep is logged and the next tick runs normally.
func (m *SchedulerManager) RegisterStatusMonitor(job BatchJob, interval, initialDelay, timeout time.Duration) error {
	if interval <= 0 {
		return errors.New("status monitor interval must be positive")
	}
	if timeout <= 0 {
		timeout = interval
	}

	startAt := gocron.WithStartImmediately()
	if initialDelay > 0 {
		startAt = gocron.WithStartDateTime(time.Now().Add(initialDelay))
	}

	j, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(m.ctx, timeout)
			defer cancel()
			m.runStatusSweep(ctx, job)
		}),
		gocron.WithStartAt(startAt),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("agent", "status", "reassignment"),
		gocron.WithName(statusMonitorJobName),
	)
	if err != nil {
		return err
	}

	m.monitorMu.Lock()
	m.monitor = j
	m.monitorMu.Unlock()

	m.logger.Infow("registered status monitor",
		"interval", interval.String(),
		"initial_delay", initialDelay.String(),
	)
	return nil
}

func (m *SchedulerManager) runStatusSweep(ctx context.Context, job BatchJob) {
	startTime := biztime.NowUTC()

	goroutine.Run(m.logger, statusMonitorJobName, func() {
		moved, err := job.Execute(ctx)
		if err != nil {
			m.logger.Errorw("status sweep failed",
				"error", err,
				"duration", time.Since(startTime),
			)
			return
		}
		if moved > 0 {
			m.logger.Infow("status sweep reassigned tickets",
				"count", moved,
				"duration", time.Since(startTime),
			)
		}
	})
}

// TriggerSweep asks for an immediate status sweep without changing the
// regular schedule. It is dropped if a sweep is already running.
func (m *SchedulerManager) TriggerSweep() error {
	m.monitorMu.RLock()
	j := m.monitor
	m.monitorMu.RUnlock()

	if j == nil {
		return ErrMonitorNotRegistered
	}
	if !m.IsStarted() {
		return nil
	}
	if err := j.RunNow(); err != nil {
		m.logger.Warnw("failed to trigger status sweep", "error", err)
		return err
	}
	return nil
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop cancels running jobs and stops the scheduler.
// It waits for them to return before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	m.cancel()
	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
