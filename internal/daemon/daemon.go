package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelkeep/internal/api"
	"reelkeep/internal/config"
	"reelkeep/internal/logging"
	"reelkeep/internal/preflight"
)

const shutdownGrace = 10 * time.Second

// Daemon serves the HTTP API, runs scheduled jobs and enforces a single
// daemon instance per state directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *api.Service

	lockPath string
	lock     *flock.Flock

	scheduler *scheduler
	api       *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LockFilePath string
	APIAddress   string
	Schedule     []api.ScheduleJob
}

// New constructs a daemon around an already wired service.
func New(cfg *config.Config, svc *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and service")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	sched, err := newScheduler(cfg.Schedule, svc, logger)
	if err != nil {
		return nil, fmt.Errorf("configure schedule: %w", err)
	}
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		svc:       svc,
		lockPath:  cfg.DaemonLockPath(),
		lock:      flock.New(cfg.DaemonLockPath()),
		scheduler: sched,
	}
	d.api = newAPIServer(cfg.Paths.APIBind, api.NewHandler(svc, api.HandlerOptions{
		Token:          cfg.Paths.APIToken,
		Logger:         logger,
		DecorateStatus: d.decorateStatus,
	}), logger)
	return d, nil
}

// Start acquires the daemon lock, runs the readiness checks and starts the
// API server and scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelkeep daemon instance is already running")
	}

	d.logPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.scheduler.start()

	d.running.Store(true)
	d.logger.Info("reelkeep daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()))
	return nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "dependent operations fail until fixed"),
			logging.String(logging.FieldErrorHint, "run reelkeep status for details"))
	}
}

// Stop halts scheduling, cancels any running task, shuts the API down and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.scheduler.stop()
	if runner := d.svc.Runner(); runner != nil && runner.Stop() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := runner.Wait(ctx); err != nil {
			d.logger.Warn("task did not stop before shutdown", logging.Error(err))
		}
		cancel()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelkeep daemon stopped")
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.addr(),
		Schedule:     d.scheduler.entries(),
	}
}

func (d *Daemon) decorateStatus(_ context.Context, status *api.StatusResponse) {
	status.Schedule = d.scheduler.entries()
}
