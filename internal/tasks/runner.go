package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"reelkeep/internal/logging"
	"reelkeep/internal/metrics"
	"reelkeep/internal/services"
)

// ErrBusy is returned when a task is already running in this or another
// reelkeep process.
var ErrBusy = errors.New("another task is running")

// Func is the body of a task. It reports progress through rep and should
// return promptly once ctx is cancelled.
type Func func(ctx context.Context, rep Reporter) error

// Reporter receives progress: a percentage from 0 to 100, or -1 on failure.
type Reporter interface {
	Report(percent int, message string)
}

// Status is a snapshot of the most recent task.
type Status struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Percent  int       `json:"percent"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started,omitzero"`
	Finished time.Time `json:"finished,omitzero"`
	Running  bool      `json:"running"`
}

// Runner executes at most one task at a time. The lock file extends the
// exclusion to other processes sharing the state directory.
type Runner struct {
	lock   *flock.Flock
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner guarded by the lock file at lockPath.
func NewRunner(lockPath string, logger *slog.Logger) *Runner {
	return &Runner{
		lock:   flock.New(lockPath),
		logger: logging.NewComponentLogger(logger, "tasks"),
	}
}

// Submit starts fn in the background and returns its run ID. It returns
// ErrBusy when another task holds the runner or the lock file.
func (r *Runner) Submit(name string, fn Func) (string, error) {
	ctx, id, done, err := r.begin(context.Background(), name)
	if err != nil {
		return "", err
	}
	go func() {
		defer close(done)
		_ = r.execute(ctx, id, name, fn)
	}()
	return id, nil
}

// Run executes fn in the calling goroutine under the same exclusion as
// Submit. The task stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, name string, fn Func) error {
	taskCtx, id, done, err := r.begin(ctx, name)
	if err != nil {
		return err
	}
	defer close(done)
	return r.execute(taskCtx, id, name, fn)
}

func (r *Runner) begin(parent context.Context, name string) (context.Context, string, chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Running {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrBusy, r.status.Name)
	}
	ok, err := r.lock.TryLock()
	if err != nil {
		return nil, "", nil, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return nil, "", nil, fmt.Errorf("%w: lock held by another process", ErrBusy)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)
	ctx = services.WithTaskName(services.WithTaskID(ctx, id), name)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.status = Status{
		ID:      id,
		Name:    name,
		Message: "starting",
		Started: time.Now(),
		Running: true,
	}
	return ctx, id, r.done, nil
}

func (r *Runner) execute(ctx context.Context, id, name string, fn Func) (err error) {
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()
	logger.Info("task started", logging.String(logging.FieldEventType, "task_started"))

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
			logger.Error("task panicked",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "task_panic"))
		}
		outcome := r.finish(id, err)
		if unlockErr := r.lock.Unlock(); unlockErr != nil {
			logger.Warn("release task lock failed", logging.Error(unlockErr))
		}
		elapsed := time.Since(started)
		metrics.RecordTask(name, outcome, elapsed.Seconds())
		if err != nil {
			logging.ErrorWithContext(logger, "task failed", "task_failed",
				logging.String("outcome", outcome),
				logging.Duration("elapsed", elapsed),
				logging.Error(err))
			return
		}
		logger.Info("task finished",
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "task_finished"))
	}()

	return fn(ctx, reporter{runner: r, id: id})
}

func (r *Runner) finish(id string, err error) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	outcome := "success"
	if r.status.ID != id {
		return outcome
	}
	r.status.Running = false
	r.status.Finished = time.Now()
	switch {
	case err == nil:
		if r.status.Percent != 100 {
			r.status.Percent = 100
		}
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
		r.status.Percent = -1
		r.status.Message = "task stopped"
		r.status.Error = err.Error()
	default:
		outcome = "failed"
		r.status.Percent = -1
		r.status.Message = "task failed: " + err.Error()
		r.status.Error = err.Error()
	}
	return outcome
}

// Stop cancels the running task, if any. It reports whether a task was
// running.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Running || r.cancel == nil {
		return false
	}
	r.cancel()
	r.status.Message = "stopping"
	return true
}

// Wait blocks until the current task finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a copy of the latest task status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Busy reports whether a task is running in this process.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.Running
}

type reporter struct {
	runner *Runner
	id     string
}

func (p reporter) Report(percent int, message string) {
	r := p.runner
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.ID != p.id || !r.status.Running {
		return
	}
	percent = max(-1, min(percent, 100))
	r.status.Percent = percent
	if message != "" {
		r.status.Message = message
	}
}
