package api

import (
	"context"
	"fmt"
	"log/slog"

	"reelkeep/internal/cleanup"
	"reelkeep/internal/emby"
	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/reconcile"
	"reelkeep/internal/services"
	"reelkeep/internal/settings"
	"reelkeep/internal/store"
	"reelkeep/internal/tasks"
	"reelkeep/internal/tmdb"
)

// Task names recorded by the runner and in metrics.
const (
	TaskScan      = "scan"
	TaskExecute   = "cleanup"
	TaskReconcile = "reconcile"
)

// Store is the persistence the service coordinates.
type Store interface {
	cleanup.ScanStore
	cleanup.ExecuteStore
	reconcile.Store
	settings.Store
	ListCleanup(ctx context.Context, status media.CleanupStatus) ([]media.PendingEntry, error)
	PendingIDs(ctx context.Context) ([]int64, error)
	DeleteCleanupEntries(ctx context.Context, ids []int64) (int, error)
	ClearPending(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
}

// MediaServer is the media server surface used by scans, executions and
// reconciles.
type MediaServer interface {
	reconcile.Server
	cleanup.LibraryScope
	cleanup.Deleter
	Libraries(ctx context.Context) ([]emby.Library, error)
}

// ReconcileConfig carries the tuning knobs for reconcile runs.
type ReconcileConfig struct {
	BatchSize   int
	Concurrency int
	LibraryIDs  []string
}

// Deps wires a Service. Server and Provider may be nil when not configured;
// operations that need them then fail with a configuration error.
type Deps struct {
	Store     Store
	Server    MediaServer
	Provider  tmdb.Provider
	Runner    *tasks.Runner
	Reconcile ReconcileConfig
	Logger    *slog.Logger
}

// Service exposes the cleanup and reconcile operations shared by the CLI and
// the HTTP API.
type Service struct {
	store     Store
	server    MediaServer
	provider  tmdb.Provider
	runner    *tasks.Runner
	reconcile ReconcileConfig
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(deps Deps) *Service {
	return &Service{
		store:     deps.Store,
		server:    deps.Server,
		provider:  deps.Provider,
		runner:    deps.Runner,
		reconcile: deps.Reconcile,
		logger:    logging.NewComponentLogger(deps.Logger, "api"),
	}
}

// Runner returns the task runner backing the service.
func (s *Service) Runner() *tasks.Runner {
	return s.runner
}

// ListCleanup returns cleanup entries in the given status, pending when empty.
func (s *Service) ListCleanup(ctx context.Context, status media.CleanupStatus) ([]CleanupItem, error) {
	if status == "" {
		status = media.CleanupPending
	}
	if !status.Valid() {
		return nil, services.Wrap(services.ErrValidation, "cleanup", "list", fmt.Sprintf("unknown status %q", status), nil)
	}
	entries, err := s.store.ListCleanup(ctx, status)
	if err != nil {
		return nil, err
	}
	return FromPendingEntries(entries), nil
}

// Ignore marks entries ignored so scans and executions skip them.
func (s *Service) Ignore(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, errNoIDs("ignore")
	}
	return s.store.SetCleanupStatus(ctx, ids, media.CleanupIgnored)
}

// Delete removes entries from the cleanup index without touching the server.
func (s *Service) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, errNoIDs("delete")
	}
	return s.store.DeleteCleanupEntries(ctx, ids)
}

// ClearAll drops every pending entry.
func (s *Service) ClearAll(ctx context.Context) error {
	return s.store.ClearPending(ctx)
}

// Settings loads the cleanup settings with defaults applied.
func (s *Service) Settings(ctx context.Context) (settings.Settings, error) {
	return settings.Load(ctx, s.store)
}

// SaveSettings validates and stores the cleanup settings.
func (s *Service) SaveSettings(ctx context.Context, value settings.Settings) error {
	if err := settings.Save(ctx, s.store, value); err != nil {
		return err
	}
	s.logger.Info("cleanup settings saved",
		logging.String("settings", value.Summary()),
		logging.String(logging.FieldEventType, "settings_saved"))
	return nil
}

// Libraries lists the media server's libraries, flagging those in the saved
// scan scope.
func (s *Service) Libraries(ctx context.Context) ([]Library, error) {
	if s.server == nil {
		return nil, services.Wrap(services.ErrConfiguration, "settings", "libraries", "emby is not configured", nil)
	}
	libs, err := s.server.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	current, err := settings.Load(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return FromLibraries(libs, current.LibraryIDs), nil
}

// PendingIDs lists every pending entry ID, for execute-all.
func (s *Service) PendingIDs(ctx context.Context) ([]int64, error) {
	return s.store.PendingIDs(ctx)
}

// ScanTask builds a duplicate scan using the saved settings.
func (s *Service) ScanTask() tasks.Func {
	return func(ctx context.Context, rep tasks.Reporter) error {
		cfg, err := settings.Load(ctx, s.store)
		if err != nil {
			return fmt.Errorf("load cleanup settings: %w", err)
		}
		var scope cleanup.LibraryScope
		if s.server != nil {
			scope = s.server
		}
		scanner := cleanup.NewScanner(s.store, scope, rep, s.logger)
		flagged, err := scanner.Scan(ctx, cleanup.ScanOptions{
			Rules:         cfg.Rules,
			LibraryIDs:    cfg.LibraryIDs,
			PerResolution: cfg.KeepOnePerResolution,
		})
		if err != nil {
			return err
		}
		logging.WithContext(ctx, s.logger).Info("scan complete",
			logging.Int("flagged", flagged),
			logging.String("settings", cfg.Summary()),
			logging.String(logging.FieldEventType, "scan_complete"))
		return nil
	}
}

// ExecuteTask builds a cleanup execution for the given entries.
func (s *Service) ExecuteTask(ids []int64) (tasks.Func, error) {
	if len(ids) == 0 {
		return nil, errNoIDs("execute")
	}
	if s.server == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cleanup", "execute", "emby is not configured", nil)
	}
	ids = append([]int64(nil), ids...)
	return func(ctx context.Context, rep tasks.Reporter) error {
		executor := cleanup.NewExecutor(s.store, s.server, rep, s.logger)
		result, err := executor.Execute(ctx, ids)
		if err != nil {
			return err
		}
		logging.WithContext(ctx, s.logger).Info("cleanup executed",
			logging.Int("processed", result.Processed),
			logging.Int("deleted", result.Deleted),
			logging.String(logging.FieldEventType, "cleanup_executed"))
		return nil
	}, nil
}

// ReconcileTask builds a library reconcile.
func (s *Service) ReconcileTask(forceFull bool) (tasks.Func, error) {
	if s.server == nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "start", "emby is not configured", nil)
	}
	if s.provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "start", "tmdb api key is not configured", nil)
	}
	if len(s.reconcile.LibraryIDs) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "start", "no libraries configured; set emby.libraries", nil)
	}
	opts := reconcile.Options{
		ForceFullRefresh: forceFull,
		BatchSize:        s.reconcile.BatchSize,
		LibraryIDs:       s.reconcile.LibraryIDs,
	}
	return func(ctx context.Context, rep tasks.Reporter) error {
		r := reconcile.New(s.server, s.provider, s.store, rep, s.logger, s.reconcile.Concurrency)
		_, err := r.Run(ctx, opts)
		return err
	}, nil
}

// StartScan queues a scan on the runner.
func (s *Service) StartScan() (TaskAccepted, error) {
	return s.submit(TaskScan, s.ScanTask(), nil)
}

// StartExecute queues a cleanup execution on the runner.
func (s *Service) StartExecute(ids []int64) (TaskAccepted, error) {
	fn, err := s.ExecuteTask(ids)
	return s.submit(TaskExecute, fn, err)
}

// StartReconcile queues a reconcile on the runner.
func (s *Service) StartReconcile(forceFull bool) (TaskAccepted, error) {
	fn, err := s.ReconcileTask(forceFull)
	return s.submit(TaskReconcile, fn, err)
}

func (s *Service) submit(name string, fn tasks.Func, buildErr error) (TaskAccepted, error) {
	if buildErr != nil {
		return TaskAccepted{}, buildErr
	}
	if s.runner == nil {
		return TaskAccepted{}, services.Wrap(services.ErrConfiguration, "tasks", "submit", "task runner unavailable", nil)
	}
	id, err := s.runner.Submit(name, fn)
	if err != nil {
		return TaskAccepted{}, err
	}
	return TaskAccepted{TaskID: id, Name: name}, nil
}

// TaskStatus reports the latest task.
func (s *Service) TaskStatus() TaskStatus {
	if s.runner == nil {
		return TaskStatus{}
	}
	return FromTaskStatus(s.runner.Status())
}

// StopTask cancels the running task.
func (s *Service) StopTask() StopResponse {
	if s.runner == nil {
		return StopResponse{}
	}
	return StopResponse{Stopped: s.runner.Stop()}
}

// Status aggregates task state and database counts.
func (s *Service) Status(ctx context.Context) (StatusResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{
		Task: s.TaskStatus(),
		Counts: LibraryCounts{
			Titles:    stats.Titles,
			InLibrary: stats.InLibrary,
			Pending:   stats.Pending,
			Ignored:   stats.Ignored,
			Processed: stats.Processed,
		},
	}, nil
}

func errNoIDs(operation string) error {
	return services.Wrap(services.ErrValidation, "cleanup", operation, "no entry ids given", nil)
}
