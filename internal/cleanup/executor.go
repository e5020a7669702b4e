package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/metrics"
	"reelkeep/internal/services"
)

// ExecuteStore is the persistence the executor needs.
type ExecuteStore interface {
	CleanupEntries(ctx context.Context, ids []int64) ([]media.CleanupEntry, error)
	TitleFor(ctx context.Context, key media.TitleKey) (string, bool, error)
	RemoveVersion(ctx context.Context, itemID string) (int, error)
	SetCleanupStatus(ctx context.Context, ids []int64, status media.CleanupStatus) (int, error)
}

// Deleter removes items from the media server.
type Deleter interface {
	DeleteItem(ctx context.Context, id string) (bool, error)
}

// Refresher is implemented by media servers that can rescan the kept version
// once its siblings are gone.
type Refresher interface {
	RefreshItem(ctx context.Context, id string) error
}

// ExecuteResult summarises an execution run.
type ExecuteResult struct {
	Processed int
	Deleted   int
}

// Executor deletes losing versions of approved cleanup entries.
type Executor struct {
	store    ExecuteStore
	deleter  Deleter
	reporter Reporter
	logger   *slog.Logger
}

// NewExecutor wires an executor.
func NewExecutor(store ExecuteStore, deleter Deleter, reporter Reporter, logger *slog.Logger) *Executor {
	if reporter == nil {
		reporter = ReporterFunc(func(int, string) {})
	}
	return &Executor{
		store:    store,
		deleter:  deleter,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "cleanup-executor"),
	}
}

// Execute processes the given entries in ID order. Deletions are best-effort:
// each failure is logged and the entry is still marked processed once all of
// its versions were attempted. Cancellation stops before the next entry and
// leaves it untouched.
func (e *Executor) Execute(ctx context.Context, ids []int64) (ExecuteResult, error) {
	var result ExecuteResult
	if len(ids) == 0 {
		return result, services.Wrap(services.ErrValidation, "cleanup", "execute", "no cleanup entries selected", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	entries, err := e.store.CleanupEntries(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("load cleanup entries: %w", err)
	}
	total := len(entries)
	if total == 0 {
		e.reporter.Report(100, "nothing to do: no matching cleanup entries")
		return result, nil
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			logging.WarnWithContext(logger, "cleanup stopped before completion", "cleanup_cancelled",
				logging.Int("processed", result.Processed),
				logging.Int("remaining", total-i),
				logging.String(logging.FieldImpact, "remaining entries stay pending"))
			return result, err
		}

		title := e.titleFor(ctx, logger, entry.Key)
		e.reporter.Report(100*i/total, fmt.Sprintf("(%d/%d) cleaning %s", i+1, total, title))
		entryLogger := logger.With(
			logging.Int64("entry_id", entry.ID),
			logging.String(logging.FieldTMDBID, entry.Key.TMDBID),
			logging.String("title", title))

		if entry.Winner.IsZero() {
			logging.WarnWithContext(entryLogger, "cleanup entry has no kept version; skipping", "cleanup_entry_invalid",
				logging.String(logging.FieldErrorHint, "rescan to rebuild the entry"),
				logging.String(logging.FieldImpact, "no versions deleted for this title"))
			continue
		}

		if deleted := e.deleteLosers(ctx, entryLogger, entry); deleted > 0 {
			result.Deleted += deleted
			e.refreshKept(ctx, entryLogger, entry.Winner)
		}

		if _, err := e.store.SetCleanupStatus(ctx, []int64{entry.ID}, media.CleanupProcessed); err != nil {
			logging.ErrorWithContext(entryLogger, "mark entry processed failed", "cleanup_status_failed", logging.Error(err))
		}
		result.Processed++
	}

	logger.Info("cleanup execution complete",
		logging.Int("processed", result.Processed),
		logging.Int("deleted", result.Deleted),
		logging.String(logging.FieldEventType, "cleanup_execute_complete"))
	e.reporter.Report(100, fmt.Sprintf("cleanup complete: %d entries processed, %d versions deleted", result.Processed, result.Deleted))
	return result, nil
}

func (e *Executor) deleteLosers(ctx context.Context, logger *slog.Logger, entry media.CleanupEntry) int {
	deleted := 0
	for _, version := range entry.Versions {
		if version.ID == "" || entry.Winner.Keeps(version.ID) {
			continue
		}
		vlog := logger.With(logging.String(logging.FieldItemID, version.ID), logging.String("path", version.Path))
		vlog.Info("deleting redundant version", logging.String(logging.FieldEventType, "cleanup_delete"))

		ok, err := e.deleter.DeleteItem(ctx, version.ID)
		if err != nil || !ok {
			metrics.RecordDelete(false)
			hint := "check the media server logs and file permissions"
			if services.Retryable(err) {
				hint = "media server unavailable; execute the entry again later"
			}
			attrs := []logging.Attr{logging.String(logging.FieldErrorHint, hint)}
			if err != nil {
				attrs = append(attrs, logging.Error(err))
			}
			logging.ErrorWithContext(vlog, "delete version failed", "cleanup_delete_failed", attrs...)
			continue
		}
		metrics.RecordDelete(true)
		deleted++

		if _, err := e.store.RemoveVersion(ctx, version.ID); err != nil {
			logging.WarnWithContext(vlog, "purge deleted version from cache failed", "cleanup_purge_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cache keeps a stale version until the next reconcile"))
		}
	}
	return deleted
}

func (e *Executor) refreshKept(ctx context.Context, logger *slog.Logger, winner media.Winner) {
	refresher, ok := e.deleter.(Refresher)
	if !ok {
		return
	}
	for _, id := range winner.IDs() {
		if err := refresher.RefreshItem(ctx, id); err != nil {
			logger.Debug("refresh kept version failed", logging.String(logging.FieldItemID, id), logging.Error(err))
		}
	}
}

func (e *Executor) titleFor(ctx context.Context, logger *slog.Logger, key media.TitleKey) string {
	title, ok, err := e.store.TitleFor(ctx, key)
	if err != nil {
		logger.Debug("title lookup failed", logging.String(logging.FieldTMDBID, key.TMDBID), logging.Error(err))
	}
	if !ok || title == "" {
		return unknownTitle
	}
	return title
}
