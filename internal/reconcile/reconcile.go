package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelkeep/internal/emby"
	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/metrics"
	"reelkeep/internal/services"
	"reelkeep/internal/store"
	"reelkeep/internal/tmdb"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 5
)

var scanTypes = []string{"Movie", "Series", "Season", "Episode"}

// Reporter receives task progress.
type Reporter interface {
	Report(percent int, message string)
}

// Server lists library content on the media server.
type Server interface {
	LibraryItems(ctx context.Context, libraryIDs []string, types []string, fields []string) ([]emby.Item, error)
}

// Store is the metadata cache the reconciler diffs against and writes to.
type Store interface {
	InLibraryItemIDs(ctx context.Context) (map[string]struct{}, error)
	ParentSeriesForItems(ctx context.Context, itemIDs []string) ([]string, error)
	InLibraryTopLevelKeys(ctx context.Context) ([]media.TitleKey, error)
	MarkTopLevelOffline(ctx context.Context, keys []media.TitleKey) (int, error)
	WriteBatch(ctx context.Context, rows []store.MetadataRow, processedSeries []string) (store.BatchResult, error)
}

// Options controls one reconcile run.
type Options struct {
	ForceFullRefresh bool
	BatchSize        int
	// LibraryIDs names the libraries to reconcile. At least one is required:
	// offline detection is only meaningful against a fixed scope.
	LibraryIDs []string
}

// Result summarises a reconcile run.
type Result struct {
	Updated int
	Offline int
	Queued  int
	Failed  int
	// Skipped counts titles left untouched after a provider failure.
	Skipped int
}

// Reconciler syncs the metadata cache with the media server library.
type Reconciler struct {
	server      Server
	provider    tmdb.Provider
	store       Store
	reporter    Reporter
	logger      *slog.Logger
	concurrency int
}

// New wires a reconciler. concurrency bounds provider fetches per batch.
func New(server Server, provider tmdb.Provider, st Store, reporter Reporter, logger *slog.Logger, concurrency int) *Reconciler {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Reconciler{
		server:      server,
		provider:    provider,
		store:       st,
		reporter:    reporter,
		logger:      logging.NewComponentLogger(logger, "reconciler"),
		concurrency: concurrency,
	}
}

type nopReporter struct{}

func (nopReporter) Report(int, string) {}

// Run scans the library, marks vanished titles offline and refreshes the
// metadata of new or changed titles. Batches committed before a cancellation
// or failure stay committed.
func (r *Reconciler) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if r.server == nil {
		return result, services.Wrap(services.ErrConfiguration, "reconcile", "run", "media server not configured", nil)
	}
	if r.provider == nil {
		return result, services.Wrap(services.ErrConfiguration, "reconcile", "run", "metadata provider not configured", nil)
	}
	if len(opts.LibraryIDs) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "reconcile", "run", "no libraries configured; set emby.libraries", nil)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	full := opts.ForceFullRefresh
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()
	mode := "incremental"
	if full {
		mode = "full"
	}
	logger.Info("reconcile started", logging.String("mode", mode), logging.Int("batch_size", batchSize))
	r.reporter.Report(0, fmt.Sprintf("building baseline (%s)", mode))

	var known map[string]struct{}
	if !full {
		ids, err := r.store.InLibraryItemIDs(ctx)
		if err != nil {
			return result, fmt.Errorf("load known items: %w", err)
		}
		known = ids
		if known == nil {
			known = make(map[string]struct{})
		}
		logger.Info("baseline loaded", logging.Int("known_items", len(known)))
	}

	r.reporter.Report(10, "scanning media server")
	items, err := r.server.LibraryItems(ctx, opts.LibraryIDs, scanTypes, emby.ReconcileFields)
	if err != nil {
		return result, fmt.Errorf("scan library: %w", err)
	}
	snap := buildSnapshot(items, known)

	if !full {
		if vanished := snap.vanished(known); len(vanished) > 0 {
			parents, err := r.store.ParentSeriesForItems(ctx, vanished)
			if err != nil {
				return result, fmt.Errorf("resolve removed children: %w", err)
			}
			for _, id := range parents {
				snap.dirty[id] = struct{}{}
			}
			logger.Info("removed items detected",
				logging.Int("vanished", len(vanished)),
				logging.Int("affected_series", len(parents)))
		}
	}
	logger.Info("library scanned",
		logging.Int("items", len(items)),
		logging.Int("titles", len(snap.order)),
		logging.Int("dirty_series", len(snap.dirty)))

	stored, err := r.store.InLibraryTopLevelKeys(ctx)
	if err != nil {
		return result, fmt.Errorf("load stored titles: %w", err)
	}
	if removed := snap.removedTopLevel(stored); len(removed) > 0 {
		n, err := r.store.MarkTopLevelOffline(ctx, removed)
		if err != nil {
			return result, fmt.Errorf("mark removed titles offline: %w", err)
		}
		result.Offline += n
		metrics.RecordRows(0, 0, n)
		logger.Info("removed titles marked offline",
			logging.Int("titles", len(removed)),
			logging.Int("rows", n),
			logging.String(logging.FieldEventType, "reconcile_offline"))
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	queue := snap.queue(stored, full)
	total := len(queue)
	result.Queued = total
	r.reporter.Report(20, fmt.Sprintf("syncing %d titles", total))
	logger.Info("processing queue built", logging.Int("titles", total))

	for start := 0; start < total; start += batchSize {
		if err := ctx.Err(); err != nil {
			logging.WarnWithContext(logger, "reconcile stopped before completion", "reconcile_cancelled",
				logging.Int("synced", start),
				logging.Int("remaining", total-start),
				logging.String(logging.FieldImpact, "remaining titles sync on the next run"))
			return result, err
		}
		end := min(start+batchSize, total)
		batch := queue[start:end]
		if err := r.syncBatch(ctx, logger, snap, batch, &result); err != nil {
			return result, err
		}
		r.reporter.Report(20+80*end/total, fmt.Sprintf("synced %d/%d titles", end, total))
	}

	summary := fmt.Sprintf("reconcile complete: updated %d, offline %d", result.Updated, result.Offline)
	logger.Info("reconcile complete",
		logging.Int("updated", result.Updated),
		logging.Int("offline", result.Offline),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "reconcile_complete"))
	r.reporter.Report(100, summary)
	return result, nil
}

func (r *Reconciler) syncBatch(ctx context.Context, logger *slog.Logger, snap *snapshot, batch []media.TitleKey, result *Result) error {
	info := r.fetch(ctx, logger, snap, batch)

	var (
		rows   []store.MetadataRow
		series []string
	)
	for _, key := range batch {
		if info[key].err != nil {
			result.Skipped++
			continue
		}
		rows = append(rows, buildRows(key, snap.topLevel[key], info[key], snap)...)
		if key.ItemType == media.ItemSeries {
			series = append(series, key.TMDBID)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	res, err := r.store.WriteBatch(ctx, rows, series)
	if err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	for _, rowErr := range res.RowErrors {
		logging.ErrorWithContext(logger, "metadata row write failed", "reconcile_row_failed",
			logging.String(logging.FieldTMDBID, rowErr.Key.TMDBID),
			logging.String(logging.FieldItemType, string(rowErr.Key.ItemType)),
			logging.Error(rowErr.Err))
	}
	metrics.RecordRows(res.Written, len(res.RowErrors), res.Offline)
	result.Updated += res.Written
	result.Offline += res.Offline
	result.Failed += len(res.RowErrors)
	return nil
}

// fetch loads provider detail for every title in the batch with bounded
// parallelism. Failed lookups are logged and mark the title as skipped.
func (r *Reconciler) fetch(ctx context.Context, logger *slog.Logger, snap *snapshot, batch []media.TitleKey) map[media.TitleKey]enrichment {
	var (
		mu  sync.Mutex
		out = make(map[media.TitleKey]enrichment, len(batch))
	)
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, key := range batch {
		g.Go(func() error {
			info := r.fetchOne(ctx, logger, snap, key)
			mu.Lock()
			out[key] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Reconciler) fetchOne(ctx context.Context, logger *slog.Logger, snap *snapshot, key media.TitleKey) enrichment {
	var (
		details *tmdb.Details
		err     error
	)
	switch key.ItemType {
	case media.ItemMovie:
		details, err = r.provider.MovieDetails(ctx, key.TMDBID)
	case media.ItemSeries:
		details, err = r.provider.TVDetails(ctx, key.TMDBID)
	}
	if err != nil {
		return lookupFailed(logger, key, err)
	}
	info := enrichment{details: details}
	if key.ItemType != media.ItemSeries || details == nil {
		return info
	}

	seasons, episodes := snap.children(snap.topLevel[key])
	for _, number := range seasonsWithEpisodes(details, seasons, episodes) {
		listing, err := r.provider.SeasonDetails(ctx, key.TMDBID, number)
		if err != nil {
			return lookupFailed(logger, key, fmt.Errorf("season %d: %w", number, err))
		}
		if listing == nil {
			continue
		}
		if info.seasons == nil {
			info.seasons = make(map[int]*tmdb.SeasonDetails)
		}
		info.seasons[number] = listing
	}
	return info
}

// lookupFailed logs a provider failure. The title is left untouched until a
// later run.
func lookupFailed(logger *slog.Logger, key media.TitleKey, err error) enrichment {
	logging.WarnWithContext(logger, "provider lookup failed", "tmdb_lookup_failed",
		logging.String(logging.FieldTMDBID, key.TMDBID),
		logging.String(logging.FieldItemType, string(key.ItemType)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "title skipped until the next reconcile"))
	return enrichment{err: err}
}
