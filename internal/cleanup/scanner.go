package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/metrics"
)

// Reporter receives task progress. Percent -1 signals failure.
type Reporter interface {
	Report(percent int, message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(percent int, message string)

// Report calls f.
func (f ReporterFunc) Report(percent int, message string) { f(percent, message) }

// ScanStore is the persistence the scanner reads from and writes to.
type ScanStore interface {
	MultiVersionTitles(ctx context.Context) ([]media.StoredTitle, error)
	ReplacePending(ctx context.Context, entries []media.CleanupEntry) error
}

// LibraryScope resolves library IDs to the media server items inside them.
type LibraryScope interface {
	LibraryItemIDs(ctx context.Context, libraryIDs []string) (map[string]struct{}, error)
}

// ScanOptions carries the settings for one scan.
type ScanOptions struct {
	Rules         RuleSet
	LibraryIDs    []string
	PerResolution bool
}

// Scanner finds titles with redundant versions.
type Scanner struct {
	store    ScanStore
	scope    LibraryScope
	reporter Reporter
	logger   *slog.Logger
}

// NewScanner wires a scanner. scope may be nil when scans are never scoped.
func NewScanner(store ScanStore, scope LibraryScope, reporter Reporter, logger *slog.Logger) *Scanner {
	if reporter == nil {
		reporter = ReporterFunc(func(int, string) {})
	}
	return &Scanner{
		store:    store,
		scope:    scope,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "cleanup-scanner"),
	}
}

const unknownTitle = "Unknown Title"

// Scan evaluates every multi-version title in scope and replaces the pending
// cleanup entries with the result. It returns the number of titles flagged.
// A cancelled scan leaves the previous pending entries in place.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (int, error) {
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()
	s.reporter.Report(0, "preparing scan")

	var scope map[string]struct{}
	if len(opts.LibraryIDs) > 0 {
		if s.scope == nil {
			return 0, fmt.Errorf("library scope requested but no media server configured")
		}
		ids, err := s.scope.LibraryItemIDs(ctx, opts.LibraryIDs)
		if err != nil {
			return 0, fmt.Errorf("resolve library scope: %w", err)
		}
		if len(ids) == 0 {
			logger.Info("selected libraries are empty; scan skipped",
				logging.Int("libraries", len(opts.LibraryIDs)),
				logging.String(logging.FieldEventType, "cleanup_scan_skipped"))
			s.reporter.Report(100, "scan skipped: selected libraries are empty")
			return 0, nil
		}
		scope = ids
		logger.Info("scan scoped to libraries", logging.Int("libraries", len(opts.LibraryIDs)), logging.Int("items", len(ids)))
	}

	titles, err := s.store.MultiVersionTitles(ctx)
	if err != nil {
		return 0, fmt.Errorf("load multi-version titles: %w", err)
	}
	if scope != nil {
		titles = inScope(titles, scope)
	}

	total := len(titles)
	if total == 0 {
		if err := s.store.ReplacePending(ctx, nil); err != nil {
			return 0, fmt.Errorf("clear pending entries: %w", err)
		}
		metrics.TitlesFlagged.Set(0)
		s.reporter.Report(100, "scan complete: no multi-version titles found")
		return 0, nil
	}
	s.reporter.Report(10, fmt.Sprintf("found %d multi-version titles", total))

	entries := make([]media.CleanupEntry, 0, total)
	for i, title := range titles {
		if err := ctx.Err(); err != nil {
			logger.Warn("scan cancelled", logging.Int("evaluated", i), logging.Int("total", total))
			return 0, err
		}
		label := title.Title
		if label == "" {
			label = unknownTitle
		}
		s.reporter.Report(10+80*i/total, fmt.Sprintf("(%d/%d) analysing %s", i+1, total, label))

		entry, ok := evaluate(title, opts)
		if !ok {
			logger.Debug("title needs no cleanup",
				logging.String(logging.FieldTMDBID, title.Key.TMDBID),
				logging.String(logging.FieldItemType, string(title.Key.ItemType)))
			continue
		}
		logger.Debug("title flagged",
			logging.String(logging.FieldTMDBID, title.Key.TMDBID),
			logging.String(logging.FieldItemType, string(title.Key.ItemType)),
			logging.String("keep", entry.Winner.Encode()),
			logging.Int("versions", len(entry.Versions)))
		entries = append(entries, entry)
	}

	s.reporter.Report(90, "writing results")
	if err := s.store.ReplacePending(ctx, entries); err != nil {
		return 0, fmt.Errorf("persist cleanup entries: %w", err)
	}
	metrics.TitlesFlagged.Set(float64(len(entries)))

	logger.Info("cleanup scan complete",
		logging.Int("titles", total),
		logging.Int("flagged", len(entries)),
		logging.Bool("per_resolution", opts.PerResolution),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "cleanup_scan_complete"))
	s.reporter.Report(100, fmt.Sprintf("scan complete: %d titles need cleanup", len(entries)))
	return len(entries), nil
}

// evaluate decides one title. It reports false when the title has fewer than
// two distinct versions or every version already survives.
func evaluate(title media.StoredTitle, opts ScanOptions) (media.CleanupEntry, bool) {
	versions := media.DedupVersions(title.Versions)
	if len(versions) < 2 {
		return media.CleanupEntry{}, false
	}
	sel := SelectBest(versions, opts.Rules, opts.PerResolution)
	if !sel.Found() || sel.NoAction {
		return media.CleanupEntry{}, false
	}
	display := make([]media.DisplayVersion, 0, len(sel.Versions))
	for _, v := range sel.Versions {
		display = append(display, v.Display())
	}
	return media.CleanupEntry{
		Key:      title.Key,
		Versions: display,
		Winner:   sel.Winner,
		Status:   media.CleanupPending,
	}, true
}

func inScope(titles []media.StoredTitle, scope map[string]struct{}) []media.StoredTitle {
	out := titles[:0]
	for _, title := range titles {
		for _, id := range title.ItemIDs {
			if _, ok := scope[id]; ok {
				out = append(out, title)
				break
			}
		}
	}
	return out
}
