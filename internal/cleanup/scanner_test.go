package cleanup_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"reelkeep/internal/cleanup"
	"reelkeep/internal/logging"
	"reelkeep/internal/media"
)

type fakeScanStore struct {
	titles   []media.StoredTitle
	replaced [][]media.CleanupEntry
}

func (f *fakeScanStore) MultiVersionTitles(context.Context) ([]media.StoredTitle, error) {
	return slices.Clone(f.titles), nil
}

func (f *fakeScanStore) ReplacePending(_ context.Context, entries []media.CleanupEntry) error {
	f.replaced = append(f.replaced, entries)
	return nil
}

type fakeScope map[string]struct{}

func (f fakeScope) LibraryItemIDs(context.Context, []string) (map[string]struct{}, error) {
	return f, nil
}

type progress struct {
	percents []int
	messages []string
}

func (p *progress) Report(percent int, message string) {
	p.percents = append(p.percents, percent)
	p.messages = append(p.messages, message)
}

func movie(id, title string, versions ...media.RawVersion) media.StoredTitle {
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.Identity())
	}
	return media.StoredTitle{
		Key:      media.TitleKey{TMDBID: id, ItemType: media.ItemMovie},
		Title:    title,
		ItemIDs:  ids,
		Versions: versions,
	}
}

func version(id string, size int64, resolution string) media.RawVersion {
	return media.RawVersion{"emby_item_id": id, "size_bytes": size, "resolution_display": resolution}
}

func scanOptions() cleanup.ScanOptions {
	return cleanup.ScanOptions{
		Rules: cleanup.RuleSet{{ID: cleanup.RuleFilesize, Enabled: true, Direction: cleanup.Desc}},
	}
}

func TestScanFlagsTitlesWithRedundantVersions(t *testing.T) {
	st := &fakeScanStore{titles: []media.StoredTitle{
		movie("1", "Alpha", version("10", 100, "1080p"), version("11", 200, "1080p")),
		movie("2", "Beta", version("20", 100, "1080p"), version("20", 150, "1080p")),
		movie("3", "", version("30", 5, "720p"), version("31", 6, "720p"), version("32", 7, "720p")),
	}}
	rep := &progress{}
	scanner := cleanup.NewScanner(st, nil, rep, logging.NewNop())

	flagged, err := scanner.Scan(context.Background(), scanOptions())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if flagged != 2 {
		t.Fatalf("expected 2 flagged titles, got %d", flagged)
	}
	if len(st.replaced) != 1 || len(st.replaced[0]) != 2 {
		t.Fatalf("unexpected persisted entries %#v", st.replaced)
	}
	alpha := st.replaced[0][0]
	if alpha.Key.TMDBID != "1" || alpha.Winner.Encode() != "11" || alpha.Status != media.CleanupPending {
		t.Fatalf("unexpected alpha entry %#v", alpha)
	}
	if len(alpha.Versions) != 2 || alpha.Versions[0].Resolution != "1080p" {
		t.Fatalf("unexpected alpha versions %#v", alpha.Versions)
	}
	if got := st.replaced[0][1].Winner.Encode(); got != "32" {
		t.Fatalf("expected largest version kept, got %s", got)
	}

	if rep.percents[0] != 0 || rep.percents[len(rep.percents)-1] != 100 {
		t.Fatalf("progress should run 0..100, got %v", rep.percents)
	}
	if !slices.IsSorted(rep.percents) {
		t.Fatalf("progress went backwards: %v", rep.percents)
	}
	if !slices.ContainsFunc(rep.messages, func(m string) bool { return m == "(3/3) analysing Unknown Title" }) {
		t.Fatalf("missing placeholder title in progress: %v", rep.messages)
	}
}

func TestScanPerResolutionSkipsDistinctBuckets(t *testing.T) {
	st := &fakeScanStore{titles: []media.StoredTitle{
		movie("1", "Alpha", version("10", 100, "4K"), version("11", 200, "1080p")),
		movie("2", "Beta", version("20", 100, "2160p"), version("21", 200, "4K"), version("22", 50, "720p")),
	}}
	opts := scanOptions()
	opts.PerResolution = true

	flagged, err := cleanup.NewScanner(st, nil, nil, logging.NewNop()).Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected only the shared-bucket title, got %d", flagged)
	}
	entry := st.replaced[0][0]
	if entry.Key.TMDBID != "2" || !slices.Equal(entry.Winner.IDs(), []string{"21", "22"}) {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if entry.Winner.Encode() != `["21","22"]` {
		t.Fatalf("bucketed winners should encode as a list, got %s", entry.Winner.Encode())
	}
}

func TestScanRespectsLibraryScope(t *testing.T) {
	st := &fakeScanStore{titles: []media.StoredTitle{
		movie("1", "Alpha", version("10", 100, "1080p"), version("11", 200, "1080p")),
		movie("2", "Beta", version("20", 100, "1080p"), version("21", 200, "1080p")),
	}}
	opts := scanOptions()
	opts.LibraryIDs = []string{"lib-movies"}

	flagged, err := cleanup.NewScanner(st, fakeScope{"21": {}}, nil, logging.NewNop()).Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if flagged != 1 || st.replaced[0][0].Key.TMDBID != "2" {
		t.Fatalf("expected only Beta in scope, got %d %#v", flagged, st.replaced)
	}
}

func TestScanEmptyScopeLeavesPendingUntouched(t *testing.T) {
	st := &fakeScanStore{titles: []media.StoredTitle{
		movie("1", "Alpha", version("10", 100, "1080p"), version("11", 200, "1080p")),
	}}
	rep := &progress{}
	opts := scanOptions()
	opts.LibraryIDs = []string{"lib-empty"}

	flagged, err := cleanup.NewScanner(st, fakeScope{}, rep, logging.NewNop()).Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if flagged != 0 || len(st.replaced) != 0 {
		t.Fatalf("empty scope must not touch pending entries, got %d %#v", flagged, st.replaced)
	}
	if rep.percents[len(rep.percents)-1] != 100 {
		t.Fatalf("expected completion report, got %v", rep.percents)
	}
}

func TestScanScopeRequiresMediaServer(t *testing.T) {
	opts := scanOptions()
	opts.LibraryIDs = []string{"lib"}
	if _, err := cleanup.NewScanner(&fakeScanStore{}, nil, nil, logging.NewNop()).Scan(context.Background(), opts); err == nil {
		t.Fatal("expected error without a library scope resolver")
	}
}

func TestScanWithoutTitlesClearsPending(t *testing.T) {
	st := &fakeScanStore{}
	flagged, err := cleanup.NewScanner(st, nil, nil, logging.NewNop()).Scan(context.Background(), scanOptions())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if flagged != 0 || len(st.replaced) != 1 || len(st.replaced[0]) != 0 {
		t.Fatalf("expected pending to be cleared, got %d %#v", flagged, st.replaced)
	}
}

func TestScanCancelledDoesNotPersist(t *testing.T) {
	st := &fakeScanStore{titles: []media.StoredTitle{
		movie("1", "Alpha", version("10", 100, "1080p"), version("11", 200, "1080p")),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cleanup.NewScanner(st, nil, nil, logging.NewNop()).Scan(ctx, scanOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(st.replaced) != 0 {
		t.Fatalf("cancelled scan must not replace pending entries, got %#v", st.replaced)
	}
}
