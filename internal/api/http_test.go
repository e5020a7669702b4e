package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelkeep/internal/emby"
	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/store"
	"reelkeep/internal/tasks"
	"reelkeep/internal/testsupport"
)

type fakeServer struct {
	deleted []string
}

func (f *fakeServer) LibraryItems(context.Context, []string, []string, []string) ([]emby.Item, error) {
	return nil, nil
}

func (f *fakeServer) LibraryItemIDs(context.Context, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (f *fakeServer) Libraries(context.Context) ([]emby.Library, error) {
	return []emby.Library{
		{Name: "Movies", ItemID: "lib1", CollectionType: "movies"},
		{Name: "Shows", ItemID: "lib2", CollectionType: "tvshows"},
	}, nil
}

func (f *fakeServer) DeleteItem(_ context.Context, id string) (bool, error) {
	f.deleted = append(f.deleted, id)
	return true, nil
}

type fixture struct {
	store  *store.Store
	runner *tasks.Runner
	server *fakeServer
	svc    *Service
}

func newFixture(t *testing.T, withServer bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	runner := tasks.NewRunner(filepath.Join(t.TempDir(), "reelkeep.lock"), logging.NewNop())
	f := &fixture{store: st, runner: runner}
	deps := Deps{Store: st, Runner: runner, Logger: logging.NewNop()}
	if withServer {
		f.server = &fakeServer{}
		deps.Server = f.server
	}
	f.svc = NewService(deps)
	return f
}

func (f *fixture) handler(token string) http.Handler {
	return NewHandler(f.svc, HandlerOptions{Token: token, Logger: logging.NewNop()})
}

func (f *fixture) seed(t *testing.T, entries ...media.CleanupEntry) []int64 {
	t.Helper()
	if err := f.store.ReplacePending(context.Background(), entries); err != nil {
		t.Fatalf("ReplacePending: %v", err)
	}
	ids, err := f.store.PendingIDs(context.Background())
	if err != nil {
		t.Fatalf("PendingIDs: %v", err)
	}
	return ids
}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.runner.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func movieEntry(tmdbID string, winner string, versionIDs ...string) media.CleanupEntry {
	versions := make([]media.DisplayVersion, 0, len(versionIDs))
	for _, id := range versionIDs {
		versions = append(versions, media.DisplayVersion{ID: id, Path: "/movies/" + id + ".mkv"})
	}
	return media.CleanupEntry{
		Key:      media.TitleKey{TMDBID: tmdbID, ItemType: media.ItemMovie},
		Versions: versions,
		Winner:   media.SingleWinner(winner),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type listBody struct {
	Items []struct {
		ID       int64  `json:"id"`
		TMDBID   string `json:"tmdb_id"`
		Status   string `json:"status"`
		Deletes  int    `json:"deletes"`
		Versions []any  `json:"versions"`
	} `json:"items"`
}

func TestCleanupListEmpty(t *testing.T) {
	f := newFixture(t, true)
	rec := do(t, f.handler(""), http.MethodGet, "/api/cleanup/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rec.Body.String())
	}
}

func TestCleanupListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, true)
	rec := do(t, f.handler(""), http.MethodGet, "/api/cleanup/tasks?status=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIgnoreMovesEntryOutOfPending(t *testing.T) {
	f := newFixture(t, true)
	ids := f.seed(t, movieEntry("10", "1", "1", "2"), movieEntry("11", "3", "3", "4"))
	h := f.handler("")

	rec := do(t, h, http.MethodPost, "/api/cleanup/ignore", `{"task_ids":[`+itoa(ids[0])+`]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ignore: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[CountResponse](t, rec); got.Count != 1 {
		t.Fatalf("expected count 1, got %d", got.Count)
	}

	pending := decodeBody[listBody](t, do(t, h, http.MethodGet, "/api/cleanup/tasks", ""))
	if len(pending.Items) != 1 || pending.Items[0].TMDBID != "11" {
		t.Fatalf("unexpected pending items %+v", pending.Items)
	}
	if pending.Items[0].Deletes != 1 || len(pending.Items[0].Versions) != 2 {
		t.Fatalf("unexpected entry shape %+v", pending.Items[0])
	}
	ignored := decodeBody[listBody](t, do(t, h, http.MethodGet, "/api/cleanup/tasks?status=ignored", ""))
	if len(ignored.Items) != 1 || ignored.Items[0].TMDBID != "10" {
		t.Fatalf("unexpected ignored items %+v", ignored.Items)
	}
}

func TestDeleteAndClearAll(t *testing.T) {
	f := newFixture(t, true)
	ids := f.seed(t, movieEntry("10", "1", "1", "2"), movieEntry("11", "3", "3", "4"))
	h := f.handler("")

	rec := do(t, h, http.MethodPost, "/api/cleanup/delete", `{"task_ids":[`+itoa(ids[0])+`]}`)
	if rec.Code != http.StatusOK || decodeBody[CountResponse](t, rec).Count != 1 {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/api/cleanup/clear_all", ""); rec.Code != http.StatusOK {
		t.Fatalf("clear_all: %d", rec.Code)
	}
	remaining, err := f.store.PendingIDs(context.Background())
	if err != nil {
		t.Fatalf("PendingIDs: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no pending entries, got %v", remaining)
	}
}

func TestIDRoutesValidateBody(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler("")
	cases := []struct {
		path string
		body string
	}{
		{"/api/cleanup/execute", `{"task_ids":[]}`},
		{"/api/cleanup/execute", `not json`},
		{"/api/cleanup/ignore", `{}`},
		{"/api/cleanup/delete", ``},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %q: expected 400, got %d", tc.path, tc.body, rec.Code)
		}
	}
}

func TestExecuteRunsInBackground(t *testing.T) {
	f := newFixture(t, true)
	ids := f.seed(t, movieEntry("10", "1", "1", "2"))
	h := f.handler("")

	rec := do(t, h, http.MethodPost, "/api/cleanup/execute", `{"task_ids":[`+itoa(ids[0])+`]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decodeBody[TaskAccepted](t, rec)
	if accepted.TaskID == "" || accepted.Name != TaskExecute {
		t.Fatalf("unexpected accepted payload %+v", accepted)
	}
	f.waitIdle(t)

	if len(f.server.deleted) != 1 || f.server.deleted[0] != "2" {
		t.Fatalf("expected version 2 deleted, got %v", f.server.deleted)
	}
	task := decodeBody[TaskStatus](t, do(t, h, http.MethodGet, "/api/task", ""))
	if task.ID != accepted.TaskID || task.Running || task.Percent != 100 {
		t.Fatalf("unexpected task status %+v", task)
	}
	processed := decodeBody[listBody](t, do(t, h, http.MethodGet, "/api/cleanup/tasks?status=processed", ""))
	if len(processed.Items) != 1 {
		t.Fatalf("expected processed entry, got %+v", processed.Items)
	}
}

func TestExecuteWithoutServerIsUnavailable(t *testing.T) {
	f := newFixture(t, false)
	ids := f.seed(t, movieEntry("10", "1", "1", "2"))
	rec := do(t, f.handler(""), http.MethodPost, "/api/cleanup/execute", `{"task_ids":[`+itoa(ids[0])+`]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReconcileWithoutProviderIsUnavailable(t *testing.T) {
	f := newFixture(t, true)
	rec := do(t, f.handler(""), http.MethodPost, "/api/reconcile", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestScanConflictsWithRunningTask(t *testing.T) {
	f := newFixture(t, true)
	release := make(chan struct{})
	if _, err := f.runner.Submit("reconcile", func(context.Context, tasks.Reporter) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h := f.handler("")
	if rec := do(t, h, http.MethodPost, "/api/cleanup/scan", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/task/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop: %d", rec.Code)
	}
	close(release)
	f.waitIdle(t)

	if rec := do(t, h, http.MethodPost, "/api/cleanup/scan", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 after idle, got %d: %s", rec.Code, rec.Body.String())
	}
	f.waitIdle(t)
	if st := f.runner.Status(); st.Name != TaskScan || st.Percent != 100 {
		t.Fatalf("unexpected scan status %+v", st)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler("")

	defaults := decodeBody[map[string]any](t, do(t, h, http.MethodGet, "/api/cleanup/settings", ""))
	if rules, ok := defaults["rules"].([]any); !ok || len(rules) != 10 {
		t.Fatalf("expected 10 default rules, got %v", defaults["rules"])
	}

	body := `{"rules":[{"id":"filesize","enabled":true,"priority":"desc"}],"library_ids":["lib1"],"keep_one_per_res":true}`
	rec := do(t, h, http.MethodPost, "/api/cleanup/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	saved := decodeBody[map[string]any](t, rec)
	if saved["keep_one_per_res"] != true {
		t.Fatalf("flag not saved: %v", saved)
	}
	if ids, ok := saved["library_ids"].([]any); !ok || len(ids) != 1 || ids[0] != "lib1" {
		t.Fatalf("library ids not saved: %v", saved["library_ids"])
	}

	bad := `{"rules":[{"id":"sharpness","enabled":true}]}`
	if rec := do(t, h, http.MethodPost, "/api/cleanup/settings", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown rule, got %d", rec.Code)
	}
}

func TestLibrariesMarksScannedScope(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler("")

	body := `{"rules":[{"id":"filesize","enabled":true,"priority":"desc"}],"library_ids":["lib2"]}`
	if rec := do(t, h, http.MethodPost, "/api/cleanup/settings", body); rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, "/api/cleanup/libraries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("libraries: %d %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[LibrariesResponse](t, rec)
	if len(got.Libraries) != 2 || got.Libraries[0].Selected || !got.Libraries[1].Selected {
		t.Fatalf("unexpected libraries %+v", got.Libraries)
	}

	noServer := newFixture(t, false).handler("")
	if rec := do(t, noServer, http.MethodGet, "/api/cleanup/libraries", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without emby, got %d", rec.Code)
	}
}

func TestStatusReportsCounts(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, movieEntry("10", "1", "1", "2"))
	h := NewHandler(f.svc, HandlerOptions{
		Logger: logging.NewNop(),
		DecorateStatus: func(_ context.Context, st *StatusResponse) {
			st.Schedule = []ScheduleJob{{Name: "scan", Spec: "@daily"}}
		},
	})
	rec := do(t, h, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	status := decodeBody[StatusResponse](t, rec)
	if status.Counts.Pending != 1 {
		t.Fatalf("expected 1 pending, got %+v", status.Counts)
	}
	if len(status.Schedule) != 1 || status.Schedule[0].Spec != "@daily" {
		t.Fatalf("expected decorated schedule, got %+v", status.Schedule)
	}
}

func TestAuthProtectsAPIButNotMetrics(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler("secret")

	if rec := do(t, h, http.MethodGet, "/api/task", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/task", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics without auth, got %d", rec.Code)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	h := newFixture(t, true).handler("")

	req := httptest.NewRequest(http.MethodGet, "/api/task", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}

	rec = do(t, h, http.MethodGet, "/api/task", "")
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	f := newFixture(t, true)
	if rec := do(t, f.handler(""), http.MethodGet, "/api/cleanup/scan", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
