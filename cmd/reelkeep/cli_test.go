package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type cliTestEnv struct {
	configPath string
	baseDir    string

	mu      sync.Mutex
	deleted []string
}

const embyItemsJSON = `{"Items":[
 {"Id":"1","Name":"The Matrix","Type":"Movie","ProviderIds":{"Tmdb":"603"},"RunTimeTicks":81600000000,
  "DateCreated":"2020-01-01T00:00:00Z",
  "MediaSources":[{"Path":"/movies/The Matrix (1999) 1080p BluRay.mkv","Size":10737418240,"Container":"mkv",
   "MediaStreams":[{"Type":"Video","Codec":"h264","Width":1920,"Height":1080,"BitDepth":8,"BitRate":20000000}]}]},
 {"Id":"2","Name":"The Matrix","Type":"Movie","ProviderIds":{"Tmdb":"603"},"RunTimeTicks":81600000000,
  "DateCreated":"2021-01-01T00:00:00Z",
  "MediaSources":[{"Path":"/movies/The Matrix (1999) 2160p Remux.mkv","Size":42949672960,"Container":"mkv",
   "MediaStreams":[{"Type":"Video","Codec":"hevc","Width":3840,"Height":2160,"BitDepth":10,"BitRate":60000000,"VideoRange":"HDR"}]}]}
],"TotalRecordCount":2}`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("EMBY_URL", "")
	t.Setenv("EMBY_API_KEY", "")
	t.Setenv("TMDB_API_KEY", "")

	env := &cliTestEnv{baseDir: base}

	emby := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/Items/"):
			env.mu.Lock()
			env.deleted = append(env.deleted, strings.TrimPrefix(r.URL.Path, "/Items/"))
			env.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/Items":
			_, _ = w.Write([]byte(embyItemsJSON))
		case r.URL.Path == "/Library/VirtualFolders":
			_, _ = w.Write([]byte(`[{"Name":"Movies","ItemId":"lib1","CollectionType":"movies"},{"Name":"Shows","ItemId":"lib9","CollectionType":"tvshows"}]`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(emby.Close)

	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/movie/603" {
			_, _ = w.Write([]byte(`{"id":603,"title":"The Matrix","runtime":136,"overview":"A hacker learns the truth."}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(tmdb.Close)

	env.configPath = filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[emby]
url = %q
api_key = "emby-key"
libraries = ["lib1"]

[tmdb]
api_key = "tmdb-key"
base_url = %q
requests_per_second = 0
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), emby.URL, tmdb.URL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) deletedItems() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.deleted...)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestReconcileScanExecuteFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cleanup", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup list: %v", err)
	}
	requireContains(t, out, "No cleanup entries")

	out, stderr, err := runCLI(t, []string{"reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v (stderr %s)", err, stderr)
	}
	requireContains(t, out, "reconcile complete")
	requireContains(t, stderr, "[100%]")

	out, _, err = runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "1 titles pending cleanup")

	out, _, err = runCLI(t, []string{"cleanup", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup list: %v", err)
	}
	requireContains(t, out, "The Matrix")
	requireContains(t, out, "1 titles")

	out, _, err = runCLI(t, []string{"cleanup", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup show: %v", err)
	}
	requireContains(t, out, "keep")
	requireContains(t, out, "delete")

	out, _, err = runCLI(t, []string{"cleanup", "execute-all"}, env.configPath)
	if err != nil {
		t.Fatalf("execute-all: %v", err)
	}
	requireContains(t, out, "1 entries processed")
	if deleted := env.deletedItems(); len(deleted) != 1 || deleted[0] != "1" {
		t.Fatalf("expected the 1080p version to be deleted, got %v", deleted)
	}

	out, _, err = runCLI(t, []string{"cleanup", "execute-all"}, env.configPath)
	if err != nil {
		t.Fatalf("second execute-all: %v", err)
	}
	requireContains(t, out, "Nothing to do")

	out, _, err = runCLI(t, []string{"cleanup", "list", "--status", "processed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cleanup list processed: %v", err)
	}
	requireContains(t, out, `"status": "processed"`)
}

func TestCleanupIgnoreAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, args := range [][]string{{"reconcile"}, {"scan"}} {
		if _, stderr, err := runCLI(t, args, env.configPath); err != nil {
			t.Fatalf("%v: %v (%s)", args, err, stderr)
		}
	}

	out, _, err := runCLI(t, []string{"cleanup", "ignore", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	requireContains(t, out, "Ignored 1 entries")

	out, _, err = runCLI(t, []string{"cleanup", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No cleanup entries")

	if _, _, err := runCLI(t, []string{"cleanup", "clear"}, env.configPath); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _, err = runCLI(t, []string{"cleanup", "list", "--status", "ignored"}, env.configPath)
	if err != nil {
		t.Fatalf("list ignored: %v", err)
	}
	requireContains(t, out, "The Matrix")

	if _, _, err := runCLI(t, []string{"cleanup", "ignore", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestSettingsShowAndSave(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"settings", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	requireContains(t, out, "filesize")
	requireContains(t, out, "Keep one per resolution: no")

	if _, _, err := runCLI(t, []string{"settings", "save"}, env.configPath); err == nil {
		t.Fatal("expected save without flags to fail")
	}

	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	rules := `[{"id":"filesize","enabled":true,"priority":"asc"},{"id":"date_added","enabled":true,"priority":"desc"}]`
	if err := os.WriteFile(rulesPath, []byte(rules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	out, _, err = runCLI(t, []string{"settings", "save", "--per-resolution", "--libraries", "lib1,lib2", "--rules-file", rulesPath}, env.configPath)
	if err != nil {
		t.Fatalf("settings save: %v", err)
	}
	requireContains(t, out, "Settings saved")
	requireContains(t, out, "Keep one per resolution: yes")
	requireContains(t, out, "Scan scope: lib1, lib2")

	out, _, err = runCLI(t, []string{"settings", "libraries"}, env.configPath)
	if err != nil {
		t.Fatalf("settings libraries: %v", err)
	}
	requireContains(t, out, "Movies")
	requireContains(t, out, "lib9")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Reachable")
	requireContains(t, out, "0 pending")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "4,5", " 6 "})
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}
	if fmt.Sprint(ids) != "[3 4 5 6]" {
		t.Fatalf("unexpected ids %v", ids)
	}
	for _, bad := range [][]string{{"0"}, {"x"}, {","}} {
		if _, err := parseIDs(bad); err == nil {
			t.Fatalf("expected %v to fail", bad)
		}
	}
}
