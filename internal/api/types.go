package api

import (
	"slices"
	"time"

	"reelkeep/internal/emby"
	"reelkeep/internal/media"
	"reelkeep/internal/preflight"
	"reelkeep/internal/settings"
	"reelkeep/internal/tasks"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CleanupItem describes a cleanup index entry in a transport-friendly format.
type CleanupItem struct {
	ID                 int64                  `json:"id"`
	TMDBID             string                 `json:"tmdb_id"`
	ItemType           string                 `json:"item_type"`
	Title              string                 `json:"title"`
	DisplayTitle       string                 `json:"display_title"`
	SeasonNumber       *int                   `json:"season_number,omitempty"`
	EpisodeNumber      *int                   `json:"episode_number,omitempty"`
	ParentSeriesTMDBID string                 `json:"parent_series_tmdb_id,omitempty"`
	ParentSeriesTitle  string                 `json:"parent_series_title,omitempty"`
	Status             string                 `json:"status"`
	Winner             media.Winner           `json:"best_version_id"`
	Versions           []media.DisplayVersion `json:"versions"`
	Deletes            int                    `json:"deletes"`
}

// CleanupListResponse wraps the cleanup listing.
type CleanupListResponse struct {
	Items []CleanupItem `json:"items"`
}

// IDsRequest carries cleanup entry IDs for execute, ignore and delete.
type IDsRequest struct {
	TaskIDs []int64 `json:"task_ids"`
}

// ReconcileRequest starts a reconcile.
type ReconcileRequest struct {
	ForceFull bool `json:"force_full"`
}

// CountResponse reports how many entries an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// Library is a media server library and whether scans are scoped to it.
type Library struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"collection_type,omitempty"`
	Selected bool   `json:"selected"`
}

// LibrariesResponse wraps the library listing.
type LibrariesResponse struct {
	Libraries []Library `json:"libraries"`
}

// TaskAccepted is returned when a long operation was queued.
type TaskAccepted struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
}

// TaskStatus is the transport form of the runner status.
type TaskStatus struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Percent  int    `json:"percent"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Started  string `json:"started,omitempty"`
	Finished string `json:"finished,omitempty"`
	Running  bool   `json:"running"`
}

// StopResponse reports whether a running task was cancelled.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// SettingsPayload is the cleanup settings document.
type SettingsPayload = settings.Settings

// CheckResult mirrors a readiness check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// LibraryCounts summarises the metadata cache and cleanup index.
type LibraryCounts struct {
	Titles    int `json:"titles"`
	InLibrary int `json:"in_library"`
	Pending   int `json:"pending"`
	Ignored   int `json:"ignored"`
	Processed int `json:"processed"`
}

// StatusResponse aggregates runtime information.
type StatusResponse struct {
	Task     TaskStatus    `json:"task"`
	Counts   LibraryCounts `json:"counts"`
	Checks   []CheckResult `json:"checks,omitempty"`
	Schedule []ScheduleJob `json:"schedule,omitempty"`
}

// ScheduleJob describes a cron entry.
type ScheduleJob struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
	Next string `json:"next,omitempty"`
}

// FromPendingEntry converts a joined cleanup entry.
func FromPendingEntry(entry media.PendingEntry) CleanupItem {
	versions := entry.Versions
	if versions == nil {
		versions = []media.DisplayVersion{}
	}
	deletes := 0
	if !entry.Winner.IsZero() {
		for _, v := range versions {
			if !entry.Winner.Keeps(v.ID) {
				deletes++
			}
		}
	}
	return CleanupItem{
		ID:                 entry.ID,
		TMDBID:             entry.Key.TMDBID,
		ItemType:           string(entry.Key.ItemType),
		Title:              entry.Title,
		DisplayTitle:       entry.DisplayTitle(),
		SeasonNumber:       entry.SeasonNumber,
		EpisodeNumber:      entry.EpisodeNumber,
		ParentSeriesTMDBID: entry.ParentSeriesTMDBID,
		ParentSeriesTitle:  entry.ParentSeriesTitle,
		Status:             string(entry.Status),
		Winner:             entry.Winner,
		Versions:           versions,
		Deletes:            deletes,
	}
}

// FromPendingEntries converts a listing, never returning nil.
func FromPendingEntries(entries []media.PendingEntry) []CleanupItem {
	out := make([]CleanupItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromPendingEntry(entry))
	}
	return out
}

// FromLibraries converts server libraries, marking those in scope.
func FromLibraries(libs []emby.Library, scope []string) []Library {
	out := make([]Library, 0, len(libs))
	for _, lib := range libs {
		out = append(out, Library{
			ID:       lib.ItemID,
			Name:     lib.Name,
			Type:     lib.CollectionType,
			Selected: slices.Contains(scope, lib.ItemID),
		})
	}
	return out
}

// FromTaskStatus converts the runner status.
func FromTaskStatus(st tasks.Status) TaskStatus {
	return TaskStatus{
		ID:       st.ID,
		Name:     st.Name,
		Percent:  st.Percent,
		Message:  st.Message,
		Error:    st.Error,
		Started:  formatTime(st.Started),
		Finished: formatTime(st.Finished),
		Running:  st.Running,
	}
}

// FromCheckResults converts preflight results.
func FromCheckResults(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
