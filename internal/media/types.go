package media

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ItemType enumerates the media server item kinds tracked in the metadata cache.
type ItemType string

const (
	ItemMovie   ItemType = "Movie"
	ItemSeries  ItemType = "Series"
	ItemSeason  ItemType = "Season"
	ItemEpisode ItemType = "Episode"
)

// IsTopLevel reports whether the type owns children or stands alone.
func (t ItemType) IsTopLevel() bool {
	return t == ItemMovie || t == ItemSeries
}

// IsChild reports whether the type hangs below a series.
func (t ItemType) IsChild() bool {
	return t == ItemSeason || t == ItemEpisode
}

// TitleKey addresses one title by provider ID and item type.
type TitleKey struct {
	TMDBID   string
	ItemType ItemType
}

func (k TitleKey) String() string {
	return fmt.Sprintf("%s/%s", k.ItemType, k.TMDBID)
}

// RawVersion is one entry of a title's stored asset details. Values are kept
// loosely typed because they come from older writers with inconsistent shapes.
type RawVersion map[string]any

// Identity returns the media server item ID of the version, or "" when absent.
func (v RawVersion) Identity() string {
	if v == nil {
		return ""
	}
	switch id := v["emby_item_id"].(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	case json.Number:
		return id.String()
	case int:
		return fmt.Sprintf("%d", id)
	case int64:
		return fmt.Sprintf("%d", id)
	default:
		return ""
	}
}

// DisplayVersion is the per-version summary persisted with a cleanup entry.
type DisplayVersion struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	Filesize    int64   `json:"filesize"`
	Quality     string  `json:"quality"`
	Resolution  string  `json:"resolution"`
	Effect      string  `json:"effect"`
	BitrateMbps float64 `json:"video_bitrate_mbps"`
	BitDepth    int     `json:"bit_depth"`
	FrameRate   float64 `json:"frame_rate"`
	Runtime     float64 `json:"runtime_minutes"`
	Codec       string  `json:"codec"`
}

// CleanupStatus is the lifecycle state of a cleanup index entry.
type CleanupStatus string

const (
	CleanupPending   CleanupStatus = "pending"
	CleanupIgnored   CleanupStatus = "ignored"
	CleanupProcessed CleanupStatus = "processed"
)

// Valid reports whether the status is one of the known states.
func (s CleanupStatus) Valid() bool {
	switch s {
	case CleanupPending, CleanupIgnored, CleanupProcessed:
		return true
	default:
		return false
	}
}

// CleanupEntry is one title flagged for duplicate removal.
type CleanupEntry struct {
	ID       int64
	Key      TitleKey
	Versions []DisplayVersion
	Winner   Winner
	Status   CleanupStatus
}

// PendingEntry is a cleanup entry joined with descriptive metadata for listing.
type PendingEntry struct {
	CleanupEntry
	Title              string
	SeasonNumber       *int
	EpisodeNumber      *int
	ParentSeriesTMDBID string
	ParentSeriesTitle  string
}

// DisplayTitle renders a human label such as "Show S01E02" or the bare title.
func (p PendingEntry) DisplayTitle() string {
	title := strings.TrimSpace(p.Title)
	if p.Key.ItemType != ItemEpisode {
		if title == "" {
			return p.Key.String()
		}
		return title
	}
	label := strings.TrimSpace(p.ParentSeriesTitle)
	if label == "" {
		label = title
	}
	if p.SeasonNumber != nil && p.EpisodeNumber != nil {
		label = fmt.Sprintf("%s S%02dE%02d", label, *p.SeasonNumber, *p.EpisodeNumber)
	}
	if label == "" {
		return p.Key.String()
	}
	return label
}

// StoredTitle is a cached title together with its decoded asset versions.
type StoredTitle struct {
	Key      TitleKey
	Title    string
	ItemIDs  []string
	Versions []RawVersion
}

// DedupVersions collapses versions sharing an identity, keeping the last one
// seen at the position of the first. Versions without identity are dropped.
func DedupVersions(versions []RawVersion) []RawVersion {
	index := make(map[string]int, len(versions))
	out := make([]RawVersion, 0, len(versions))
	for _, v := range versions {
		id := v.Identity()
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			out[i] = v
			continue
		}
		index[id] = len(out)
		out = append(out, v)
	}
	return out
}
