package cleanup

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"reelkeep/internal/media"
)

// Version is the comparable view of one stored version.
type Version struct {
	ID             string
	Path           string
	Quality        string
	Resolution     string
	Effect         string
	Codec          string
	BitDepth       int
	FrameRate      float64
	RuntimeMinutes float64
	SizeBytes      int64
	BitrateMbps    float64
	DateAdded      string
	NumericID      int64
}

const (
	unknownValue   = "unknown"
	defaultEffect  = "sdr"
	defaultBitDept = 8
)

// Normalize extracts comparable attributes from a raw version. It never
// fails: absent or malformed values fall back to defaults.
func Normalize(raw media.RawVersion, effectPriority []string) Version {
	if raw == nil {
		return Version{
			Quality:    unknownValue,
			Resolution: unknownValue,
			Effect:     defaultEffect,
			Codec:      unknownValue,
			BitDepth:   defaultBitDept,
		}
	}
	id := raw.Identity()
	v := Version{
		ID:             id,
		Path:           stringField(raw, "path"),
		Quality:        NormalizeQuality(stringField(raw, "quality_display")),
		Resolution:     NormalizeResolution(stringField(raw, "resolution_display")),
		Effect:         NormalizeEffect(raw["effect_display"], effectPriority),
		Codec:          NormalizeCodec(stringField(raw, "codec_display")),
		BitDepth:       int(intField(raw, "bit_depth")),
		FrameRate:      floatField(raw, "frame_rate"),
		RuntimeMinutes: floatField(raw, "runtime_minutes"),
		SizeBytes:      intField(raw, "size_bytes"),
		BitrateMbps:    floatField(raw, "video_bitrate_mbps"),
		DateAdded:      stringField(raw, "date_added_to_library"),
		NumericID:      numericID(id),
	}
	if v.BitDepth <= 0 {
		v.BitDepth = defaultBitDept
	}
	return v
}

// Display builds the persisted per-version summary.
func (v Version) Display() media.DisplayVersion {
	return media.DisplayVersion{
		ID:          v.ID,
		Path:        v.Path,
		Filesize:    v.SizeBytes,
		Quality:     v.Quality,
		Resolution:  v.Resolution,
		Effect:      v.Effect,
		BitrateMbps: v.BitrateMbps,
		BitDepth:    v.BitDepth,
		FrameRate:   v.FrameRate,
		Runtime:     v.RuntimeMinutes,
		Codec:       v.Codec,
	}
}

// NormalizeResolution maps resolution labels onto 4K/1080p/720p/480p.
// Unrecognised labels pass through trimmed.
func NormalizeResolution(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", unknownValue:
		return unknownValue
	case "4k", "2160p", "2160", "uhd", "4k uhd":
		return "4K"
	case "1080p", "1080i", "1080", "fhd":
		return "1080p"
	case "720p", "720", "hd":
		return "720p"
	case "480p", "480", "576p", "576", "sd":
		return "480p"
	default:
		return trimmed
	}
}

// NormalizeQuality lower-cases quality tiers and folds spelling variants.
func NormalizeQuality(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	switch lower {
	case "":
		return unknownValue
	case "bdrip", "brrip", "bd":
		return "blu-ray"
	case "webrip", "web":
		return "web-dl"
	}
	lower = strings.ReplaceAll(lower, "bluray", "blu-ray")
	lower = strings.ReplaceAll(lower, "webdl", "web-dl")
	return lower
}

// NormalizeCodec folds encoder aliases into codec names.
func NormalizeCodec(value string) string {
	upper := strings.ToUpper(strings.TrimSpace(value))
	switch upper {
	case "", "UNKNOWN":
		return unknownValue
	case "H265", "X265", "H.265", "HEVC":
		return "HEVC"
	case "H264", "X264", "H.264", "AVC":
		return "H.264"
	default:
		return upper
	}
}

// NormalizeEffect reduces one tag or a list of tags to the best matching
// dynamic-range tier under the given priority.
func NormalizeEffect(value any, priority []string) string {
	var tags []string
	switch v := value.(type) {
	case nil:
		return defaultEffect
	case string:
		tags = []string{v}
	case []string:
		tags = v
	default:
		list, err := cast.ToSliceE(value)
		if err != nil {
			return defaultEffect
		}
		for _, item := range list {
			tags = append(tags, cast.ToString(item))
		}
	}

	best := ""
	bestRank := 0
	for _, tag := range tags {
		tier := effectTier(tag)
		if tier == "" {
			continue
		}
		if rank := priorityIndex(priority, tier); best == "" || rank < bestRank {
			best, bestRank = tier, rank
		}
	}
	if best == "" {
		return defaultEffect
	}
	return best
}

// effectTier maps one tag to its tier. Exact profile tags keep their own
// tier; "" means the tag carries no effect.
func effectTier(tag string) string {
	lower := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case lower == "":
		return ""
	case lower == "dovi_p8", lower == "dovi_p7", lower == "dovi_p5":
		return lower
	case strings.Contains(lower, "dolby vision"), strings.Contains(lower, "dovi"):
		return "dovi_other"
	case strings.Contains(lower, "hdr10+"):
		return "hdr10+"
	case strings.Contains(lower, "hdr"):
		return "hdr"
	}
	return ""
}

// canonicalEffectToken normalises a configured effect priority entry.
func canonicalEffectToken(value string) string {
	token := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "_")
	switch token {
	case "dovi", "dovi(other)", "dovi_(other)":
		return "dovi_other"
	}
	return token
}

func stringField(raw media.RawVersion, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func floatField(raw media.RawVersion, key string) float64 {
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0
	}
	return f
}

func intField(raw media.RawVersion, key string) int64 {
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		if f, ferr := cast.ToFloat64E(value); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

func numericID(id string) int64 {
	if id == "" {
		return 0
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
