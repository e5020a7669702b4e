package emby

import (
	"math"
	"path/filepath"
	"strings"

	"reelkeep/internal/media"
)

// AssetDetails derives the stored per-version attributes from one item. The
// item's first media source is used when present, otherwise the item's own
// streams.
func AssetDetails(item Item) media.RawVersion {
	path := item.Path
	size := item.Size
	container := item.Container
	streams := item.MediaStreams
	ticks := item.RunTimeTicks
	var sourceBitrate int64
	if len(item.MediaSources) > 0 {
		src := item.MediaSources[0]
		if src.Path != "" {
			path = src.Path
		}
		if src.Size > 0 {
			size = src.Size
		}
		if src.Container != "" {
			container = src.Container
		}
		if len(src.MediaStreams) > 0 {
			streams = src.MediaStreams
		}
		if src.RunTimeTicks > 0 && ticks == 0 {
			ticks = src.RunTimeTicks
		}
		sourceBitrate = src.Bitrate
	}

	video := firstVideo(streams)
	bitrate := video.BitRate
	if bitrate <= 0 {
		bitrate = sourceBitrate
	}
	frameRate := video.RealFrameRate
	if frameRate <= 0 {
		frameRate = video.AverageFrameRate
	}
	bitDepth := video.BitDepth
	if bitDepth <= 0 {
		bitDepth = 8
	}

	return media.RawVersion{
		"emby_item_id":          item.ID,
		"path":                  path,
		"container":             strings.ToLower(container),
		"quality_display":       QualityFromPath(path),
		"resolution_display":    ResolutionFromSize(video.Width, video.Height),
		"effect_display":        EffectTags(video),
		"codec_display":         CodecDisplay(video.Codec),
		"size_bytes":            size,
		"video_bitrate_mbps":    math.Round(float64(bitrate)/100_000) / 10,
		"bit_depth":             bitDepth,
		"frame_rate":            math.Round(frameRate*1000) / 1000,
		"runtime_minutes":       ticksToMinutes(ticks),
		"date_added_to_library": item.DateCreated,
	}
}

func firstVideo(streams []MediaStream) MediaStream {
	for _, s := range streams {
		if strings.EqualFold(s.Type, "Video") {
			return s
		}
	}
	return MediaStream{}
}

// ResolutionFromSize buckets a frame size. Cropped widescreen encodes keep
// their width, so either dimension can place the stream.
func ResolutionFromSize(width, height int) string {
	switch {
	case width >= 3800 || height >= 2100:
		return "4K"
	case width >= 1900 || height >= 1000:
		return "1080p"
	case width >= 1200 || height >= 700:
		return "720p"
	case width > 0 || height > 0:
		return "480p"
	default:
		return "unknown"
	}
}

// QualityFromPath classifies a release by the tags in its filename.
func QualityFromPath(path string) string {
	name := strings.ToLower(filepath.Base(path))
	replacer := strings.NewReplacer(".", " ", "_", " ", "[", " ", "]", " ", "(", " ", ")", " ")
	tokens := " " + replacer.Replace(name) + " "
	switch {
	case strings.Contains(tokens, "remux"):
		return "Remux"
	case strings.Contains(tokens, "bluray"), strings.Contains(tokens, "blu-ray"), strings.Contains(tokens, " bdrip "), strings.Contains(tokens, " brrip "):
		return "BluRay"
	case strings.Contains(tokens, "web-dl"), strings.Contains(tokens, "webdl"), strings.Contains(tokens, "webrip"), strings.Contains(tokens, " web "):
		return "WEB-DL"
	case strings.Contains(tokens, "hdtv"):
		return "HDTV"
	default:
		return "unknown"
	}
}

// CodecDisplay maps server codec names onto display names.
func CodecDisplay(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "hevc", "h265", "x265":
		return "HEVC"
	case "h264", "avc", "x264":
		return "H.264"
	case "av1":
		return "AV1"
	case "vp9":
		return "VP9"
	case "":
		return "unknown"
	default:
		return strings.ToUpper(codec)
	}
}

// EffectTags reports the dynamic-range tags of a video stream, most specific
// first.
func EffectTags(video MediaStream) []string {
	var tags []string
	switch sub := strings.ToLower(video.ExtendedVideoSubType); {
	case strings.HasPrefix(sub, "doviprofile8"):
		tags = append(tags, "dovi_p8")
	case strings.HasPrefix(sub, "doviprofile7"):
		tags = append(tags, "dovi_p7")
	case strings.HasPrefix(sub, "doviprofile5"):
		tags = append(tags, "dovi_p5")
	}
	switch strings.ToUpper(strings.TrimSpace(video.VideoRangeType)) {
	case "DOVIWITHHDR10", "DOVIWITHHLG", "DOVIWITHSDR":
		tags = append(tags, "dovi_p8")
	case "DOVI":
		tags = append(tags, "dovi_p5")
	case "HDR10PLUS", "HDR10+":
		tags = append(tags, "hdr10+")
	case "HDR10", "HLG", "HDR":
		tags = append(tags, "hdr")
	}
	if len(tags) == 0 && strings.EqualFold(video.VideoRange, "HDR") {
		tags = append(tags, "hdr")
	}
	if len(tags) == 0 {
		tags = append(tags, "sdr")
	}
	return tags
}
