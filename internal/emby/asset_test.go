package emby

import (
	"slices"
	"testing"
)

func TestResolutionFromSize(t *testing.T) {
	cases := []struct {
		width, height int
		want          string
	}{
		{3840, 2160, "4K"},
		{3840, 1600, "4K"},
		{1920, 800, "1080p"},
		{1280, 720, "720p"},
		{720, 480, "480p"},
		{0, 0, "unknown"},
	}
	for _, tc := range cases {
		if got := ResolutionFromSize(tc.width, tc.height); got != tc.want {
			t.Fatalf("ResolutionFromSize(%d,%d) = %q, want %q", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestQualityFromPath(t *testing.T) {
	cases := map[string]string{
		"/m/Film (1999)/Film.1999.2160p.UHD.BluRay.REMUX.mkv": "Remux",
		"/m/Film.1999.1080p.BluRay.x264.mkv":                  "BluRay",
		"/m/Film.1999.1080p.WEB-DL.mkv":                       "WEB-DL",
		"/m/Show.S01E01.HDTV.mkv":                             "HDTV",
		"/m/Film.mkv":                                         "unknown",
	}
	for path, want := range cases {
		if got := QualityFromPath(path); got != want {
			t.Fatalf("QualityFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestEffectTags(t *testing.T) {
	cases := []struct {
		name   string
		stream MediaStream
		want   []string
	}{
		{"profile 8", MediaStream{ExtendedVideoSubType: "DoviProfile81", VideoRange: "HDR"}, []string{"dovi_p8"}},
		{"hdr10 plus", MediaStream{VideoRangeType: "HDR10Plus"}, []string{"hdr10+"}},
		{"range fallback", MediaStream{VideoRange: "HDR"}, []string{"hdr"}},
		{"sdr", MediaStream{VideoRange: "SDR"}, []string{"sdr"}},
	}
	for _, tc := range cases {
		if got := EffectTags(tc.stream); !slices.Equal(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAssetDetailsPrefersMediaSource(t *testing.T) {
	item := Item{
		ID:           "77",
		Path:         "/item/path.mkv",
		DateCreated:  "2024-01-02T03:04:05Z",
		RunTimeTicks: 136 * 600_000_000,
		MediaSources: []MediaSource{{
			Path:      "/m/Film.1999.2160p.BluRay.REMUX.mkv",
			Container: "MKV",
			Size:      60_000_000_000,
			MediaStreams: []MediaStream{
				{Type: "Audio", Codec: "truehd"},
				{Type: "Video", Codec: "hevc", Width: 3840, Height: 2160, BitDepth: 10, BitRate: 55_340_000, RealFrameRate: 23.976},
			},
		}},
	}
	raw := AssetDetails(item)
	if raw.Identity() != "77" {
		t.Fatalf("unexpected identity %q", raw.Identity())
	}
	if raw["path"] != "/m/Film.1999.2160p.BluRay.REMUX.mkv" || raw["container"] != "mkv" {
		t.Fatalf("unexpected source fields %v", raw)
	}
	if raw["resolution_display"] != "4K" || raw["codec_display"] != "HEVC" || raw["quality_display"] != "Remux" {
		t.Fatalf("unexpected display fields %v", raw)
	}
	if raw["video_bitrate_mbps"] != 55.3 {
		t.Fatalf("unexpected bitrate %v", raw["video_bitrate_mbps"])
	}
	if raw["bit_depth"] != 10 || raw["runtime_minutes"] != 136 {
		t.Fatalf("unexpected depth/runtime %v", raw)
	}
	if raw["size_bytes"] != int64(60_000_000_000) {
		t.Fatalf("unexpected size %v", raw["size_bytes"])
	}
}

func TestItemTMDBIDIgnoresKeyCase(t *testing.T) {
	item := Item{ProviderIDs: map[string]string{"TMDB": " 603 ", "Imdb": "tt0133093"}}
	if got := item.TMDBID(); got != "603" {
		t.Fatalf("unexpected tmdb id %q", got)
	}
	if got := (Item{RunTimeTicks: 89 * 600_000_000}).RuntimeMinutes(); got != 89 {
		t.Fatalf("unexpected runtime %d", got)
	}
}
