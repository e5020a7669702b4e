package cleanup

import (
	"testing"

	"reelkeep/internal/media"
)

func TestNormalizeDefaultsForMissingAndMalformedValues(t *testing.T) {
	for name, raw := range map[string]media.RawVersion{
		"nil":       nil,
		"empty":     {},
		"malformed": {"emby_item_id": "x", "bit_depth": "abc", "frame_rate": []any{1}, "size_bytes": map[string]any{}},
	} {
		v := Normalize(raw, DefaultEffectPriority)
		if v.Quality != "unknown" || v.Resolution != "unknown" || v.Codec != "unknown" {
			t.Fatalf("%s: unexpected categorical defaults %#v", name, v)
		}
		if v.Effect != "sdr" || v.BitDepth != 8 || v.FrameRate != 0 || v.SizeBytes != 0 {
			t.Fatalf("%s: unexpected scalar defaults %#v", name, v)
		}
	}
}

func TestNormalizeCoercesLooseTypes(t *testing.T) {
	v := Normalize(media.RawVersion{
		"emby_item_id":          float64(1234),
		"bit_depth":             "10",
		"frame_rate":            "23.976",
		"size_bytes":            float64(8 << 30),
		"video_bitrate_mbps":    42,
		"runtime_minutes":       "136",
		"date_added_to_library": " 2024-01-01T00:00:00Z ",
	}, DefaultEffectPriority)
	if v.ID != "1234" || v.NumericID != 1234 {
		t.Fatalf("unexpected identity %q/%d", v.ID, v.NumericID)
	}
	if v.BitDepth != 10 || v.FrameRate != 23.976 || v.SizeBytes != 8<<30 {
		t.Fatalf("unexpected scalars %#v", v)
	}
	if v.BitrateMbps != 42 || v.RuntimeMinutes != 136 || v.DateAdded != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected scalars %#v", v)
	}
	if got := Normalize(media.RawVersion{"emby_item_id": "abc"}, nil).NumericID; got != 0 {
		t.Fatalf("non-numeric id should parse as 0, got %d", got)
	}
}

func TestNormalizeResolutionFoldsAliases(t *testing.T) {
	cases := map[string]string{
		"2160p": "4K", "4k": "4K", "UHD": "4K", "4K": "4K",
		"1080i": "1080p", "FHD": "1080p",
		"720": "720p",
		"576p": "480p", "SD": "480p",
		"": "unknown", " 8K ": "8K",
	}
	for in, want := range cases {
		if got := NormalizeResolution(in); got != want {
			t.Fatalf("NormalizeResolution(%q) = %q, want %q", in, got, want)
		}
		if again := NormalizeResolution(NormalizeResolution(in)); again != NormalizeResolution(in) {
			t.Fatalf("NormalizeResolution not idempotent for %q", in)
		}
	}
}

func TestNormalizeQualityAndCodec(t *testing.T) {
	quality := map[string]string{
		"BluRay": "blu-ray", "Blu-Ray": "blu-ray", "bdrip": "blu-ray",
		"WEBDL": "web-dl", "WEBRip": "web-dl", "Remux": "remux", "": "unknown",
	}
	for in, want := range quality {
		if got := NormalizeQuality(in); got != want {
			t.Fatalf("NormalizeQuality(%q) = %q, want %q", in, got, want)
		}
	}
	codec := map[string]string{
		"x265": "HEVC", "H265": "HEVC", "hevc": "HEVC",
		"X264": "H.264", "avc": "H.264", "av1": "AV1", "": "unknown",
	}
	for in, want := range codec {
		if got := NormalizeCodec(in); got != want {
			t.Fatalf("NormalizeCodec(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeEffectPicksBestTier(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "sdr"},
		{"plain hdr", "HDR10", "hdr"},
		{"hdr10 plus", "HDR10+", "hdr10+"},
		{"dolby vision text", "Dolby Vision", "dovi_other"},
		{"exact profile", "dovi_p8", "dovi_p8"},
		{"list from json", []any{"HDR10", "Dolby Vision"}, "dovi_other"},
		{"string list", []string{"hdr", "dovi_p5"}, "dovi_p5"},
		{"unknown tag", "SDR", "sdr"},
		{"not a tag", 42, "sdr"},
	}
	for _, tc := range cases {
		if got := NormalizeEffect(tc.value, DefaultEffectPriority); got != tc.want {
			t.Fatalf("%s: NormalizeEffect = %q, want %q", tc.name, got, tc.want)
		}
	}
	custom := []string{"hdr", "dovi_other"}
	if got := NormalizeEffect([]any{"Dolby Vision", "HDR"}, custom); got != "hdr" {
		t.Fatalf("custom priority should prefer hdr, got %q", got)
	}
	profileLast := []string{"dovi_other", "hdr", "dovi_p8"}
	for _, value := range []any{"dovi_p8", "DoVi_P8", []any{"dovi_p8", "HDR10"}} {
		if got := NormalizeEffect(value, profileLast); got != "dovi_p8" {
			t.Fatalf("exact profile %v should keep its tier, got %q", value, got)
		}
	}
}
