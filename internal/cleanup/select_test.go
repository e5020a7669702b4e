package cleanup

import (
	"slices"
	"testing"

	"reelkeep/internal/media"
)

const gib = int64(1) << 30

func raw(id, resolution string, size int64, added string) media.RawVersion {
	return media.RawVersion{
		"emby_item_id":          id,
		"resolution_display":    resolution,
		"size_bytes":            size,
		"date_added_to_library": added,
	}
}

func onlyRule(rule Rule) RuleSet {
	rule.Enabled = true
	return RuleSet{rule}
}

func TestCompareIsAntisymmetricAndDeterministic(t *testing.T) {
	versions := []Version{
		Normalize(media.RawVersion{"emby_item_id": "1", "resolution_display": "2160p", "codec_display": "x265", "video_bitrate_mbps": 40.0, "size_bytes": 50 * gib, "effect_display": "HDR10"}, DefaultEffectPriority),
		Normalize(media.RawVersion{"emby_item_id": "2", "resolution_display": "4K", "codec_display": "HEVC", "video_bitrate_mbps": 40.5, "size_bytes": 50 * gib, "effect_display": "Dolby Vision"}, DefaultEffectPriority),
		Normalize(media.RawVersion{"emby_item_id": "3", "resolution_display": "1080p", "codec_display": "h264", "runtime_minutes": 120, "date_added_to_library": "2022-01-01"}, DefaultEffectPriority),
		Normalize(media.RawVersion{"emby_item_id": "4", "resolution_display": "1080p", "codec_display": "AVC", "runtime_minutes": 121.5, "date_added_to_library": "2021-01-01"}, DefaultEffectPriority),
		Normalize(media.RawVersion{"emby_item_id": "5"}, DefaultEffectPriority),
	}
	ruleSets := []RuleSet{
		DefaultRules(),
		onlyRule(Rule{ID: RuleDateAdded, Direction: Desc}),
		onlyRule(Rule{ID: RuleBitrate, Direction: Asc}),
		{},
	}
	swap := map[Verdict]Verdict{PreferA: PreferB, PreferB: PreferA, Tie: Tie}
	for ri, rules := range ruleSets {
		for _, a := range versions {
			for _, b := range versions {
				ab := Compare(a, b, rules)
				if again := Compare(a, b, rules); again != ab {
					t.Fatalf("rules %d: compare(%s,%s) not deterministic", ri, a.ID, b.ID)
				}
				if ba := Compare(b, a, rules); ba != swap[ab] {
					t.Fatalf("rules %d: compare(%s,%s)=%v but compare(%s,%s)=%v", ri, a.ID, b.ID, ab, b.ID, a.ID, ba)
				}
			}
		}
	}
}

func TestCompareHonoursTolerances(t *testing.T) {
	bitrate := onlyRule(Rule{ID: RuleBitrate, Direction: Desc})
	a := Version{ID: "a", BitrateMbps: 10}
	if got := Compare(a, Version{ID: "b", BitrateMbps: 10.9}, bitrate); got != Tie {
		t.Fatalf("bitrate within tolerance should tie, got %v", got)
	}
	if got := Compare(a, Version{ID: "b", BitrateMbps: 12}, bitrate); got != PreferB {
		t.Fatalf("higher bitrate should win, got %v", got)
	}
	runtime := onlyRule(Rule{ID: RuleRuntime, Direction: Desc})
	if got := Compare(Version{RuntimeMinutes: 120}, Version{RuntimeMinutes: 122}, runtime); got != Tie {
		t.Fatalf("runtime within two minutes should tie, got %v", got)
	}
	depth := onlyRule(Rule{ID: RuleBitDepth, Direction: Desc})
	if got := Compare(Version{BitDepth: 10}, Version{BitDepth: 8}, depth); got != PreferA {
		t.Fatalf("bit depth is exact, got %v", got)
	}
	disabled := RuleSet{{ID: RuleBitDepth, Enabled: false, Direction: Desc}}
	if got := Compare(Version{BitDepth: 10}, Version{BitDepth: 8}, disabled); got != Tie {
		t.Fatalf("disabled rules are skipped, got %v", got)
	}
}

func TestResolutionAliasesRankIdentically(t *testing.T) {
	rules := onlyRule(Rule{ID: RuleResolution, Priority: []string{"2160p", "1080p"}})
	uhd := Normalize(raw("1", "2160p", 0, ""), nil)
	fourK := Normalize(raw("2", "4K", 0, ""), nil)
	hd := Normalize(raw("3", "1080p", 0, ""), nil)
	if uhd.Resolution != fourK.Resolution {
		t.Fatalf("2160p and 4K should normalize alike: %q vs %q", uhd.Resolution, fourK.Resolution)
	}
	if got := Compare(uhd, fourK, rules); got != Tie {
		t.Fatalf("expected tie between aliases, got %v", got)
	}
	if Compare(uhd, hd, rules) != PreferA || Compare(fourK, hd, rules) != PreferA {
		t.Fatal("both aliases should outrank 1080p")
	}
}

func TestCodecAliasRanksAsCanonical(t *testing.T) {
	rules := onlyRule(Rule{ID: RuleCodec, Priority: []string{"HEVC", "H.264"}})
	x265 := Normalize(media.RawVersion{"emby_item_id": "1", "codec_display": "X265"}, nil)
	h264 := Normalize(media.RawVersion{"emby_item_id": "2", "codec_display": "H.264"}, nil)
	if got := Compare(x265, h264, rules); got != PreferA {
		t.Fatalf("X265 should rank as HEVC, got %v", got)
	}
}

func TestCategoricalMissingValueRanksLast(t *testing.T) {
	rules := onlyRule(Rule{ID: RuleQuality, Priority: DefaultQualityPriority})
	known := Version{Quality: NormalizeQuality("HDTV")}
	unknown := Version{Quality: NormalizeQuality("")}
	if got := Compare(unknown, known, rules); got != PreferB {
		t.Fatalf("unlisted quality should lose, got %v", got)
	}
}

func TestSelectBestScenarios(t *testing.T) {
	a := raw("1", "1080p", 8*gib, "2023-01-01T00:00:00Z")
	b := raw("2", "1080p", 4*gib, "2024-01-01T00:00:00Z")
	cases := []struct {
		name  string
		rules RuleSet
		want  string
	}{
		{"filesize desc keeps the larger file", onlyRule(Rule{ID: RuleFilesize, Direction: Desc}), "1"},
		{"date added desc keeps the newer file", onlyRule(Rule{ID: RuleDateAdded, Direction: Desc}), "2"},
		{"date added asc keeps the older file", onlyRule(Rule{ID: RuleDateAdded, Direction: Asc}), "1"},
	}
	for _, tc := range cases {
		for _, order := range [][]media.RawVersion{{a, b}, {b, a}} {
			sel := SelectBest(order, tc.rules, false)
			if ids := sel.Winner.IDs(); len(ids) != 1 || ids[0] != tc.want {
				t.Fatalf("%s: winner %v, want %s", tc.name, ids, tc.want)
			}
		}
	}
}

func TestSelectBestDateFallsBackToNumericID(t *testing.T) {
	rules := onlyRule(Rule{ID: RuleDateAdded, Direction: Desc})
	sel := SelectBest([]media.RawVersion{raw("10", "", 0, ""), raw("9", "", 0, "2024-01-01")}, rules, false)
	if !sel.Winner.Keeps("10") {
		t.Fatalf("expected higher numeric id to win without both dates, got %v", sel.Winner.IDs())
	}
}

func TestSelectBestSingleAndEmpty(t *testing.T) {
	sel := SelectBest([]media.RawVersion{raw("7", "720p", 1, "")}, DefaultRules(), false)
	if !sel.Found() || !slices.Equal(sel.Winner.IDs(), []string{"7"}) {
		t.Fatalf("single version should win alone, got %v", sel.Winner.IDs())
	}
	empty := SelectBest(nil, DefaultRules(), false)
	if empty.Found() {
		t.Fatalf("empty input must not produce a winner, got %v", empty.Winner.IDs())
	}
	noID := SelectBest([]media.RawVersion{{"path": "/x.mkv"}}, DefaultRules(), false)
	if noID.Found() {
		t.Fatal("versions without identity cannot win")
	}
}

func TestSelectBestIsOrderIndependent(t *testing.T) {
	versions := []media.RawVersion{
		{"emby_item_id": "1", "video_bitrate_mbps": 10.0},
		{"emby_item_id": "2", "video_bitrate_mbps": 10.8},
		{"emby_item_id": "3", "video_bitrate_mbps": 11.6},
	}
	rules := onlyRule(Rule{ID: RuleBitrate, Direction: Desc})
	want := SelectBest(versions, rules, false).Winner.Encode()
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		order := []media.RawVersion{versions[p[0]], versions[p[1]], versions[p[2]]}
		if got := SelectBest(order, rules, false).Winner.Encode(); got != want {
			t.Fatalf("order %v picked %s, want %s", p, got, want)
		}
	}
}

func TestSelectBestPerResolution(t *testing.T) {
	rules := onlyRule(Rule{ID: RuleFilesize, Direction: Desc})

	distinct := []media.RawVersion{raw("1", "4K", 1, ""), raw("2", "1080p", 1, ""), raw("3", "720p", 1, "")}
	sel := SelectBest(distinct, rules, true)
	if !sel.NoAction || len(sel.Winner.IDs()) != len(distinct) {
		t.Fatalf("distinct buckets should signal no action, got %#v", sel)
	}

	shared := []media.RawVersion{raw("1", "2160p", 5*gib, ""), raw("2", "4K", 9*gib, ""), raw("3", "1080p", 2*gib, "")}
	sel = SelectBest(shared, rules, true)
	if sel.NoAction {
		t.Fatal("shared bucket needs cleanup")
	}
	if !sel.Winner.IsBucketed() || !slices.Equal(sel.Winner.IDs(), []string{"2", "3"}) {
		t.Fatalf("unexpected bucket winners %v", sel.Winner.IDs())
	}
	if sel.Winner.Keeps("1") {
		t.Fatal("smaller 4K version should be deleted")
	}
}
