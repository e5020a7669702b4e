package cleanup

import (
	"cmp"
	"slices"

	"reelkeep/internal/media"
)

// Selection is the outcome of choosing the versions to keep for one title.
type Selection struct {
	Winner   media.Winner
	Versions []Version
	// NoAction is set in per-resolution mode when every version already wins
	// its own bucket.
	NoAction bool
}

// Found reports whether at least one winner was selected.
func (s Selection) Found() bool {
	return !s.Winner.IsZero()
}

// SelectBest ranks the given versions and returns the winner, or one winner
// per resolution bucket when perResolution is set.
func SelectBest(versions []media.RawVersion, rules RuleSet, perResolution bool) Selection {
	normalized := make([]Version, 0, len(versions))
	effectPriority := rules.EffectPriority()
	for _, raw := range versions {
		normalized = append(normalized, Normalize(raw, effectPriority))
	}
	return selectNormalized(normalized, rules, perResolution)
}

func selectNormalized(versions []Version, rules RuleSet, perResolution bool) Selection {
	sel := Selection{Versions: versions}
	candidates := make([]Version, 0, len(versions))
	for _, v := range versions {
		if v.ID != "" {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return sel
	}

	if !perResolution {
		sel.Winner = media.SingleWinner(rank(candidates, rules)[0].ID)
		return sel
	}

	buckets := make(map[string][]Version)
	var order []string
	for _, v := range candidates {
		if _, ok := buckets[v.Resolution]; !ok {
			order = append(order, v.Resolution)
		}
		buckets[v.Resolution] = append(buckets[v.Resolution], v)
	}
	winners := make([]string, 0, len(order))
	for _, res := range order {
		winners = append(winners, rank(buckets[res], rules)[0].ID)
	}
	sel.Winner = media.BucketedWinner(winners)
	sel.NoAction = len(sel.Winner.IDs()) == len(candidates)
	return sel
}

// rank orders versions best-first. Tolerance bands make the comparator
// non-transitive, so versions are first put in identity order and then
// stable-sorted; equal inputs always produce the same ranking.
func rank(versions []Version, rules RuleSet) []Version {
	out := slices.Clone(versions)
	slices.SortFunc(out, func(a, b Version) int {
		if c := cmp.Compare(a.NumericID, b.NumericID); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	slices.SortStableFunc(out, func(a, b Version) int {
		switch Compare(a, b, rules) {
		case PreferA:
			return -1
		case PreferB:
			return 1
		default:
			return 0
		}
	})
	return out
}
