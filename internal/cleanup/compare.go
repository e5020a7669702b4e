package cleanup

import (
	"math"
	"slices"
)

// Verdict is the outcome of comparing two versions.
type Verdict int

const (
	Tie Verdict = iota
	PreferA
	PreferB
)

func (v Verdict) String() string {
	switch v {
	case PreferA:
		return "prefer_a"
	case PreferB:
		return "prefer_b"
	default:
		return "tie"
	}
}

const missingRank = 999

// Scalar tolerances. Differences at or below these are ties.
const (
	bitrateToleranceMbps = 1.0
	frameRateTolerance   = 2.0
	runtimeToleranceMin  = 2.0
)

type compareFunc func(a, b Version, rule Rule) Verdict

var comparators = map[RuleID]compareFunc{
	RuleRuntime: func(a, b Version, rule Rule) Verdict {
		return compareScalar(a.RuntimeMinutes, b.RuntimeMinutes, runtimeToleranceMin, rule.Direction)
	},
	RuleBitrate: func(a, b Version, rule Rule) Verdict {
		return compareScalar(a.BitrateMbps, b.BitrateMbps, bitrateToleranceMbps, rule.Direction)
	},
	RuleFrameRate: func(a, b Version, rule Rule) Verdict {
		return compareScalar(a.FrameRate, b.FrameRate, frameRateTolerance, rule.Direction)
	},
	RuleBitDepth: func(a, b Version, rule Rule) Verdict {
		return compareScalar(float64(a.BitDepth), float64(b.BitDepth), 0, rule.Direction)
	},
	RuleFilesize: func(a, b Version, rule Rule) Verdict {
		return compareScalar(float64(a.SizeBytes), float64(b.SizeBytes), 0, rule.Direction)
	},
	RuleResolution: func(a, b Version, rule Rule) Verdict {
		return compareCategorical(a.Resolution, b.Resolution, rule.Priority, NormalizeResolution)
	},
	RuleQuality: func(a, b Version, rule Rule) Verdict {
		return compareCategorical(a.Quality, b.Quality, rule.Priority, NormalizeQuality)
	},
	RuleCodec: func(a, b Version, rule Rule) Verdict {
		return compareCategorical(a.Codec, b.Codec, rule.Priority, NormalizeCodec)
	},
	RuleEffect: func(a, b Version, rule Rule) Verdict {
		return compareCategorical(a.Effect, b.Effect, rule.Priority, canonicalEffectToken)
	},
	RuleDateAdded: compareDateAdded,
}

// Compare walks the enabled rules in order and returns the first decisive
// verdict. Versions that tie on every rule are a Tie.
func Compare(a, b Version, rules RuleSet) Verdict {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		cmp, ok := comparators[rule.ID]
		if !ok {
			continue
		}
		if verdict := cmp(a, b, rule); verdict != Tie {
			return verdict
		}
	}
	return Tie
}

func compareScalar(a, b, tolerance float64, dir Direction) Verdict {
	if math.Abs(a-b) <= tolerance {
		return Tie
	}
	if dir == Asc {
		if a < b {
			return PreferA
		}
		return PreferB
	}
	if a > b {
		return PreferA
	}
	return PreferB
}

func compareCategorical(a, b string, priority []string, canon func(string) string) Verdict {
	list := make([]string, len(priority))
	for i, p := range priority {
		list[i] = canon(p)
	}
	ra := priorityIndex(list, canon(a))
	rb := priorityIndex(list, canon(b))
	switch {
	case ra < rb:
		return PreferA
	case rb < ra:
		return PreferB
	default:
		return Tie
	}
}

// compareDateAdded orders by the ISO timestamps when both are present and
// differ, otherwise by numeric item ID under the same direction.
func compareDateAdded(a, b Version, rule Rule) Verdict {
	asc := rule.Direction == Asc
	if a.DateAdded != "" && b.DateAdded != "" && a.DateAdded != b.DateAdded {
		aFirst := a.DateAdded < b.DateAdded
		if aFirst == asc {
			return PreferA
		}
		return PreferB
	}
	if a.NumericID == b.NumericID {
		return Tie
	}
	aFirst := a.NumericID < b.NumericID
	if aFirst == asc {
		return PreferA
	}
	return PreferB
}

func priorityIndex(list []string, value string) int {
	if idx := slices.Index(list, value); idx >= 0 {
		return idx
	}
	return missingRank
}
