package cleanup

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// RuleID names one comparable attribute. The vocabulary is closed.
type RuleID string

const (
	RuleRuntime    RuleID = "runtime"
	RuleEffect     RuleID = "effect"
	RuleResolution RuleID = "resolution"
	RuleBitDepth   RuleID = "bit_depth"
	RuleBitrate    RuleID = "bitrate"
	RuleCodec      RuleID = "codec"
	RuleQuality    RuleID = "quality"
	RuleFrameRate  RuleID = "frame_rate"
	RuleFilesize   RuleID = "filesize"
	RuleDateAdded  RuleID = "date_added"
)

// Known reports whether id belongs to the rule vocabulary.
func (id RuleID) Known() bool {
	_, ok := comparators[id]
	return ok
}

// Categorical reports whether the rule ranks values by a priority list.
func (id RuleID) Categorical() bool {
	switch id {
	case RuleResolution, RuleQuality, RuleEffect, RuleCodec:
		return true
	default:
		return false
	}
}

// Direction orders scalar rules. Desc keeps the larger value.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Rule is one enabled-or-disabled ranking criterion.
type Rule struct {
	ID        RuleID
	Enabled   bool
	Direction Direction
	Priority  []string
}

type ruleJSON struct {
	ID       RuleID          `json:"id"`
	Enabled  *bool           `json:"enabled,omitempty"`
	Priority json.RawMessage `json:"priority,omitempty"`
}

// MarshalJSON writes the stored settings shape, where "priority" is either a
// direction string or a list.
func (r Rule) MarshalJSON() ([]byte, error) {
	enabled := r.Enabled
	out := ruleJSON{ID: r.ID, Enabled: &enabled}
	var (
		priority []byte
		err      error
	)
	if r.ID.Categorical() {
		list := r.Priority
		if list == nil {
			list = []string{}
		}
		priority, err = json.Marshal(list)
	} else {
		dir := r.Direction
		if dir == "" {
			dir = Desc
		}
		priority, err = json.Marshal(dir)
	}
	if err != nil {
		return nil, err
	}
	out.Priority = priority
	return json.Marshal(out)
}

// UnmarshalJSON accepts any priority shape. Unknown priority values leave the
// rule with its zero preference, which behaves as desc / empty list. A rule
// without an "enabled" flag is disabled.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	r.ID = RuleID(strings.TrimSpace(string(in.ID)))
	r.Enabled = in.Enabled != nil && *in.Enabled
	r.Direction = ""
	r.Priority = nil
	if len(in.Priority) == 0 {
		return nil
	}
	var dir string
	if err := json.Unmarshal(in.Priority, &dir); err == nil {
		switch Direction(strings.ToLower(strings.TrimSpace(dir))) {
		case Asc:
			r.Direction = Asc
		case Desc:
			r.Direction = Desc
		}
		return nil
	}
	var list []any
	if err := json.Unmarshal(in.Priority, &list); err == nil {
		r.Priority = make([]string, 0, len(list))
		for _, value := range list {
			r.Priority = append(r.Priority, fmt.Sprint(value))
		}
	}
	return nil
}

// RuleSet is an ordered list of rules evaluated lexicographically.
type RuleSet []Rule

// Find returns the rule with the given ID.
func (rs RuleSet) Find(id RuleID) (Rule, bool) {
	for _, rule := range rs {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// EffectPriority returns the configured effect ordering, falling back to the
// default tiers.
func (rs RuleSet) EffectPriority() []string {
	if rule, ok := rs.Find(RuleEffect); ok && len(rule.Priority) > 0 {
		out := make([]string, len(rule.Priority))
		for i, p := range rule.Priority {
			out[i] = canonicalEffectToken(p)
		}
		return out
	}
	return slices.Clone(DefaultEffectPriority)
}

// Enabled returns the rules that take part in comparison, in order.
func (rs RuleSet) Enabled() RuleSet {
	out := make(RuleSet, 0, len(rs))
	for _, rule := range rs {
		if rule.Enabled && rule.ID.Known() {
			out = append(out, rule)
		}
	}
	return out
}

// Validate rejects unknown or repeated rule IDs.
func (rs RuleSet) Validate() error {
	seen := make(map[RuleID]struct{}, len(rs))
	for i, rule := range rs {
		if !rule.ID.Known() {
			return fmt.Errorf("rule %d: unknown id %q", i, rule.ID)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("rule %d: duplicate id %q", i, rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return nil
}

// Default priority lists.
var (
	DefaultEffectPriority     = []string{"dovi_p8", "dovi_p7", "dovi_p5", "dovi_other", "hdr10+", "hdr", "sdr"}
	DefaultResolutionPriority = []string{"4K", "1080p", "720p", "480p"}
	DefaultCodecPriority      = []string{"AV1", "HEVC", "H.264", "VP9"}
	DefaultQualityPriority    = []string{"Remux", "BluRay", "WEB-DL", "HDTV"}
)

// DefaultRules returns the out-of-the-box rule order.
func DefaultRules() RuleSet {
	return RuleSet{
		{ID: RuleRuntime, Enabled: true, Direction: Desc},
		{ID: RuleEffect, Enabled: true, Priority: slices.Clone(DefaultEffectPriority)},
		{ID: RuleResolution, Enabled: true, Priority: slices.Clone(DefaultResolutionPriority)},
		{ID: RuleBitDepth, Enabled: true, Direction: Desc},
		{ID: RuleCodec, Enabled: true, Priority: slices.Clone(DefaultCodecPriority)},
		{ID: RuleBitrate, Enabled: true, Direction: Desc},
		{ID: RuleQuality, Enabled: true, Priority: slices.Clone(DefaultQualityPriority)},
		{ID: RuleFrameRate, Enabled: false, Direction: Desc},
		{ID: RuleFilesize, Enabled: true, Direction: Desc},
		{ID: RuleDateAdded, Enabled: true, Direction: Asc},
	}
}
