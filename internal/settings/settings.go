package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"reelkeep/internal/cleanup"
	"reelkeep/internal/services"
)

// Keys under which the settings are stored.
const (
	KeyRules                = "media_cleanup_rules"
	KeyLibraryIDs           = "media_cleanup_library_ids"
	KeyKeepOnePerResolution = "media_cleanup_keep_one_per_res"
)

// Store is the persistence the settings need.
type Store interface {
	GetSetting(ctx context.Context, key string) (json.RawMessage, bool, error)
	SaveSetting(ctx context.Context, key string, value any) error
}

// Settings is the complete cleanup configuration.
type Settings struct {
	Rules                cleanup.RuleSet `json:"rules"`
	LibraryIDs           []string        `json:"library_ids"`
	KeepOnePerResolution bool            `json:"keep_one_per_res"`
}

// Default returns the settings used when nothing has been saved.
func Default() Settings {
	return Settings{Rules: cleanup.DefaultRules(), LibraryIDs: []string{}}
}

// Load reads the stored settings and fills in defaults.
func Load(ctx context.Context, st Store) (Settings, error) {
	out := Default()

	raw, ok, err := st.GetSetting(ctx, KeyRules)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		out.Rules = mergeRules(raw)
	}

	raw, ok, err = st.GetSetting(ctx, KeyLibraryIDs)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		out.LibraryIDs = decodeLibraryIDs(raw)
	}

	raw, ok, err = st.GetSetting(ctx, KeyKeepOnePerResolution)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		var flag any
		if json.Unmarshal(raw, &flag) == nil {
			out.KeepOnePerResolution = cast.ToBool(flag)
		}
	}
	return out, nil
}

// Save validates and stores the settings.
func Save(ctx context.Context, st Store, s Settings) error {
	if len(s.Rules) == 0 {
		return services.Wrap(services.ErrValidation, "settings", "save", "rules must be a non-empty list", nil)
	}
	if err := s.Rules.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "settings", "save", "invalid rules", err)
	}
	libraryIDs := cleanIDs(s.LibraryIDs)
	if err := st.SaveSetting(ctx, KeyRules, s.Rules); err != nil {
		return err
	}
	if err := st.SaveSetting(ctx, KeyLibraryIDs, libraryIDs); err != nil {
		return err
	}
	return st.SaveSetting(ctx, KeyKeepOnePerResolution, s.KeepOnePerResolution)
}

type savedRule struct {
	ID       string          `json:"id"`
	Enabled  *bool           `json:"enabled"`
	Priority json.RawMessage `json:"priority"`
}

// mergeRules overlays the saved rule list on the defaults. Unreadable input
// yields the defaults.
func mergeRules(raw json.RawMessage) cleanup.RuleSet {
	defaults := cleanup.DefaultRules()
	var saved []savedRule
	if err := json.Unmarshal(raw, &saved); err != nil || len(saved) == 0 {
		return defaults
	}

	out := make(cleanup.RuleSet, 0, len(defaults))
	seen := make(map[cleanup.RuleID]struct{}, len(saved))
	for _, s := range saved {
		id := cleanup.RuleID(strings.TrimSpace(s.ID))
		if !id.Known() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rule, _ := defaults.Find(id)
		if s.Enabled != nil {
			rule.Enabled = *s.Enabled
		}
		applyPriority(&rule, s.Priority)
		out = append(out, migrateRule(rule))
	}
	for _, rule := range defaults {
		if _, ok := seen[rule.ID]; !ok {
			out = append(out, rule)
		}
	}
	return out
}

func applyPriority(rule *cleanup.Rule, raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return
	}
	switch v := value.(type) {
	case string:
		switch cleanup.Direction(strings.ToLower(strings.TrimSpace(v))) {
		case cleanup.Asc:
			rule.Direction = cleanup.Asc
		case cleanup.Desc:
			rule.Direction = cleanup.Desc
		}
	case []any:
		list, err := cast.ToStringSliceE(v)
		if err == nil {
			rule.Priority = list
		}
	}
}

func migrateRule(rule cleanup.Rule) cleanup.Rule {
	if rule.Priority == nil {
		return rule
	}
	switch rule.ID {
	case cleanup.RuleEffect:
		rule.Priority = migrateEffect(rule.Priority)
	case cleanup.RuleResolution:
		rule.Priority = migrateResolution(rule.Priority)
	case cleanup.RuleCodec:
		rule.Priority = migrateCodec(rule.Priority)
	}
	return rule
}

func migrateEffect(priority []string) []string {
	out := make([]string, 0, len(priority)+len(cleanup.DefaultEffectPriority))
	for _, p := range priority {
		token := strings.ReplaceAll(strings.ToLower(p), " ", "_")
		switch token {
		case "dovi", "dovi_other", "dovi(other)", "dovi_(other)":
			token = "dovi_other"
		}
		if !slices.Contains(out, token) {
			out = append(out, token)
		}
	}
	for _, d := range cleanup.DefaultEffectPriority {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func migrateResolution(priority []string) []string {
	out := make([]string, 0, len(priority)+1)
	for _, p := range priority {
		switch strings.ToLower(p) {
		case "2160p", "4k":
			p = "4K"
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	if !slices.Contains(out, "480p") {
		out = append(out, "480p")
	}
	return out
}

func migrateCodec(priority []string) []string {
	out := make([]string, 0, len(priority))
	for _, p := range priority {
		switch strings.ToUpper(p) {
		case "H265", "X265":
			p = "HEVC"
		case "H264", "X264", "AVC":
			p = "H.264"
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func decodeLibraryIDs(raw json.RawMessage) []string {
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return cleanIDs(out)
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Summary renders a one-line description for logs.
func (s Settings) Summary() string {
	enabled := make([]string, 0, len(s.Rules))
	for _, rule := range s.Rules.Enabled() {
		enabled = append(enabled, string(rule.ID))
	}
	scope := "all libraries"
	if len(s.LibraryIDs) > 0 {
		scope = fmt.Sprintf("%d libraries", len(s.LibraryIDs))
	}
	return fmt.Sprintf("rules=%s scope=%s per_resolution=%t", strings.Join(enabled, ","), scope, s.KeepOnePerResolution)
}
