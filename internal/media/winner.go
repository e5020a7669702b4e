package media

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Winner records which versions of a title survive cleanup. A winner is
// either a single version ID or, when one version is kept per resolution
// bucket, a set of IDs.
type Winner struct {
	single   string
	bucketed []string
}

// SingleWinner keeps exactly one version.
func SingleWinner(id string) Winner {
	return Winner{single: strings.TrimSpace(id)}
}

// BucketedWinner keeps one version per resolution bucket. IDs are sorted and
// deduplicated so the encoded form is stable.
func BucketedWinner(ids []string) Winner {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	slices.Sort(cleaned)
	return Winner{bucketed: slices.Compact(cleaned)}
}

// IsBucketed reports whether the winner holds a per-resolution set.
func (w Winner) IsBucketed() bool {
	return w.bucketed != nil
}

// IsZero reports whether no version was selected.
func (w Winner) IsZero() bool {
	return w.single == "" && len(w.bucketed) == 0
}

// IDs returns every winning version ID.
func (w Winner) IDs() []string {
	if w.bucketed != nil {
		return slices.Clone(w.bucketed)
	}
	if w.single == "" {
		return nil
	}
	return []string{w.single}
}

// Keeps reports whether the version with the given ID survives.
func (w Winner) Keeps(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if w.bucketed != nil {
		return slices.Contains(w.bucketed, id)
	}
	return w.single == id
}

// Encode renders the storage form: the bare ID, or a JSON array of IDs.
func (w Winner) Encode() string {
	if w.bucketed == nil {
		return w.single
	}
	data, err := json.Marshal(w.bucketed)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (w Winner) String() string {
	return w.Encode()
}

// DecodeWinner parses the storage form produced by Encode. A value that looks
// like a JSON array but fails to parse is an error; any other text is a
// single ID.
func DecodeWinner(raw string) (Winner, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return SingleWinner(trimmed), nil
	}
	var values []any
	if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
		return Winner{}, fmt.Errorf("decode winner list: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case string:
			ids = append(ids, v)
		case float64:
			ids = append(ids, fmt.Sprintf("%.0f", v))
		}
	}
	return BucketedWinner(ids), nil
}

// MarshalJSON emits the winner as a string or array so API consumers see the
// same shape that is stored.
func (w Winner) MarshalJSON() ([]byte, error) {
	if w.bucketed != nil {
		return json.Marshal(w.bucketed)
	}
	return json.Marshal(w.single)
}
