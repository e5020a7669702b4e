package store

import (
	"encoding/json"
	"strconv"
	"strings"
)

// idChunkSize bounds the number of identifiers bound into one query.
const idChunkSize = 500

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = idChunkSize
	}
	var out [][]string
	for len(values) > 0 {
		n := min(size, len(values))
		out = append(out, values[:n])
		values = values[n:]
	}
	return out
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// jsonText encodes value for a *_json column. A nil slice stores as [].
func jsonText(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

// decodeStringList reads a JSON array of IDs, tolerating numeric elements
// and malformed text.
func decodeStringList(raw string) []string {
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch typed := v.(type) {
		case string:
			if typed = strings.TrimSpace(typed); typed != "" {
				out = append(out, typed)
			}
		case float64:
			out = append(out, strconv.FormatFloat(typed, 'f', -1, 64))
		}
	}
	return out
}
