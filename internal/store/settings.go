package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetSetting returns the raw JSON stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value_json FROM app_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// SaveSetting stores value as JSON under key, replacing any previous value.
func (s *Store) SaveSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	_, err = s.execWithRetry(ctx, `
		INSERT INTO app_settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
		key, string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Stats summarises the database for status output.
type Stats struct {
	Titles    int
	InLibrary int
	Pending   int
	Ignored   int
	Processed int
}

// Stats counts metadata rows and cleanup entries by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(in_library), 0) FROM media_metadata WHERE item_type IN ('Movie', 'Series')",
	).Scan(&st.Titles, &st.InLibrary); err != nil {
		return Stats{}, fmt.Errorf("count titles: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM cleanup_index GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("count cleanup entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case "pending":
			st.Pending = count
		case "ignored":
			st.Ignored = count
		case "processed":
			st.Processed = count
		}
	}
	return st, rows.Err()
}
