package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"reelkeep/internal/media"
)

// ReplacePending swaps the pending cleanup entries for a fresh scan result
// in one transaction. Ignored and processed entries keep their row, so a
// title resolved once is not flagged again.
func (s *Store) ReplacePending(ctx context.Context, entries []media.CleanupEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cleanup_index WHERE status = ?", string(media.CleanupPending)); err != nil {
			return fmt.Errorf("clear pending entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cleanup_index (tmdb_id, item_type, versions_info_json, best_version_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'pending', ?, ?)
			ON CONFLICT(tmdb_id, item_type) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare cleanup insert: %w", err)
		}
		defer stmt.Close()

		now := s.timestamp()
		for _, entry := range entries {
			versions, err := jsonText(entry.Versions)
			if err != nil {
				return fmt.Errorf("encode versions for %s: %w", entry.Key, err)
			}
			if _, err := stmt.ExecContext(ctx,
				entry.Key.TMDBID, string(entry.Key.ItemType), versions, entry.Winner.Encode(), now, now,
			); err != nil {
				return fmt.Errorf("insert cleanup entry %s: %w", entry.Key, err)
			}
		}
		return nil
	})
}

// ClearPending removes every pending entry.
func (s *Store) ClearPending(ctx context.Context) error {
	return s.ReplacePending(ctx, nil)
}

const cleanupColumns = "id, tmdb_id, item_type, versions_info_json, best_version_id, status"

func scanCleanupEntry(scanner interface{ Scan(dest ...any) error }) (media.CleanupEntry, error) {
	var (
		entry        media.CleanupEntry
		itemType     string
		versionsJSON string
		winnerRaw    string
		status       string
	)
	if err := scanner.Scan(&entry.ID, &entry.Key.TMDBID, &itemType, &versionsJSON, &winnerRaw, &status); err != nil {
		return media.CleanupEntry{}, err
	}
	entry.Key.ItemType = media.ItemType(itemType)
	entry.Status = media.CleanupStatus(status)
	if err := json.Unmarshal([]byte(versionsJSON), &entry.Versions); err != nil {
		entry.Versions = nil
	}
	// An unreadable winner decodes as zero; callers treat that as "keep all".
	if winner, err := media.DecodeWinner(winnerRaw); err == nil {
		entry.Winner = winner
	}
	return entry, nil
}

// CleanupEntries loads the entries with the given IDs in ID order. Unknown
// IDs are skipped.
func (s *Store) CleanupEntries(ctx context.Context, ids []int64) ([]media.CleanupEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM cleanup_index WHERE id IN (%s) ORDER BY id", cleanupColumns, makePlaceholders(len(ids)))
	rows, err := s.db.QueryContext(ensureContext(ctx), query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query cleanup entries: %w", err)
	}
	defer rows.Close()
	var out []media.CleanupEntry
	for rows.Next() {
		entry, err := scanCleanupEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PendingIDs returns the IDs of all pending entries.
func (s *Store) PendingIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id FROM cleanup_index WHERE status = ? ORDER BY id", string(media.CleanupPending))
	if err != nil {
		return nil, fmt.Errorf("query pending ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListCleanup returns entries with the given status joined with their title
// metadata, ordered by parent series, season, episode, then title.
func (s *Store) ListCleanup(ctx context.Context, status media.CleanupStatus) ([]media.PendingEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT t.id, t.tmdb_id, t.item_type, t.versions_info_json, t.best_version_id, t.status,
		       m.title, m.season_number, m.episode_number, m.parent_series_tmdb_id, parent.title
		FROM cleanup_index AS t
		LEFT JOIN media_metadata AS m ON t.tmdb_id = m.tmdb_id AND t.item_type = m.item_type
		LEFT JOIN media_metadata AS parent ON m.parent_series_tmdb_id = parent.tmdb_id AND parent.item_type = 'Series'
		WHERE t.status = ?
		ORDER BY parent.title IS NULL, parent.title, m.season_number, m.episode_number, m.title, t.id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("query cleanup listing: %w", err)
	}
	defer rows.Close()

	var out []media.PendingEntry
	for rows.Next() {
		var (
			entry        media.PendingEntry
			itemType     string
			versionsJSON string
			winnerRaw    string
			statusRaw    string
			title        sql.NullString
			season       sql.NullInt64
			episode      sql.NullInt64
			parentID     sql.NullString
			parentTitle  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Key.TMDBID, &itemType, &versionsJSON, &winnerRaw, &statusRaw,
			&title, &season, &episode, &parentID, &parentTitle); err != nil {
			return nil, err
		}
		entry.Key.ItemType = media.ItemType(itemType)
		entry.Status = media.CleanupStatus(statusRaw)
		if err := json.Unmarshal([]byte(versionsJSON), &entry.Versions); err != nil {
			entry.Versions = nil
		}
		if winner, err := media.DecodeWinner(winnerRaw); err == nil {
			entry.Winner = winner
		}
		entry.Title = title.String
		entry.ParentSeriesTMDBID = parentID.String
		entry.ParentSeriesTitle = parentTitle.String
		if season.Valid {
			n := int(season.Int64)
			entry.SeasonNumber = &n
		}
		if episode.Valid {
			n := int(episode.Int64)
			entry.EpisodeNumber = &n
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// SetCleanupStatus moves the given entries to status and returns how many
// rows changed.
func (s *Store) SetCleanupStatus(ctx context.Context, ids []int64, status media.CleanupStatus) (int, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("invalid cleanup status %q", status)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{string(status), s.timestamp()}, int64Args(ids)...)
	res, err := s.execWithRetry(ctx,
		fmt.Sprintf("UPDATE cleanup_index SET status = ?, updated_at = ? WHERE id IN (%s)", makePlaceholders(len(ids))),
		args...)
	if err != nil {
		return 0, fmt.Errorf("update cleanup status: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteCleanupEntries removes entries and returns how many were deleted.
func (s *Store) DeleteCleanupEntries(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(ctx,
		fmt.Sprintf("DELETE FROM cleanup_index WHERE id IN (%s)", makePlaceholders(len(ids))),
		int64Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("delete cleanup entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
