package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"reelkeep/internal/media"
)

// MetadataRow is one media_metadata upsert. Zero-valued optional fields are
// left out of the write so they keep whatever was stored before; InLibrary
// and ItemIDs are always written.
type MetadataRow struct {
	Key                media.TitleKey
	Title              string
	OriginalTitle      string
	Overview           string
	PosterPath         string
	OfficialRating     string
	DateAdded          string
	ReleaseYear        int
	RuntimeMinutes     int
	Rating             *float64
	ParentSeriesTMDBID string
	SeasonNumber       *int
	EpisodeNumber      *int
	Genres             []string
	Studios            []string
	Directors          []string
	Countries          []string
	Keywords           []string
	InLibrary          bool
	ItemIDs            []string
	Assets             []media.RawVersion
}

// RowError records one row that failed to write.
type RowError struct {
	Key media.TitleKey
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

// BatchResult summarises a WriteBatch call.
type BatchResult struct {
	Written   int
	Offline   int
	RowErrors []RowError
}

const offlineAssignments = "in_library = 0, emby_item_ids_json = '[]', asset_details_json = '[]'"

func (r MetadataRow) columns() ([]string, []any, error) {
	if strings.TrimSpace(r.Key.TMDBID) == "" || r.Key.ItemType == "" {
		return nil, nil, errors.New("tmdb id and item type required")
	}
	cols := []string{"tmdb_id", "item_type", "in_library", "emby_item_ids_json"}
	ids, err := jsonText(r.ItemIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode item ids: %w", err)
	}
	args := []any{r.Key.TMDBID, string(r.Key.ItemType), boolToInt(r.InLibrary), ids}

	addString := func(col, value string) {
		if value != "" {
			cols = append(cols, col)
			args = append(args, value)
		}
	}
	addString("title", r.Title)
	addString("original_title", r.OriginalTitle)
	addString("overview", r.Overview)
	addString("poster_path", r.PosterPath)
	addString("official_rating", r.OfficialRating)
	addString("date_added", r.DateAdded)
	addString("parent_series_tmdb_id", r.ParentSeriesTMDBID)
	if r.ReleaseYear > 0 {
		cols = append(cols, "release_year")
		args = append(args, r.ReleaseYear)
	}
	if r.RuntimeMinutes > 0 {
		cols = append(cols, "runtime_minutes")
		args = append(args, r.RuntimeMinutes)
	}
	if r.Rating != nil {
		cols = append(cols, "rating")
		args = append(args, *r.Rating)
	}
	if r.SeasonNumber != nil {
		cols = append(cols, "season_number")
		args = append(args, *r.SeasonNumber)
	}
	if r.EpisodeNumber != nil {
		cols = append(cols, "episode_number")
		args = append(args, *r.EpisodeNumber)
	}

	lists := []struct {
		col    string
		values any
		set    bool
	}{
		{"genres_json", r.Genres, r.Genres != nil},
		{"studios_json", r.Studios, r.Studios != nil},
		{"directors_json", r.Directors, r.Directors != nil},
		{"countries_json", r.Countries, r.Countries != nil},
		{"keywords_json", r.Keywords, r.Keywords != nil},
		{"asset_details_json", r.Assets, r.Assets != nil},
	}
	for _, list := range lists {
		if !list.set {
			continue
		}
		text, err := jsonText(list.values)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s: %w", list.col, err)
		}
		cols = append(cols, list.col)
		args = append(args, text)
	}
	return cols, args, nil
}

func upsertMetadata(ctx context.Context, tx *sql.Tx, row MetadataRow, syncedAt string) error {
	cols, args, err := row.columns()
	if err != nil {
		return err
	}
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == "tmdb_id" || col == "item_type" {
			continue
		}
		updates = append(updates, col+" = excluded."+col)
	}
	query := fmt.Sprintf(
		"INSERT INTO media_metadata (%s, last_synced_at) VALUES (%s, ?) ON CONFLICT(tmdb_id, item_type) DO UPDATE SET %s, last_synced_at = excluded.last_synced_at",
		strings.Join(cols, ", "), makePlaceholders(len(cols)), strings.Join(updates, ", "),
	)
	_, err = tx.ExecContext(ctx, query, append(args, syncedAt)...)
	return err
}

// WriteBatch upserts rows, each isolated behind its own savepoint, then marks
// offline every in-library season or episode of processedSeries whose TMDB ID
// is not among this batch's child rows. A failing row is rolled back to its
// savepoint and reported in RowErrors; the rest of the batch still commits.
func (s *Store) WriteBatch(ctx context.Context, rows []MetadataRow, processedSeries []string) (BatchResult, error) {
	var result BatchResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = BatchResult{}
		syncedAt := s.timestamp()
		for i, row := range rows {
			savepoint := fmt.Sprintf("row_%d", i)
			if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
				return fmt.Errorf("savepoint: %w", err)
			}
			if err := upsertMetadata(ctx, tx, row, syncedAt); err != nil {
				if isSQLiteBusy(err) {
					return err
				}
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+savepoint); rbErr != nil {
					return fmt.Errorf("rollback savepoint: %w", rbErr)
				}
				result.RowErrors = append(result.RowErrors, RowError{Key: row.Key, Err: err})
			} else {
				result.Written++
			}
			if _, err := tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}
		}

		if len(processedSeries) == 0 {
			return nil
		}
		var active []string
		for _, row := range rows {
			if row.Key.ItemType.IsChild() {
				active = append(active, row.Key.TMDBID)
			}
		}
		offline, err := markStaleChildren(ctx, tx, processedSeries, active)
		if err != nil {
			return err
		}
		result.Offline = offline
		return nil
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("write metadata batch: %w", err)
	}
	return result, nil
}

func markStaleChildren(ctx context.Context, tx *sql.Tx, series, active []string) (int, error) {
	seriesJSON, err := jsonText(series)
	if err != nil {
		return 0, err
	}
	query := "UPDATE media_metadata SET " + offlineAssignments + `
		WHERE item_type IN ('Season', 'Episode')
		  AND in_library = 1
		  AND parent_series_tmdb_id IN (SELECT value FROM json_each(?))`
	args := []any{seriesJSON}
	if len(active) > 0 {
		activeJSON, err := jsonText(active)
		if err != nil {
			return 0, err
		}
		query += " AND tmdb_id NOT IN (SELECT value FROM json_each(?))"
		args = append(args, activeJSON)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark stale children offline: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// InLibraryItemIDs returns every media server item ID referenced by an
// in-library row.
func (s *Store) InLibraryItemIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT DISTINCT CAST(j.value AS TEXT)
		FROM media_metadata AS m, json_each(CASE WHEN json_valid(m.emby_item_ids_json) THEN m.emby_item_ids_json ELSE '[]' END) AS j
		WHERE m.in_library = 1`)
	if err != nil {
		return nil, fmt.Errorf("query in-library ids: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id.Valid && id.String != "" {
			ids[id.String] = struct{}{}
		}
	}
	return ids, rows.Err()
}

// InLibraryTopLevelKeys lists the movie and series rows currently in library.
func (s *Store) InLibraryTopLevelKeys(ctx context.Context) ([]media.TitleKey, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT tmdb_id, item_type FROM media_metadata
		WHERE in_library = 1 AND item_type IN ('Movie', 'Series')
		ORDER BY item_type, tmdb_id`)
	if err != nil {
		return nil, fmt.Errorf("query top-level keys: %w", err)
	}
	defer rows.Close()
	var keys []media.TitleKey
	for rows.Next() {
		var key media.TitleKey
		var itemType string
		if err := rows.Scan(&key.TMDBID, &itemType); err != nil {
			return nil, err
		}
		key.ItemType = media.ItemType(itemType)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ParentSeriesForItems returns the TMDB IDs of the series owning any season
// or episode row that references one of the given item IDs.
func (s *Store) ParentSeriesForItems(ctx context.Context, itemIDs []string) ([]string, error) {
	ctx = ensureContext(ctx)
	seen := make(map[string]struct{})
	var out []string
	for _, chunk := range chunkStrings(itemIDs, idChunkSize) {
		idsJSON, err := jsonText(chunk)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT m.parent_series_tmdb_id
			FROM media_metadata AS m, json_each(CASE WHEN json_valid(m.emby_item_ids_json) THEN m.emby_item_ids_json ELSE '[]' END) AS j
			WHERE m.item_type IN ('Season', 'Episode')
			  AND m.parent_series_tmdb_id IS NOT NULL
			  AND CAST(j.value AS TEXT) IN (SELECT value FROM json_each(?))`, idsJSON)
		if err != nil {
			return nil, fmt.Errorf("query parent series: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			if _, dup := seen[id]; !dup && id != "" {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(out)
	return out, nil
}

// MarkTopLevelOffline clears the in-library state of the given movies and
// series. Series also take their seasons and episodes offline. It returns
// the number of rows changed.
func (s *Store) MarkTopLevelOffline(ctx context.Context, keys []media.TitleKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var total int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		total = 0
		for _, key := range keys {
			res, err := tx.ExecContext(ctx,
				"UPDATE media_metadata SET "+offlineAssignments+" WHERE tmdb_id = ? AND item_type = ? AND in_library = 1",
				key.TMDBID, string(key.ItemType))
			if err != nil {
				return fmt.Errorf("offline %s: %w", key, err)
			}
			n, _ := res.RowsAffected()
			total += int(n)
			if key.ItemType != media.ItemSeries {
				continue
			}
			res, err = tx.ExecContext(ctx,
				"UPDATE media_metadata SET "+offlineAssignments+" WHERE parent_series_tmdb_id = ? AND item_type IN ('Season', 'Episode') AND in_library = 1",
				key.TMDBID)
			if err != nil {
				return fmt.Errorf("offline children of %s: %w", key, err)
			}
			n, _ = res.RowsAffected()
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// MultiVersionTitles returns in-library titles whose stored asset details
// hold more than one version.
func (s *Store) MultiVersionTitles(ctx context.Context) ([]media.StoredTitle, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT tmdb_id, item_type, COALESCE(title, ''), emby_item_ids_json, asset_details_json
		FROM media_metadata
		WHERE in_library = 1
		  AND (CASE WHEN json_valid(asset_details_json) THEN json_array_length(asset_details_json) ELSE 0 END) > 1
		ORDER BY item_type, tmdb_id`)
	if err != nil {
		return nil, fmt.Errorf("query multi-version titles: %w", err)
	}
	defer rows.Close()
	var out []media.StoredTitle
	for rows.Next() {
		var (
			title      media.StoredTitle
			itemType   string
			idsJSON    string
			assetsJSON string
		)
		if err := rows.Scan(&title.Key.TMDBID, &itemType, &title.Title, &idsJSON, &assetsJSON); err != nil {
			return nil, err
		}
		title.Key.ItemType = media.ItemType(itemType)
		title.ItemIDs = decodeStringList(idsJSON)
		title.Versions = decodeVersions(assetsJSON)
		out = append(out, title)
	}
	return out, rows.Err()
}

// decodeVersions reads asset details, keeping only object elements.
func decodeVersions(raw string) []media.RawVersion {
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	out := make([]media.RawVersion, 0, len(values))
	for _, value := range values {
		var v media.RawVersion
		if err := json.Unmarshal(value, &v); err != nil || v == nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// TitleFor returns the stored title of a row.
func (s *Store) TitleFor(ctx context.Context, key media.TitleKey) (string, bool, error) {
	var title sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT title FROM media_metadata WHERE tmdb_id = ? AND item_type = ?",
		key.TMDBID, string(key.ItemType)).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup title %s: %w", key, err)
	}
	return title.String, title.Valid && title.String != "", nil
}

// MetadataFor returns the stored in-library flag, item IDs, and versions of
// one row.
func (s *Store) MetadataFor(ctx context.Context, key media.TitleKey) (*media.StoredTitle, bool, error) {
	var (
		title      sql.NullString
		inLibrary  int
		idsJSON    string
		assetsJSON string
	)
	err := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT title, in_library, emby_item_ids_json, asset_details_json
		FROM media_metadata WHERE tmdb_id = ? AND item_type = ?`,
		key.TMDBID, string(key.ItemType)).Scan(&title, &inLibrary, &idsJSON, &assetsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup metadata %s: %w", key, err)
	}
	return &media.StoredTitle{
		Key:      key,
		Title:    title.String,
		ItemIDs:  decodeStringList(idsJSON),
		Versions: decodeVersions(assetsJSON),
	}, inLibrary != 0, nil
}

// RemoveVersion purges a deleted media server item from every row that
// references it. Rows left without any item go offline. It returns the
// number of rows changed.
func (s *Store) RemoveVersion(ctx context.Context, itemID string) (int, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return 0, nil
	}
	var changed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		changed = 0
		rows, err := tx.QueryContext(ctx, `
			SELECT m.tmdb_id, m.item_type, m.emby_item_ids_json, m.asset_details_json
			FROM media_metadata AS m
			WHERE EXISTS (
				SELECT 1 FROM json_each(CASE WHEN json_valid(m.emby_item_ids_json) THEN m.emby_item_ids_json ELSE '[]' END) AS j
				WHERE CAST(j.value AS TEXT) = ?)
			OR EXISTS (
				SELECT 1 FROM json_each(CASE WHEN json_valid(m.asset_details_json) THEN m.asset_details_json ELSE '[]' END) AS a
				WHERE CAST(json_extract(a.value, '$.emby_item_id') AS TEXT) = ?)`, itemID, itemID)
		if err != nil {
			return fmt.Errorf("query rows for item %s: %w", itemID, err)
		}
		type pending struct {
			key    media.TitleKey
			ids    []string
			assets []media.RawVersion
		}
		var updates []pending
		for rows.Next() {
			var (
				p          pending
				itemType   string
				idsJSON    string
				assetsJSON string
			)
			if err := rows.Scan(&p.key.TMDBID, &itemType, &idsJSON, &assetsJSON); err != nil {
				rows.Close()
				return err
			}
			p.key.ItemType = media.ItemType(itemType)
			p.ids = slices.DeleteFunc(decodeStringList(idsJSON), func(id string) bool { return id == itemID })
			p.assets = slices.DeleteFunc(decodeVersions(assetsJSON), func(v media.RawVersion) bool { return v.Identity() == itemID })
			updates = append(updates, p)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		for _, p := range updates {
			ids, err := jsonText(p.ids)
			if err != nil {
				return err
			}
			assets, err := jsonText(p.assets)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE media_metadata
				SET emby_item_ids_json = ?, asset_details_json = ?,
				    in_library = CASE WHEN ? = 0 THEN 0 ELSE in_library END
				WHERE tmdb_id = ? AND item_type = ?`,
				ids, assets, len(p.ids), p.key.TMDBID, string(p.key.ItemType)); err != nil {
				return fmt.Errorf("purge item %s from %s: %w", itemID, p.key, err)
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
