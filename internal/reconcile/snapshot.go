package reconcile

import (
	"slices"

	"reelkeep/internal/emby"
	"reelkeep/internal/media"
)

// snapshot indexes one library scan.
type snapshot struct {
	// topLevel groups movie and series items by title key; order keeps the
	// first-seen order of keys so batches are stable between runs.
	topLevel map[media.TitleKey][]emby.Item
	order    []media.TitleKey
	seasons  map[string][]emby.Item
	episodes map[string][]emby.Item
	current  map[string]struct{}
	// seriesTMDB maps a server series ID to its TMDB ID.
	seriesTMDB map[string]string
	dirty      map[string]struct{}
	// fresh holds title keys with at least one item ID outside the known set.
	fresh map[media.TitleKey]struct{}
}

// buildSnapshot indexes the scanned items and runs the forward diff. known is
// nil on a full refresh, which disables new-item detection.
func buildSnapshot(items []emby.Item, known map[string]struct{}) *snapshot {
	snap := &snapshot{
		topLevel:   make(map[media.TitleKey][]emby.Item),
		seasons:    make(map[string][]emby.Item),
		episodes:   make(map[string][]emby.Item),
		current:    make(map[string]struct{}, len(items)),
		seriesTMDB: make(map[string]string),
		dirty:      make(map[string]struct{}),
		fresh:      make(map[media.TitleKey]struct{}),
	}
	for _, item := range items {
		if item.ID != "" {
			snap.current[item.ID] = struct{}{}
		}
		if item.Type == string(media.ItemSeries) && item.ID != "" {
			if tmdbID := item.TMDBID(); tmdbID != "" {
				snap.seriesTMDB[item.ID] = tmdbID
			}
		}
	}

	for _, item := range items {
		isNew := false
		if known != nil {
			_, seen := known[item.ID]
			isNew = !seen
		}
		switch media.ItemType(item.Type) {
		case media.ItemMovie, media.ItemSeries:
			tmdbID := item.TMDBID()
			if tmdbID == "" {
				continue
			}
			key := media.TitleKey{TMDBID: tmdbID, ItemType: media.ItemType(item.Type)}
			if _, ok := snap.topLevel[key]; !ok {
				snap.order = append(snap.order, key)
			}
			snap.topLevel[key] = append(snap.topLevel[key], item)
			if isNew {
				snap.fresh[key] = struct{}{}
				if key.ItemType == media.ItemSeries {
					snap.dirty[tmdbID] = struct{}{}
				}
			}
		case media.ItemSeason:
			seriesID := item.SeriesID
			if seriesID == "" {
				seriesID = item.ParentID
			}
			if seriesID == "" {
				continue
			}
			snap.seasons[seriesID] = append(snap.seasons[seriesID], item)
			snap.markChildDirty(seriesID, isNew)
		case media.ItemEpisode:
			if item.SeriesID == "" {
				continue
			}
			snap.episodes[item.SeriesID] = append(snap.episodes[item.SeriesID], item)
			snap.markChildDirty(item.SeriesID, isNew)
		}
	}
	return snap
}

func (s *snapshot) markChildDirty(seriesID string, isNew bool) {
	if !isNew {
		return
	}
	if tmdbID, ok := s.seriesTMDB[seriesID]; ok {
		s.dirty[tmdbID] = struct{}{}
	}
}

// vanished returns the known IDs missing from this scan, sorted.
func (s *snapshot) vanished(known map[string]struct{}) []string {
	var out []string
	for id := range known {
		if _, ok := s.current[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// removedTopLevel returns the stored keys that were not seen in this scan.
func (s *snapshot) removedTopLevel(stored []media.TitleKey) []media.TitleKey {
	var out []media.TitleKey
	for _, key := range stored {
		if _, ok := s.topLevel[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

// queue selects the title groups to enrich. A full refresh takes everything;
// otherwise titles missing from the store, groups holding a new item (such as
// another version of a stored movie) and dirty series.
func (s *snapshot) queue(stored []media.TitleKey, full bool) []media.TitleKey {
	if full {
		return slices.Clone(s.order)
	}
	existing := make(map[media.TitleKey]struct{}, len(stored))
	for _, key := range stored {
		existing[key] = struct{}{}
	}
	var out []media.TitleKey
	for _, key := range s.order {
		if _, ok := existing[key]; !ok {
			out = append(out, key)
			continue
		}
		if _, ok := s.fresh[key]; ok {
			out = append(out, key)
			continue
		}
		if key.ItemType == media.ItemSeries {
			if _, dirty := s.dirty[key.TMDBID]; dirty {
				out = append(out, key)
			}
		}
	}
	return out
}

// children returns the seasons and episodes under any server item of the
// series group.
func (s *snapshot) children(group []emby.Item) (seasons, episodes []emby.Item) {
	for _, item := range group {
		seasons = append(seasons, s.seasons[item.ID]...)
		episodes = append(episodes, s.episodes[item.ID]...)
	}
	return seasons, episodes
}
