package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"reelkeep/internal/emby"
	"reelkeep/internal/media"
	"reelkeep/internal/store"
	"reelkeep/internal/tmdb"
)

// enrichment is the provider data fetched for one title group.
type enrichment struct {
	details *tmdb.Details
	// seasons holds episode listings for seasons that have episodes on the
	// server, keyed by season number.
	seasons map[int]*tmdb.SeasonDetails
	// err is set when a lookup failed; the title is skipped for this run.
	err error
}

// buildRows turns one title group into metadata rows: the title itself and,
// for series, every matched season plus every episode on the server.
func buildRows(key media.TitleKey, group []emby.Item, info enrichment, snap *snapshot) []store.MetadataRow {
	rows := []store.MetadataRow{topLevelRow(key, group, info.details)}
	if key.ItemType != media.ItemSeries {
		return rows
	}
	seasons, episodes := snap.children(group)
	return append(rows, childRows(key.TMDBID, seasons, episodes, info)...)
}

func topLevelRow(key media.TitleKey, group []emby.Item, details *tmdb.Details) store.MetadataRow {
	item := group[0]
	row := store.MetadataRow{
		Key:            key,
		Title:          item.Name,
		OriginalTitle:  item.OriginalTitle,
		ReleaseYear:    item.ProductionYear,
		Rating:         item.CommunityRating,
		DateAdded:      item.DateCreated,
		OfficialRating: item.OfficialRating,
		Genres:         nonNil(item.Genres),
		InLibrary:      true,
		ItemIDs:        itemIDs(group),
		Assets:         []media.RawVersion{},
	}
	if key.ItemType == media.ItemMovie {
		row.RuntimeMinutes = item.RuntimeMinutes()
		for _, version := range group {
			row.Assets = append(row.Assets, emby.AssetDetails(version))
		}
	}

	if details == nil {
		row.Overview = item.Overview
		row.Studios = []string{}
		row.Directors = []string{}
		row.Countries = []string{}
		row.Keywords = []string{}
		return row
	}
	row.PosterPath = details.PosterPath
	row.Overview = details.Overview
	if row.Overview == "" {
		row.Overview = item.Overview
	}
	if key.ItemType == media.ItemMovie && details.Runtime > 0 {
		row.RuntimeMinutes = details.Runtime
	}
	row.Studios = nonNil(details.Studios())
	row.Directors = nonNil(details.Directors())
	row.Countries = nonNil(details.Countries())
	row.Keywords = nonNil(details.KeywordNames())
	return row
}

type episodeKey struct {
	season, episode int
}

func childRows(seriesTMDB string, seasons, episodes []emby.Item, info enrichment) []store.MetadataRow {
	var rows []store.MetadataRow
	providerEpisodes := make(map[episodeKey]tmdb.Episode)

	if info.details != nil {
		for _, summary := range info.details.Seasons {
			var matched []emby.Item
			for _, season := range seasons {
				if season.IndexNumber != nil && *season.IndexNumber == summary.SeasonNumber {
					matched = append(matched, season)
				}
			}
			if len(matched) == 0 {
				continue
			}
			rows = append(rows, seasonRow(seriesTMDB, summary, matched, info.details.PosterPath))
			if listing := info.seasons[summary.SeasonNumber]; listing != nil {
				for _, ep := range listing.Episodes {
					providerEpisodes[episodeKey{summary.SeasonNumber, ep.EpisodeNumber}] = ep
				}
			}
		}
	}

	grouped := make(map[episodeKey][]emby.Item)
	for _, ep := range episodes {
		if ep.ParentIndexNumber == nil || ep.IndexNumber == nil {
			continue
		}
		k := episodeKey{*ep.ParentIndexNumber, *ep.IndexNumber}
		grouped[k] = append(grouped[k], ep)
	}
	keys := make([]episodeKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b episodeKey) int {
		if c := cmp.Compare(a.season, b.season); c != 0 {
			return c
		}
		return cmp.Compare(a.episode, b.episode)
	})
	for _, k := range keys {
		ep, ok := providerEpisodes[k]
		var match *tmdb.Episode
		if ok && ep.ID != 0 {
			match = &ep
		}
		rows = append(rows, episodeRow(seriesTMDB, k, grouped[k], match))
	}
	return rows
}

func seasonRow(seriesTMDB string, summary tmdb.SeasonSummary, matched []emby.Item, seriesPoster string) store.MetadataRow {
	id := strconv.FormatInt(summary.ID, 10)
	if summary.ID == 0 {
		id = fmt.Sprintf("%s-S%d", seriesTMDB, summary.SeasonNumber)
	}
	poster := summary.PosterPath
	if poster == "" {
		poster = seriesPoster
	}
	number := summary.SeasonNumber
	return store.MetadataRow{
		Key:                media.TitleKey{TMDBID: id, ItemType: media.ItemSeason},
		ParentSeriesTMDBID: seriesTMDB,
		SeasonNumber:       &number,
		Title:              summary.Name,
		Overview:           summary.Overview,
		PosterPath:         poster,
		InLibrary:          true,
		ItemIDs:            itemIDs(matched),
	}
}

func episodeRow(seriesTMDB string, k episodeKey, versions []emby.Item, match *tmdb.Episode) store.MetadataRow {
	first := versions[0]
	season, episode := k.season, k.episode
	row := store.MetadataRow{
		Key:                media.TitleKey{ItemType: media.ItemEpisode},
		ParentSeriesTMDBID: seriesTMDB,
		SeasonNumber:       &season,
		EpisodeNumber:      &episode,
		InLibrary:          true,
		ItemIDs:            itemIDs(versions),
		Assets:             make([]media.RawVersion, 0, len(versions)),
	}
	for _, version := range versions {
		row.Assets = append(row.Assets, emby.AssetDetails(version))
	}
	runtime := first.RuntimeMinutes()
	if match == nil {
		row.Key.TMDBID = fmt.Sprintf("%s-S%dE%d", seriesTMDB, season, episode)
		row.Title = first.Name
		row.Overview = first.Overview
		row.RuntimeMinutes = runtime
		return row
	}
	row.Key.TMDBID = strconv.FormatInt(match.ID, 10)
	row.Title = match.Name
	row.Overview = match.Overview
	row.PosterPath = match.StillPath
	row.RuntimeMinutes = runtime
	if runtime == 0 {
		row.RuntimeMinutes = match.Runtime
	}
	return row
}

// seasonsWithEpisodes lists the provider season numbers that both match a
// server season and have at least one server episode.
func seasonsWithEpisodes(details *tmdb.Details, seasons, episodes []emby.Item) []int {
	if details == nil {
		return nil
	}
	var out []int
	for _, summary := range details.Seasons {
		hasSeason := slices.ContainsFunc(seasons, func(s emby.Item) bool {
			return s.IndexNumber != nil && *s.IndexNumber == summary.SeasonNumber
		})
		if !hasSeason {
			continue
		}
		hasEpisodes := slices.ContainsFunc(episodes, func(e emby.Item) bool {
			return e.ParentIndexNumber != nil && *e.ParentIndexNumber == summary.SeasonNumber
		})
		if hasEpisodes {
			out = append(out, summary.SeasonNumber)
		}
	}
	return out
}

func itemIDs(items []emby.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID != "" && !slices.Contains(out, item.ID) {
			out = append(out, item.ID)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
