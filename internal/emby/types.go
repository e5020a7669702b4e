package emby

import "strings"

// MediaStream is one stream of a media source.
type MediaStream struct {
	Type                 string  `json:"Type"`
	Codec                string  `json:"Codec"`
	Height               int     `json:"Height"`
	Width                int     `json:"Width"`
	BitDepth             int     `json:"BitDepth"`
	BitRate              int64   `json:"BitRate"`
	RealFrameRate        float64 `json:"RealFrameRate"`
	AverageFrameRate     float64 `json:"AverageFrameRate"`
	VideoRange           string  `json:"VideoRange"`
	VideoRangeType       string  `json:"VideoRangeType"`
	ExtendedVideoType    string  `json:"ExtendedVideoType"`
	ExtendedVideoSubType string  `json:"ExtendedVideoSubType"`
	DisplayTitle         string  `json:"DisplayTitle"`
}

// MediaSource is one playable file behind an item.
type MediaSource struct {
	ID           string        `json:"Id"`
	Path         string        `json:"Path"`
	Name         string        `json:"Name"`
	Container    string        `json:"Container"`
	Size         int64         `json:"Size"`
	Bitrate      int64         `json:"Bitrate"`
	RunTimeTicks int64         `json:"RunTimeTicks"`
	MediaStreams []MediaStream `json:"MediaStreams"`
}

// NameID is the {Name, Id} pair Emby uses for studios.
type NameID struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

// Item is the subset of an Emby BaseItemDto used by reconciliation.
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	OriginalTitle     string            `json:"OriginalTitle"`
	Type              string            `json:"Type"`
	ProviderIDs       map[string]string `json:"ProviderIds"`
	DateCreated       string            `json:"DateCreated"`
	PremiereDate      string            `json:"PremiereDate"`
	CommunityRating   *float64          `json:"CommunityRating"`
	OfficialRating    string            `json:"OfficialRating"`
	ProductionYear    int               `json:"ProductionYear"`
	Genres            []string          `json:"Genres"`
	Studios           []NameID          `json:"Studios"`
	Tags              []string          `json:"Tags"`
	Path              string            `json:"Path"`
	Overview          string            `json:"Overview"`
	Container         string            `json:"Container"`
	Size              int64             `json:"Size"`
	SeriesID          string            `json:"SeriesId"`
	ParentID          string            `json:"ParentId"`
	ParentIndexNumber *int              `json:"ParentIndexNumber"`
	IndexNumber       *int              `json:"IndexNumber"`
	RunTimeTicks      int64             `json:"RunTimeTicks"`
	MediaStreams      []MediaStream     `json:"MediaStreams"`
	MediaSources      []MediaSource     `json:"MediaSources"`
}

// TMDBID returns the item's TMDB provider ID, matching the key
// case-insensitively.
func (i Item) TMDBID() string {
	for key, value := range i.ProviderIDs {
		if strings.EqualFold(key, "tmdb") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// RuntimeMinutes converts RunTimeTicks (100ns units) to whole minutes.
func (i Item) RuntimeMinutes() int {
	return ticksToMinutes(i.RunTimeTicks)
}

func ticksToMinutes(ticks int64) int {
	if ticks <= 0 {
		return 0
	}
	const ticksPerMinute = 600_000_000
	return int((ticks + ticksPerMinute/2) / ticksPerMinute)
}

// Library is one virtual folder.
type Library struct {
	Name           string `json:"Name"`
	ItemID         string `json:"ItemId"`
	CollectionType string `json:"CollectionType"`
}

// ItemQuery selects items for ListItems.
type ItemQuery struct {
	ParentID  string
	Types     []string
	Fields    []string
	IDs       []string
	Recursive bool
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}
