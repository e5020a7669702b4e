package tmdb

import "strings"

// Named is the {id, name} shape TMDB uses for genres, companies and keywords.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Country is one production country entry.
type Country struct {
	ISO  string `json:"iso_3166_1"`
	Name string `json:"name"`
}

// CrewMember is one credit in the crew list.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Credits holds the appended credits block.
type Credits struct {
	Crew []CrewMember `json:"crew"`
}

// Keywords holds the appended keywords block. Movies use "keywords", TV uses
// "results".
type Keywords struct {
	Keywords []Named `json:"keywords"`
	Results  []Named `json:"results"`
}

// SeasonSummary is a season entry embedded in TV details.
type SeasonSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date"`
}

// Details is the merged movie/TV detail payload with credits and keywords.
type Details struct {
	ID                  int64           `json:"id"`
	Title               string          `json:"title"`
	Name                string          `json:"name"`
	OriginalTitle       string          `json:"original_title"`
	OriginalName        string          `json:"original_name"`
	Overview            string          `json:"overview"`
	PosterPath          string          `json:"poster_path"`
	ReleaseDate         string          `json:"release_date"`
	FirstAirDate        string          `json:"first_air_date"`
	Runtime             int             `json:"runtime"`
	EpisodeRunTime      []int           `json:"episode_run_time"`
	VoteAverage         float64         `json:"vote_average"`
	Genres              []Named         `json:"genres"`
	ProductionCompanies []Named         `json:"production_companies"`
	ProductionCountries []Country       `json:"production_countries"`
	OriginCountry       []string        `json:"origin_country"`
	CreatedBy           []Named         `json:"created_by"`
	Credits             Credits         `json:"credits"`
	Keywords            Keywords        `json:"keywords"`
	Seasons             []SeasonSummary `json:"seasons"`
	MediaType           string          `json:"-"`
}

// DisplayTitle returns the movie title or series name.
func (d *Details) DisplayTitle() string {
	if d == nil {
		return ""
	}
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return strings.TrimSpace(d.Name)
}

// Directors returns crew members credited as Director, falling back to the
// series creators for TV.
func (d *Details) Directors() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, member := range d.Credits.Crew {
		if member.Job == "Director" && member.Name != "" {
			out = append(out, member.Name)
		}
	}
	if len(out) == 0 {
		for _, creator := range d.CreatedBy {
			if creator.Name != "" {
				out = append(out, creator.Name)
			}
		}
	}
	return out
}

// Countries returns production country names, or origin country codes for TV.
func (d *Details) Countries() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, c := range d.ProductionCountries {
		if c.Name != "" {
			out = append(out, c.Name)
		}
	}
	if len(out) == 0 {
		out = append(out, d.OriginCountry...)
	}
	return out
}

// KeywordNames flattens the movie or TV keyword list.
func (d *Details) KeywordNames() []string {
	if d == nil {
		return nil
	}
	list := d.Keywords.Keywords
	if len(list) == 0 {
		list = d.Keywords.Results
	}
	return names(list)
}

// Studios returns production company names.
func (d *Details) Studios() []string {
	if d == nil {
		return nil
	}
	return names(d.ProductionCompanies)
}

// GenreNames returns genre names.
func (d *Details) GenreNames() []string {
	if d == nil {
		return nil
	}
	return names(d.Genres)
}

func names(list []Named) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item.Name != "" {
			out = append(out, item.Name)
		}
	}
	return out
}

// Episode describes a single TMDB episode entry.
type Episode struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	StillPath     string  `json:"still_path"`
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	Runtime       int     `json:"runtime"`
	AirDate       string  `json:"air_date"`
	VoteAverage   float64 `json:"vote_average"`
}

// SeasonDetails captures the full TMDB season payload (episodes included).
type SeasonDetails struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview"`
	PosterPath   string    `json:"poster_path"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}
