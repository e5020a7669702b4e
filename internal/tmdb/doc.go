// Package tmdb is a small client for The Movie Database detail endpoints used
// during library reconciliation: movie details, TV details, and season
// episode listings. Requests are rate limited and a missing title (404) is
// reported as a nil result rather than an error.
package tmdb
