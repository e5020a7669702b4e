package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reelkeep/internal/services"
)

// Provider defines the detail lookups used by reconciliation.
type Provider interface {
	MovieDetails(ctx context.Context, id string) (*Details, error)
	TVDetails(ctx context.Context, id string) (*Details, error)
	SeasonDetails(ctx context.Context, showID string, seasonNumber int) (*SeasonDetails, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables
// limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tmdb", "init", "tmdb api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// MovieDetails fetches movie details with credits and keywords. A missing
// movie yields nil, nil.
func (c *Client) MovieDetails(ctx context.Context, id string) (*Details, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("movie id must not be empty")
	}
	var payload Details
	found, err := c.get(ctx, "movie details", "/movie/"+url.PathEscape(id), url.Values{"append_to_response": {"credits,keywords"}}, &payload)
	if err != nil || !found {
		return nil, err
	}
	payload.MediaType = "movie"
	return &payload, nil
}

// TVDetails fetches series details with credits and keywords. A missing
// series yields nil, nil.
func (c *Client) TVDetails(ctx context.Context, id string) (*Details, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("show id must not be empty")
	}
	var payload Details
	found, err := c.get(ctx, "tv details", "/tv/"+url.PathEscape(id), url.Values{"append_to_response": {"credits,keywords"}}, &payload)
	if err != nil || !found {
		return nil, err
	}
	payload.MediaType = "tv"
	return &payload, nil
}

// SeasonDetails fetches the full season metadata for a TV show, including
// episodes. A missing season yields nil, nil.
func (c *Client) SeasonDetails(ctx context.Context, showID string, seasonNumber int) (*SeasonDetails, error) {
	showID = strings.TrimSpace(showID)
	if showID == "" {
		return nil, errors.New("show id must not be empty")
	}
	if seasonNumber < 0 {
		return nil, errors.New("season number must not be negative")
	}
	var payload SeasonDetails
	path := fmt.Sprintf("/tv/%s/season/%d", url.PathEscape(showID), seasonNumber)
	found, err := c.get(ctx, "season details", path, nil, &payload)
	if err != nil || !found {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, label, path string, extra url.Values, out any) (bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return false, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	for key, values := range extra {
		params[key] = values
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "tmdb", label, fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return false, services.Wrap(services.ErrTransient, "tmdb", label, fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	case resp.StatusCode != http.StatusOK:
		return false, services.Wrap(services.ErrExternalTool, "tmdb", label, fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode tmdb %s: %w", label, err)
	}
	return true, nil
}
