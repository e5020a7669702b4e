package emby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelkeep/internal/logging"
	"reelkeep/internal/services"
)

const defaultPageSize = 500

// ReconcileFields is the field projection requested for reconciliation scans.
var ReconcileFields = []string{
	"ProviderIds", "Type", "DateCreated", "Name", "OriginalTitle", "PremiereDate",
	"CommunityRating", "Genres", "Studios", "Tags", "OfficialRating", "ProductionYear",
	"Path", "Overview", "MediaStreams", "MediaSources", "Container", "Size", "SeriesId",
	"ParentIndexNumber", "IndexNumber", "ParentId", "RunTimeTicks",
}

// HTTPDoer describes the HTTP client used by the Emby client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin Emby REST client authenticated with X-Emby-Token.
type Client struct {
	baseURL  string
	apiKey   string
	userID   string
	client   HTTPDoer
	pageSize int
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPDoer overrides the default HTTP client.
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithPageSize overrides the listing page size.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "emby")
	}
}

// New constructs a client for the server at baseURL.
func New(baseURL, apiKey, userID string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if baseURL == "" || apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "emby", "init", "emby url and api key required", nil)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		userID:   strings.TrimSpace(userID),
		client:   &http.Client{Timeout: timeout},
		pageSize: defaultPageSize,
		logger:   logging.NewComponentLogger(nil, "emby"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListItems returns every item matching the query, following pagination.
func (c *Client) ListItems(ctx context.Context, query ItemQuery) ([]Item, error) {
	var out []Item
	for start := 0; ; {
		params := url.Values{}
		params.Set("StartIndex", strconv.Itoa(start))
		params.Set("Limit", strconv.Itoa(c.pageSize))
		if query.Recursive {
			params.Set("Recursive", "true")
		}
		if query.ParentID != "" {
			params.Set("ParentId", query.ParentID)
		}
		if len(query.Types) > 0 {
			params.Set("IncludeItemTypes", strings.Join(query.Types, ","))
		}
		if len(query.Fields) > 0 {
			params.Set("Fields", strings.Join(query.Fields, ","))
		}
		if len(query.IDs) > 0 {
			params.Set("Ids", strings.Join(query.IDs, ","))
		}

		var page itemsResponse
		if err := c.getJSON(ctx, "list items", c.itemsPath(), params, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		start += len(page.Items)
		if len(page.Items) == 0 || len(page.Items) < c.pageSize || (page.TotalRecordCount > 0 && start >= page.TotalRecordCount) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LibraryItems lists items of the given types under each library. An empty
// library list scans the whole server.
func (c *Client) LibraryItems(ctx context.Context, libraryIDs []string, types []string, fields []string) ([]Item, error) {
	if len(libraryIDs) == 0 {
		return c.ListItems(ctx, ItemQuery{Types: types, Fields: fields, Recursive: true})
	}
	var out []Item
	seen := make(map[string]struct{})
	for _, lib := range libraryIDs {
		items, err := c.ListItems(ctx, ItemQuery{ParentID: lib, Types: types, Fields: fields, Recursive: true})
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", lib, err)
		}
		for _, item := range items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
		c.logger.Debug("library listed", logging.String("library_id", lib), logging.Int("items", len(items)))
	}
	return out, nil
}

// LibraryItemIDs returns the IDs of movies, series, and episodes inside the
// given libraries.
func (c *Client) LibraryItemIDs(ctx context.Context, libraryIDs []string) (map[string]struct{}, error) {
	items, err := c.LibraryItems(ctx, libraryIDs, []string{"Movie", "Series", "Episode"}, []string{"Id"})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			ids[item.ID] = struct{}{}
		}
	}
	return ids, nil
}

// GetItem fetches one item with full media source detail.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "emby", "get item", "item id required", nil)
	}
	items, err := c.ListItems(ctx, ItemQuery{IDs: []string{id}, Fields: ReconcileFields})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "emby", "get item", "item "+id, nil)
	}
	return &items[0], nil
}

// DeleteItem removes an item (and its file) from the server. It reports
// whether the server accepted the deletion.
func (c *Client) DeleteItem(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, services.Wrap(services.ErrValidation, "emby", "delete", "item id required", nil)
	}
	resp, err := c.do(ctx, http.MethodDelete, "/Items/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err
	}
	defer drain(resp)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, statusError("delete", resp.StatusCode)
	}
	return true, nil
}

// RefreshItem asks the server to refresh an item's metadata. The server
// performs the refresh asynchronously.
func (c *Client) RefreshItem(ctx context.Context, id string) error {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("MetadataRefreshMode", "Default")
	params.Set("ImageRefreshMode", "Default")
	resp, err := c.do(ctx, http.MethodPost, "/Items/"+url.PathEscape(strings.TrimSpace(id))+"/Refresh", params)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError("refresh", resp.StatusCode)
	}
	return nil
}

// Libraries lists the server's virtual folders.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var libs []Library
	if err := c.getJSON(ctx, "libraries", "/Library/VirtualFolders", nil, &libs); err != nil {
		return nil, err
	}
	return libs, nil
}

// Ping checks reachability and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var info map[string]any
	return c.getJSON(ctx, "system info", "/System/Info", nil, &info)
}

func (c *Client) itemsPath() string {
	if c.userID != "" {
		return "/Users/" + url.PathEscape(c.userID) + "/Items"
	}
	return "/Items"
}

func (c *Client) getJSON(ctx context.Context, operation, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(operation, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, "emby", operation, "decode response", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build emby request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "emby", method+" "+path, fmt.Sprintf("latency=%v", time.Since(start)), err)
	}
	return resp, nil
}

func statusError(operation string, status int) error {
	marker := services.ErrExternalTool
	switch {
	case status == http.StatusNotFound:
		marker = services.ErrNotFound
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "emby", operation, fmt.Sprintf("returned %d", status), nil)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
