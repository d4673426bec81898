// Package gamma consumes Polymarket gamma endpoints.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/datavents/datavents/pkg/httpclient"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
	}
}

// TokenIDs handles the double-encoded JSON array from the API.
type TokenIDs []string

func (t *TokenIDs) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Some responses carry a native list instead of a string.
		return json.Unmarshal(data, (*[]string)(t))
	}
	return json.Unmarshal([]byte(s), (*[]string)(t))
}

// GetMarketByID fetches a market snapshot by numeric id. The shape varies
// between deployments, so it is returned unshaped.
func (c *Client) GetMarketByID(ctx context.Context, id int64) (map[string]any, error) {
	market, err := httpclient.GetResource[map[string]any](ctx, c.httpClient, c.baseURL, "/markets/"+strconv.FormatInt(id, 10), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market %d: %w", id, err)
	}
	return market, nil
}

// GetMarketBySlug fetches a market snapshot by slug. The endpoint returns a
// list; the first entry is the snapshot.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (map[string]any, error) {
	query := url.Values{}
	query.Set("slug", slug)

	markets, err := httpclient.GetResourceQuery[[]map[string]any](ctx, c.httpClient, c.baseURL, "/markets", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by slug %s: %w", slug, err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no market found for slug %s", slug)
	}
	return markets[0], nil
}

// GetEventByID fetches an event with its nested markets by numeric id.
func (c *Client) GetEventByID(ctx context.Context, id int64) (map[string]any, error) {
	event, err := httpclient.GetResource[map[string]any](ctx, c.httpClient, c.baseURL, "/events/"+strconv.FormatInt(id, 10), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event %d: %w", id, err)
	}
	return event, nil
}

// GetEventBySlug fetches an event with its nested markets by slug.
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (map[string]any, error) {
	event, err := httpclient.GetResource[map[string]any](ctx, c.httpClient, c.baseURL, "/events/slug/"+url.PathEscape(slug), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event by slug %s: %w", slug, err)
	}
	return event, nil
}

// Search runs a keyword search across events and markets.
func (c *Client) Search(ctx context.Context, q string, limit, page int) (map[string]any, error) {
	query := url.Values{}
	query.Set("q", q)
	if limit > 0 {
		query.Set("limit_per_type", strconv.Itoa(limit))
	}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}

	results, err := httpclient.GetResourceQuery[map[string]any](ctx, c.httpClient, c.baseURL, "/public-search", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't search %q: %w", q, err)
	}
	return results, nil
}
