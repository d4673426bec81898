// Package elections calls Kalshi's legacy Elections API (v1). It carries the
// endpoints the trade API lacks: per-market forecast history, series search,
// and the v1 event shape that exposes numeric market ids.
package elections

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

const DefaultBaseURL = "https://api.elections.kalshi.com/v1"

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

type EventMarket struct {
	ID         string `json:"id"`
	Ticker     string `json:"ticker"`
	TickerName string `json:"ticker_name"`
}

// Matches reports whether this market entry is addressed by ticker, under
// either of the spellings the v1 API uses.
func (m *EventMarket) Matches(ticker string) bool {
	return m.TickerName == ticker || m.Ticker == ticker
}

type Event struct {
	EventTicker  string        `json:"event_ticker"`
	SeriesTicker string        `json:"series_ticker"`
	Title        string        `json:"title"`
	Markets      []EventMarket `json:"markets"`
}

type eventResponse struct {
	Event Event `json:"event"`
}

// GetEvent fetches a v1 event with its nested markets.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*Event, error) {
	resp, err := httpclient.GetResource[*eventResponse](ctx, c.httpClient, c.baseURL, "/events/"+url.PathEscape(eventTicker), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event %s: %w", eventTicker, err)
	}
	return &resp.Event, nil
}

type SeriesSearchHit struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

type SeriesSearchPage struct {
	CurrentPage []SeriesSearchHit `json:"current_page"`
}

// SearchSeries runs a keyword search over series.
func (c *Client) SearchSeries(ctx context.Context, query string, pageSize int) (*SeriesSearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}

	page, err := httpclient.GetResourceQuery[*SeriesSearchPage](ctx, c.httpClient, c.baseURL, "/search/series", params, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't search series %q: %w", query, err)
	}
	return page, nil
}

// SearchOptions shape a keyword search against the v1 search endpoints.
type SearchOptions struct {
	Query              string
	Limit              int
	Page               int
	OrderBy            string
	Status             string
	Scope              string // "series" or "events"
	ExcludedCategories []string
}

// Search runs a keyword search over series or events, returning the raw
// result objects. The series scope does not honor a status parameter; that
// filtering happens downstream.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]map[string]any, error) {
	scope := opts.Scope
	if scope != "events" {
		scope = "series"
	}

	params := url.Values{}
	params.Set("query", opts.Query)
	if opts.Limit > 0 {
		params.Set("page_size", strconv.Itoa(opts.Limit))
	}
	if opts.Page > 1 {
		params.Set("page_number", strconv.Itoa(opts.Page))
	}
	if opts.OrderBy != "" {
		params.Set("order_by", opts.OrderBy)
	}
	if scope == "events" && opts.Status != "" {
		params.Set("status", opts.Status)
	}
	for _, category := range opts.ExcludedCategories {
		params.Add("excluded_categories", category)
	}

	page, err := httpclient.GetResourceQuery[map[string]json.RawMessage](ctx, c.httpClient, c.baseURL, "/search/"+scope, params, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't search %s %q: %w", scope, opts.Query, err)
	}

	var hits []map[string]any
	if raw, ok := page["current_page"]; ok {
		if err := json.Unmarshal(raw, &hits); err != nil {
			return nil, fmt.Errorf("couldn't decode search page: %w", err)
		}
	}
	return hits, nil
}

type ForecastPoint struct {
	EndPeriodTS          json.Number `json:"end_period_ts"`
	TS                   json.Number `json:"ts"`
	Timestamp            json.Number `json:"timestamp"`
	NumericalForecast    json.Number `json:"numerical_forecast"`
	RawNumericalForecast json.Number `json:"raw_numerical_forecast"`
}

// When returns the sample's end-of-period timestamp in epoch seconds,
// trying the field spellings in v1 preference order.
func (p *ForecastPoint) When() (int64, bool) {
	for _, candidate := range []json.Number{p.EndPeriodTS, p.TS, p.Timestamp} {
		if candidate == "" {
			continue
		}
		if ts, err := candidate.Int64(); err == nil {
			return ts, true
		}
	}
	return 0, false
}

// Value returns the forecast value, a percentage in [0,100].
func (p *ForecastPoint) Value() (float64, bool) {
	for _, candidate := range []json.Number{p.NumericalForecast, p.RawNumericalForecast} {
		if candidate == "" {
			continue
		}
		if v, err := candidate.Float64(); err == nil {
			return v, true
		}
	}
	return 0, false
}

type ForecastHistory struct {
	Points []ForecastPoint `json:"forecast_history"`
}

type ForecastHistoryOptions struct {
	SeriesTicker string
	MarketID     string
	StartTS      int64
	EndTS        int64
	Interval     int64  // seconds
	Function     string // candlestick function, default mean_price
}

// GetForecastHistory fetches the pre-aggregated forecast series for one
// market of a series.
func (c *Client) GetForecastHistory(ctx context.Context, opts ForecastHistoryOptions) (*ForecastHistory, error) {
	fn := opts.Function
	if fn == "" {
		fn = "mean_price"
	}

	params := url.Values{}
	params.Set("start_ts", strconv.FormatInt(opts.StartTS, 10))
	params.Set("end_ts", strconv.FormatInt(opts.EndTS, 10))
	params.Set("period_interval", strconv.FormatInt(opts.Interval, 10))
	params.Set("candlestick_function", fn)

	endpoint := "/series/" + url.PathEscape(opts.SeriesTicker) + "/markets/" + url.PathEscape(opts.MarketID) + "/forecast_history"
	history, err := httpclient.GetResourceQuery[*ForecastHistory](ctx, c.httpClient, c.baseURL, endpoint, params, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get forecast history for %s/%s: %w", opts.SeriesTicker, opts.MarketID, err)
	}
	return history, nil
}
