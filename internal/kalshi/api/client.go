// Package api calls Kalshi's public trade API (v2) without authentication.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/datavents/datavents/internal/price"
	"github.com/datavents/datavents/pkg/httpclient"
)

const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

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

// GetMarketRaw fetches a market snapshot by ticker and returns the response
// unshaped. Callers extract identifier fields from whatever wrapper the
// endpoint uses ({"market": {...}} or {"markets": [...]}).
func (c *Client) GetMarketRaw(ctx context.Context, ticker string) (map[string]any, error) {
	snapshot, err := httpclient.GetResource[map[string]any](ctx, c.httpClient, c.baseURL, "/markets/"+url.PathEscape(ticker), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market %s: %w", ticker, err)
	}
	return snapshot, nil
}

// GetEventRaw fetches an event by ticker, optionally with its nested
// markets inlined, and returns the response unshaped.
func (c *Client) GetEventRaw(ctx context.Context, eventTicker string, withNestedMarkets bool) (map[string]any, error) {
	query := url.Values{}
	query.Set("with_nested_markets", strconv.FormatBool(withNestedMarkets))
	event, err := httpclient.GetResourceQuery[map[string]any](ctx, c.httpClient, c.baseURL, "/events/"+url.PathEscape(eventTicker), query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event %s: %w", eventTicker, err)
	}
	return event, nil
}

type Trade struct {
	TradeID     string      `json:"trade_id"`
	Ticker      string      `json:"ticker"`
	CreatedTime string      `json:"created_time"`
	Timestamp   json.Number `json:"timestamp"`
	Price       price.Price `json:"price"`
	Count       int64       `json:"count"`
	TakerSide   string      `json:"taker_side"`
}

// Time returns the trade's timestamp as epoch seconds. created_time is
// preferred; a numeric timestamp field is accepted as a fallback.
func (t *Trade) Time() (int64, bool) {
	if t.CreatedTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.CreatedTime); err == nil {
			return parsed.Unix(), true
		}
	}
	if t.Timestamp != "" {
		if ts, err := t.Timestamp.Int64(); err == nil {
			return ts, true
		}
	}
	return 0, false
}

type TradesPage struct {
	Trades []Trade `json:"trades"`
	Cursor string  `json:"cursor"`
}

type TradesOptions struct {
	Ticker string
	Cursor string
	Limit  int
	MinTS  int64
	MaxTS  int64
}

// GetTrades fetches one page of trade ticks for a market.
func (c *Client) GetTrades(ctx context.Context, opts TradesOptions) (*TradesPage, error) {
	query := url.Values{}
	query.Set("ticker", opts.Ticker)
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.MinTS > 0 {
		query.Set("min_ts", strconv.FormatInt(opts.MinTS, 10))
	}
	if opts.MaxTS > 0 {
		query.Set("max_ts", strconv.FormatInt(opts.MaxTS, 10))
	}

	page, err := httpclient.GetResourceQuery[*TradesPage](ctx, c.httpClient, c.baseURL, "/markets/trades", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get trades for %s: %w", opts.Ticker, err)
	}
	return page, nil
}
