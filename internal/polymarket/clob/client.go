// Package clob is used to call clob polymarket endpoints.
package clob

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

const DefaultBaseURL = "https://clob.polymarket.com"

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}
}

type MarketToken struct {
	Outcome string      `json:"outcome"`
	Price   price.Price `json:"price"`
	TokenID string      `json:"token_id"`
	Winner  bool        `json:"winner"`
}

type Market struct {
	ConditionID string        `json:"condition_id"`
	Description string        `json:"description"`
	Question    string        `json:"question"`
	Tokens      []MarketToken `json:"tokens"`
}

func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	market, err := httpclient.GetResource[*Market](ctx, c.httpClient, c.baseURL, "/markets/"+url.PathEscape(conditionID), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by condition ID %s: %w", conditionID, err)
	}
	return market, nil
}

type HistoryPoint struct {
	T json.Number `json:"t"`
	P json.Number `json:"p"`
}

type PriceHistory struct {
	History []HistoryPoint `json:"history"`
}

// PricesHistory fetches the price series for one clob token over [startTs,
// endTs] (epoch seconds). The upstream rejects windows much wider than 15
// days, so callers chunk long ranges.
func (c *Client) PricesHistory(ctx context.Context, tokenID string, startTs, endTs int64) (*PriceHistory, error) {
	query := url.Values{}
	query.Set("market", tokenID)
	query.Set("startTs", strconv.FormatInt(startTs, 10))
	query.Set("endTs", strconv.FormatInt(endTs, 10))

	history, err := httpclient.GetResourceQuery[*PriceHistory](ctx, c.httpClient, c.baseURL, "/prices-history", query, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get price history for token %s: %w", tokenID, err)
	}
	return history, nil
}
