// Package subscription builds typed subscription requests out of the loose
// JSON payloads downstream clients send over the relay.
package subscription

import (
	"context"

	"github.com/datavents/datavents/internal/payload"
	"github.com/datavents/datavents/internal/vendor"
)

// Request is a validated live-feed subscription.
type Request struct {
	Vendors             []vendor.Vendor
	TickersOrIDs        []string
	KalshiMarketTickers []string
	KalshiEventTickers  []string
	PolymarketAssetIDs  []string
}

// Error is a subscribe validation failure, reported to the client as an
// invalid_subscribe frame.
type Error struct {
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

// AssetResolver discovers Polymarket token ids for payloads that name a
// market without supplying asset ids directly.
type AssetResolver interface {
	ResolveAssetIDs(ctx context.Context, body, market map[string]any) []string
}

var (
	kalshiMarketKeys = []string{"kalshi_market_tickers", "kalshiMarketTickers", "kalshi_tickers", "kalshiTickers"}
	kalshiTokenKeys  = []string{"ticker", "market_ticker", "marketTicker", "kalshi_market_ticker"}
	kalshiEventKeys  = []string{"kalshi_event_tickers", "kalshiEventTickers"}
	polymarketKeys   = []string{"polymarket_assets_ids", "polymarketAssetsIds", "assets_ids", "assetsIds"}
	genericKeys      = []string{"tickers_or_ids", "tickersOrIds"}
)

// ExtractVendors resolves the vendor selection from provider/vendors tokens
// at the top level and inside the nested market object.
func ExtractVendors(body map[string]any) []vendor.Vendor {
	var tokens []string
	tokens = append(tokens, payload.CoerceStringList(body["provider"])...)
	tokens = append(tokens, payload.CoerceStringList(body["vendors"])...)
	if market := payload.AsObject(body["market"]); market != nil {
		tokens = append(tokens, payload.CoerceStringList(market["provider"])...)
	}
	return vendor.FromTokens(tokens)
}

// Build validates a subscribe payload and assembles the Request. resolver
// may be nil; it is only consulted when Polymarket is selected and the
// payload carries no asset ids.
func Build(ctx context.Context, body map[string]any, resolver AssetResolver) (*Request, *Error) {
	marketValue, hasMarket := body["market"]
	market := payload.AsObject(marketValue)
	if hasMarket && marketValue != nil && market == nil {
		return nil, &Error{Message: "market must be a JSON object when provided"}
	}

	vendors := ExtractVendors(body)
	if len(vendors) == 0 {
		return nil, &Error{Message: "provider must identify at least one vendor"}
	}

	tickersOrIDs := payload.DedupePreserve(append(
		payload.CollectStrings(body, genericKeys...),
		payload.CollectStrings(market, genericKeys...)...,
	))

	kalshiMarketTickers := payload.DedupePreserve(append(
		payload.CollectStrings(body, kalshiMarketKeys...),
		payload.CollectStrings(market, append(kalshiMarketKeys, kalshiTokenKeys...)...)...,
	))

	kalshiEventTickers := payload.DedupePreserve(append(
		payload.CollectStrings(body, kalshiEventKeys...),
		payload.CollectStrings(market, append(kalshiEventKeys, "event_ticker", "eventTicker")...)...,
	))

	polymarketAssetIDs := payload.DedupePreserve(append(
		payload.CollectStrings(body, polymarketKeys...),
		payload.CollectStrings(market, polymarketKeys...)...,
	))

	if vendor.Contains(vendors, vendor.Polymarket) && len(polymarketAssetIDs) == 0 && resolver != nil {
		polymarketAssetIDs = payload.DedupePreserve(resolver.ResolveAssetIDs(ctx, body, market))
	}

	if vendor.Contains(vendors, vendor.Polymarket) && len(polymarketAssetIDs) == 0 && len(tickersOrIDs) == 0 {
		return nil, &Error{
			Message: "polymarket assets_ids required when subscribing to polymarket",
			Details: map[string]any{"hint": "include market.asset_id or polymarket_assets_ids"},
		}
	}

	if vendor.Contains(vendors, vendor.Kalshi) && len(kalshiMarketTickers) == 0 && len(kalshiEventTickers) == 0 && len(tickersOrIDs) == 0 {
		return nil, &Error{
			Message: "kalshi tickers required when subscribing to kalshi",
			Details: map[string]any{"hint": "include market.ticker or kalshi_market_tickers"},
		}
	}

	return &Request{
		Vendors:             vendors,
		TickersOrIDs:        tickersOrIDs,
		KalshiMarketTickers: kalshiMarketTickers,
		KalshiEventTickers:  kalshiEventTickers,
		PolymarketAssetIDs:  polymarketAssetIDs,
	}, nil
}
