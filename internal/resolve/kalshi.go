// Package resolve fills in the vendor-specific identifier bundles needed to
// address historical queries. Every lookup is best-effort: transport and
// parsing failures are swallowed and the next source is tried, so callers
// always get back the most complete bundle obtainable.
package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/datavents/datavents/internal/kalshi/api"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/payload"
)

// KalshiBundle is the key set needed to address a Kalshi historical query.
// Ticker is always present; SeriesTicker and MarketID are resolved
// progressively.
type KalshiBundle struct {
	Ticker       string
	SeriesTicker string
	MarketID     string
}

// Complete reports whether the bundle can address the forecast-history
// endpoint, which needs both the series ticker and the numeric market id.
func (b *KalshiBundle) Complete() bool {
	return b.SeriesTicker != "" && b.MarketID != ""
}

// Identifiers returns the bundle in the wire shape used by normalized
// responses.
func (b *KalshiBundle) Identifiers() map[string]any {
	return map[string]any{
		"ticker":        b.Ticker,
		"series_ticker": b.SeriesTicker,
		"market_id":     b.MarketID,
	}
}

// KalshiResolver resolves Kalshi identifier bundles through a cascading
// chain of upstream lookups.
type KalshiResolver struct {
	elections *elections.Client
	trade     *api.Client
	log       *slog.Logger
}

func NewKalshiResolver(e *elections.Client, t *api.Client, log *slog.Logger) *KalshiResolver {
	return &KalshiResolver{
		elections: e,
		trade:     t,
		log:       log.With("component", "kalshi_resolver"),
	}
}

type kalshiStep func(ctx context.Context, b *KalshiBundle)

// Resolve produces the most complete bundle obtainable for ticker, seeded
// with whatever the caller already supplied. Sources are tried in strict
// order and the chain stops as soon as both missing fields are known. It
// never fails; an incomplete bundle is returned for the caller to judge.
func (r *KalshiResolver) Resolve(ctx context.Context, ticker, seriesTicker, marketID string) *KalshiBundle {
	bundle := &KalshiBundle{
		Ticker:       strings.TrimSpace(ticker),
		SeriesTicker: strings.TrimSpace(seriesTicker),
		MarketID:     strings.TrimSpace(marketID),
	}

	steps := []kalshiStep{
		r.fromGuessedEvent,
		r.fromSeriesSearch,
		r.fromMarketSnapshot,
		r.fromTickerPrefix,
	}
	for _, step := range steps {
		if bundle.Complete() {
			break
		}
		step(ctx, bundle)
	}

	if !bundle.Complete() {
		r.log.Info("identifiers incomplete, trades fallback only",
			"ticker", bundle.Ticker,
			"series_ticker", bundle.SeriesTicker,
			"market_id", bundle.MarketID,
		)
	}
	return bundle
}

// fromGuessedEvent guesses the event ticker by stripping the trailing
// dash-delimited segment from the market ticker and fetches the v1 event.
func (r *KalshiResolver) fromGuessedEvent(ctx context.Context, b *KalshiBundle) {
	event, err := r.elections.GetEvent(ctx, guessEventTicker(b.Ticker))
	if err != nil {
		r.log.Debug("event guess lookup failed", "ticker", b.Ticker, "error", err)
		return
	}
	r.applyEvent(b, event)
}

// fromSeriesSearch searches series by the partially-known series ticker,
// then re-fetches the canonical event named by the first hit.
func (r *KalshiResolver) fromSeriesSearch(ctx context.Context, b *KalshiBundle) {
	if b.SeriesTicker == "" {
		return
	}

	page, err := r.elections.SearchSeries(ctx, b.SeriesTicker, 1)
	if err != nil || len(page.CurrentPage) == 0 {
		r.log.Debug("series search failed", "series_ticker", b.SeriesTicker, "error", err)
		return
	}
	eventTicker := page.CurrentPage[0].EventTicker
	if eventTicker == "" {
		return
	}

	event, err := r.elections.GetEvent(ctx, eventTicker)
	if err != nil {
		r.log.Debug("canonical event lookup failed", "event_ticker", eventTicker, "error", err)
		return
	}
	r.applyEvent(b, event)
}

// fromMarketSnapshot asks the trade API for the market snapshot and extracts
// identifier fields from whatever shape it returns: top-level, nested under
// "market", or within a "markets" list matched by ticker with a first-item
// fallback.
func (r *KalshiResolver) fromMarketSnapshot(ctx context.Context, b *KalshiBundle) {
	snapshot, err := r.trade.GetMarketRaw(ctx, b.Ticker)
	if err != nil {
		r.log.Debug("market snapshot lookup failed", "ticker", b.Ticker, "error", err)
		return
	}

	market := snapshot
	if nested := payload.AsObject(snapshot["market"]); nested != nil {
		market = nested
	} else if list, ok := snapshot["markets"].([]any); ok && len(list) > 0 {
		var picked map[string]any
		for _, item := range list {
			obj := payload.AsObject(item)
			if obj == nil {
				continue
			}
			if picked == nil {
				picked = obj
			}
			t := payload.FirstString([]string{"ticker", "ticker_name"}, obj)
			if t == b.Ticker {
				picked = obj
				break
			}
		}
		if picked != nil {
			market = picked
		}
	}

	if b.SeriesTicker == "" {
		b.SeriesTicker = payload.FirstString([]string{"series_ticker", "seriesTicker"}, market)
	}
	if b.MarketID == "" {
		b.MarketID = payload.FirstString([]string{"id", "market_id"}, market)
	}
}

// fromTickerPrefix derives the series ticker as the prefix of the market
// ticker before the first '-' or '_'. Pure string heuristic, no I/O.
func (r *KalshiResolver) fromTickerPrefix(_ context.Context, b *KalshiBundle) {
	if b.SeriesTicker != "" {
		return
	}

	guess := b.Ticker
	if i := strings.IndexByte(guess, '-'); i >= 0 {
		guess = guess[:i]
	} else if i := strings.IndexByte(guess, '_'); i >= 0 {
		guess = guess[:i]
	}
	guess = strings.TrimSpace(guess)
	if guess != "" {
		b.SeriesTicker = guess
		r.log.Info("derived series ticker", "series_ticker", guess, "ticker", b.Ticker)
	}
}

func (r *KalshiResolver) applyEvent(b *KalshiBundle, event *elections.Event) {
	if b.SeriesTicker == "" && event.SeriesTicker != "" {
		b.SeriesTicker = event.SeriesTicker
	}
	if b.MarketID == "" {
		for i := range event.Markets {
			if event.Markets[i].Matches(b.Ticker) && event.Markets[i].ID != "" {
				b.MarketID = event.Markets[i].ID
				break
			}
		}
	}
}

// guessEventTicker strips the trailing dash-delimited segment from a market
// ticker, e.g. KXHIGHNY-25AUG30-B85 -> KXHIGHNY-25AUG30.
func guessEventTicker(ticker string) string {
	if i := strings.LastIndexByte(ticker, '-'); i > 0 {
		return ticker[:i]
	}
	return ticker
}
