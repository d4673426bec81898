package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/datavents/datavents/internal/kalshi/api"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/resolve"
)

const (
	// maxTradePages bounds cursor paging through the trade-tick endpoint
	// (roughly 2k trades at 100 per page).
	maxTradePages = 20
	tradePageSize = 100
)

// KalshiEngine reconstructs Kalshi price series: the pre-aggregated
// forecast-history endpoint first, raw trade-tick aggregation as fallback.
type KalshiEngine struct {
	elections *elections.Client
	trade     *api.Client
	log       *slog.Logger
}

func NewKalshiEngine(e *elections.Client, t *api.Client, log *slog.Logger) *KalshiEngine {
	return &KalshiEngine{
		elections: e,
		trade:     t,
		log:       log.With("component", "kalshi_history"),
	}
}

// Reconstruct produces the ordered, deduplicated series for the bundle over
// win. When both the forecast source and the trades fallback yield nothing,
// the error carries the primary source's failure if there was one; Kalshi
// has no synthetic placeholder path.
func (e *KalshiEngine) Reconstruct(ctx context.Context, bundle *resolve.KalshiBundle, win Window) ([]Point, error) {
	tree := newPointTree()

	var primaryErr error
	if bundle.Complete() {
		if err := e.forecastPoints(ctx, bundle, win, tree); err != nil {
			primaryErr = err
			e.log.Warn("forecast history failed",
				"ticker", bundle.Ticker,
				"series_ticker", bundle.SeriesTicker,
				"market_id", bundle.MarketID,
				"error", err,
			)
		}
	}

	if tree.len() == 0 {
		if err := e.tradePoints(ctx, bundle.Ticker, win, tree); err != nil {
			e.log.Error("trades fallback failed", "ticker", bundle.Ticker, "error", err, "primary_error", primaryErr)
			if primaryErr != nil {
				return nil, fmt.Errorf("kalshi history error: %w", primaryErr)
			}
			return nil, fmt.Errorf("kalshi history error: %w", err)
		}
	}

	if tree.len() == 0 {
		if primaryErr != nil {
			return nil, fmt.Errorf("kalshi history error: %w", primaryErr)
		}
		return nil, fmt.Errorf("kalshi history error: no data for %s in window", bundle.Ticker)
	}

	return tree.points(), nil
}

// forecastPoints loads the pre-aggregated series. Each sample contributes
// its end-of-period timestamp (ms) and its percentage value converted to a
// probability.
func (e *KalshiEngine) forecastPoints(ctx context.Context, bundle *resolve.KalshiBundle, win Window, tree *pointTree) error {
	forecast, err := e.elections.GetForecastHistory(ctx, elections.ForecastHistoryOptions{
		SeriesTicker: bundle.SeriesTicker,
		MarketID:     bundle.MarketID,
		StartTS:      win.Start,
		EndTS:        win.End,
		Interval:     win.Interval,
	})
	if err != nil {
		return err
	}

	for i := range forecast.Points {
		ts, ok := forecast.Points[i].When()
		if !ok {
			continue
		}
		value, ok := forecast.Points[i].Value()
		if !ok {
			continue
		}
		// numerical_forecast is in percent
		tree.put(Point{T: toMillis(ts), P: value / 100})
	}
	return nil
}

// tradePoints pages through raw trade ticks and aggregates them into
// interval buckets: each tick lands in the bucket ending at the ceiling of
// its timestamp, and later ticks overwrite earlier ones within a bucket.
func (e *KalshiEngine) tradePoints(ctx context.Context, ticker string, win Window, tree *pointTree) error {
	cursor := ""
	for page := 0; page < maxTradePages; page++ {
		trades, err := e.trade.GetTrades(ctx, api.TradesOptions{
			Ticker: ticker,
			Cursor: cursor,
			Limit:  tradePageSize,
			MinTS:  win.Start,
			MaxTS:  win.End,
		})
		if err != nil {
			return err
		}
		if len(trades.Trades) == 0 {
			break
		}

		for i := range trades.Trades {
			ts, ok := trades.Trades[i].Time()
			if !ok {
				continue
			}
			if ts < win.Start || ts > win.End {
				continue
			}
			bucket := ts - ts%win.Interval + win.Interval
			tree.put(Point{T: toMillis(bucket), P: trades.Trades[i].Price.Float64()})
		}

		cursor = trades.Cursor
		if cursor == "" {
			break
		}
	}
	return nil
}
