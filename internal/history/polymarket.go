package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datavents/datavents/internal/payload"
	"github.com/datavents/datavents/internal/polymarket/clob"
	"github.com/datavents/datavents/internal/polymarket/gamma"
	"github.com/datavents/datavents/internal/resolve"
)

// maxChunkSeconds is the widest window the prices-history endpoint accepts
// per request (~15 days).
const maxChunkSeconds = 15 * 24 * 3600

// ChunkStrategy names the chunking applied to Polymarket fetches, reported
// to the normalization boundary.
const ChunkStrategy = "chunked<=15d"

// ErrNoTokenID is returned when neither a clob token id nor a usable last
// price can be found for the market.
var ErrNoTokenID = errors.New("no clob_token_ids found for market")

var lastPriceKeys = []string{"lastTradePrice", "lastPrice", "price", "mid", "last_price"}

// PolymarketEngine reconstructs Polymarket price series from the chunked
// prices-history endpoint, degrading to a synthetic two-point series when
// no series data is obtainable.
type PolymarketEngine struct {
	clob  *clob.Client
	gamma *gamma.Client
	log   *slog.Logger
	now   func() time.Time
}

func NewPolymarketEngine(c *clob.Client, g *gamma.Client, log *slog.Logger) *PolymarketEngine {
	return &PolymarketEngine{
		clob:  c,
		gamma: g,
		log:   log.With("component", "polymarket_history"),
		now:   time.Now,
	}
}

// PolymarketRequest addresses one market. Market is the caller-supplied
// payload (may be nil); ID and Slug are consulted when the payload carries
// no token ids.
type PolymarketRequest struct {
	Market map[string]any
	ID     *int64
	Slug   string
}

// PolymarketResult bundles the series with how it was obtained.
type PolymarketResult struct {
	Points    []Point
	TokenID   string // empty for synthetic series
	Synthetic bool
}

// Reconstruct resolves a clob token id, pages the price history in chunks
// of at most 15 days, and merges the chunks into one ordered, deduplicated
// series. Without a token id it degrades to a two-point series from the
// market's last price; without a price either it fails with ErrNoTokenID.
func (e *PolymarketEngine) Reconstruct(ctx context.Context, req PolymarketRequest, win Window) (*PolymarketResult, error) {
	tokenIDs := resolve.FindTokenIDs(req.Market)

	var snapshot map[string]any
	if len(tokenIDs) == 0 {
		snapshot = e.fetchSnapshot(ctx, req)
		tokenIDs = resolve.FindTokenIDs(snapshot)
	}

	if len(tokenIDs) == 0 {
		if points, ok := e.syntheticPoints(req.Market, snapshot); ok {
			return &PolymarketResult{Points: points, Synthetic: true}, nil
		}
		return nil, ErrNoTokenID
	}
	tokenID := tokenIDs[0]

	tree := newPointTree()
	if err := e.chunkedPoints(ctx, tokenID, win, tree); err != nil {
		return nil, fmt.Errorf("polymarket history error: %w", err)
	}

	if tree.len() == 0 {
		if points, ok := e.syntheticPoints(req.Market, snapshot); ok {
			return &PolymarketResult{Points: points, TokenID: tokenID, Synthetic: true}, nil
		}
	}

	return &PolymarketResult{Points: tree.points(), TokenID: tokenID}, nil
}

// chunkedPoints walks [win.Start, win.End] in chunks of at most 15 days,
// filtering each chunk's samples to the window and keeping the first point
// seen per timestamp across chunk boundaries.
func (e *PolymarketEngine) chunkedPoints(ctx context.Context, tokenID string, win Window, tree *pointTree) error {
	for cur := win.Start; cur < win.End; {
		chunkEnd := cur + maxChunkSeconds
		if chunkEnd > win.End {
			chunkEnd = win.End
		}

		history, err := e.clob.PricesHistory(ctx, tokenID, cur, chunkEnd)
		if err != nil {
			return err
		}

		for i := range history.History {
			ts, err := history.History[i].T.Int64()
			if err != nil {
				continue
			}
			p, err := history.History[i].P.Float64()
			if err != nil {
				continue
			}
			if ts < win.Start || ts > win.End {
				continue
			}
			tree.putIfAbsent(Point{T: toMillis(ts), P: p})
		}

		cur = chunkEnd
	}
	return nil
}

func (e *PolymarketEngine) fetchSnapshot(ctx context.Context, req PolymarketRequest) map[string]any {
	if req.ID != nil {
		snapshot, err := e.gamma.GetMarketByID(ctx, *req.ID)
		if err == nil {
			return snapshot
		}
		e.log.Debug("market lookup by id failed", "id", *req.ID, "error", err)
	}
	if req.Slug != "" {
		snapshot, err := e.gamma.GetMarketBySlug(ctx, req.Slug)
		if err == nil {
			return snapshot
		}
		e.log.Debug("market lookup by slug failed", "slug", req.Slug, "error", err)
	}
	return nil
}

// syntheticPoints builds the two-point placeholder series: the market's
// last known price held flat over the hour ending now.
func (e *PolymarketEngine) syntheticPoints(sources ...map[string]any) ([]Point, bool) {
	lastPrice, ok := payload.FirstFloat(lastPriceKeys, sources...)
	if !ok {
		return nil, false
	}

	nowMs := e.now().Unix() * 1000
	return []Point{
		{T: nowMs - 3600*1000, P: lastPrice},
		{T: nowMs, P: lastPrice},
	}, true
}
