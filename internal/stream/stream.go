// Package stream multiplexes the upstream vendor feeds into a single
// ordered event callback for one subscription.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	kalshiws "github.com/datavents/datavents/internal/kalshi/websocket"
	"github.com/datavents/datavents/internal/payload"
	polyws "github.com/datavents/datavents/internal/polymarket/websocket"
	"github.com/datavents/datavents/internal/subscription"
	"github.com/datavents/datavents/internal/vendor"
)

// Event is one vendor-tagged live event. Payload is the upstream frame,
// passed through verbatim; its schema belongs to the vendor.
type Event struct {
	Vendor     vendor.Vendor
	EventType  string
	ReceivedAt time.Time
	Payload    json.RawMessage
}

type Config struct {
	KalshiURL     string
	PolymarketURL string
}

// Client opens one upstream streaming session per selected vendor and
// forwards every event, in arrival order per vendor, to the callback.
type Client struct {
	cfg Config
	log *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		log: log.With("component", "stream"),
	}
}

// Run connects the feeds for req's vendors and blocks until ctx is
// cancelled or an upstream session fails. onEvent is called sequentially
// per vendor; it must not retain the payload past the call.
func (c *Client) Run(ctx context.Context, req *subscription.Request, onEvent func(Event)) error {
	g, ctx := errgroup.WithContext(ctx)

	if vendor.Contains(req.Vendors, vendor.Kalshi) {
		g.Go(func() error {
			return c.runKalshi(ctx, req, onEvent)
		})
	}
	if vendor.Contains(req.Vendors, vendor.Polymarket) {
		g.Go(func() error {
			return c.runPolymarket(ctx, req, onEvent)
		})
	}

	return g.Wait()
}

func (c *Client) runKalshi(ctx context.Context, req *subscription.Request, onEvent func(Event)) error {
	client, err := kalshiws.New(ctx, c.cfg.KalshiURL, c.log)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	tickers := payload.DedupePreserve(append(
		append([]string{}, req.KalshiMarketTickers...),
		append(req.KalshiEventTickers, req.TickersOrIDs...)...,
	))
	if err := client.Subscribe(ctx, []string{"ticker", "trade"}, tickers); err != nil {
		return err
	}

	for {
		raw, err := client.ReadRaw(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		eventType, err := kalshiws.MessageType(raw)
		if err != nil {
			c.log.Debug("unrecognized kalshi frame", "error", err)
			eventType = "message"
		}
		onEvent(Event{
			Vendor:     vendor.Kalshi,
			EventType:  eventType,
			ReceivedAt: time.Now(),
			Payload:    raw,
		})
	}
}

func (c *Client) runPolymarket(ctx context.Context, req *subscription.Request, onEvent func(Event)) error {
	client, err := polyws.New(ctx, c.cfg.PolymarketURL, c.log)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	assetIDs := req.PolymarketAssetIDs
	if len(assetIDs) == 0 {
		assetIDs = req.TickersOrIDs
	}
	if err := client.SubscribeMarket(ctx, assetIDs, true, nil); err != nil {
		return err
	}

	for {
		raw, err := client.ReadRaw(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		eventType, err := polyws.EventType(raw)
		if err != nil {
			c.log.Debug("unrecognized polymarket frame", "error", err)
			eventType = "message"
		}
		onEvent(Event{
			Vendor:     vendor.Polymarket,
			EventType:  eventType,
			ReceivedAt: time.Now(),
			Payload:    raw,
		})
	}
}
