// Package websocket streams market events from Polymarket's CLOB feed.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	PingInterval        = 50 * time.Second
)

type Client struct {
	conn     *websocket.Conn
	log      *slog.Logger
	stopPing chan struct{}
}

type Auth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type MarketSubscription struct {
	Auth        *Auth    `json:"auth"`
	AssetsIDs   []string `json:"assets_ids"`
	Type        string   `json:"type"`
	InitialDump *bool    `json:"initial_dump"`
}

func New(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("couldn't dial %s: %w", url, err)
	}
	log.Info("connected to polymarket feed", "url", url, "status", resp.Status)

	c := &Client{
		conn:     conn,
		log:      log.With("component", "polymarket_ws"),
		stopPing: make(chan struct{}),
	}
	go c.pingLoop()

	return c, nil
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			deadline := time.Now().Add(DefaultWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Warn("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	close(c.stopPing)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCloseTimeout)
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil {
		c.log.Warn("failed to send close message", "error", err)
	}

	return c.conn.Close()
}

// SubscribeMarket subscribes to the market channel for the given token ids.
func (c *Client) SubscribeMarket(ctx context.Context, tokenIDs []string, initialDump bool, auth *Auth) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)

	sub := MarketSubscription{
		Auth:        auth,
		AssetsIDs:   tokenIDs,
		Type:        "market",
		InitialDump: &initialDump,
	}
	return c.conn.WriteJSON(sub)
}

type result struct {
	RawMessage []byte
	Error      error
}

// ReadRaw blocks for the next frame and returns it unparsed. Cancelling ctx
// unblocks the read by expiring the connection's read deadline.
func (c *Client) ReadRaw(ctx context.Context) ([]byte, error) {
	resultCh := make(chan result, 1)

	go func() {
		_, msg, err := c.conn.ReadMessage()
		resultCh <- result{RawMessage: msg, Error: err}
	}()

	select {
	case <-ctx.Done():
		if err := c.conn.SetReadDeadline(time.Now()); err != nil {
			c.log.Warn("failed to set read deadline", "error", err)
		}
		return nil, fmt.Errorf("reading message: %w", ctx.Err())
	case res := <-resultCh:
		if res.Error != nil {
			return nil, fmt.Errorf("couldn't read message: %w", res.Error)
		}
		return res.RawMessage, nil
	}
}

const (
	BookEvent           = "book"
	PriceChangeEvent    = "price_change"
	TickSizeChangeEvent = "tick_size_change"
	BestBidAskEvent     = "best_bid_ask"
	LastTradePriceEvent = "last_trade_price"
	NewMarketEvent      = "new_market"
	MarketResolvedEvent = "market_resolved"
)

type envelope struct {
	EventType string `json:"event_type"`
}

// EventType extracts the event_type tag from a raw frame. Frames can be a
// single event object or a batch list; for a batch the first entry's type
// tags the whole frame.
func EventType(msg []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err == nil && env.EventType != "" {
		return env.EventType, nil
	}

	var batch []envelope
	if err := json.Unmarshal(msg, &batch); err == nil && len(batch) > 0 && batch[0].EventType != "" {
		return batch[0].EventType, nil
	}

	return "", fmt.Errorf("couldn't find event type")
}
