// Package websocket streams market events from Kalshi's trade feed.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	HandshakeTimeout    = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Command is a control message sent to the feed.
type Command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// DataMessage is one event frame from the feed.
type DataMessage struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Msg  json.RawMessage `json:"msg"`
}

type Client struct {
	conn  *websocket.Conn
	log   *slog.Logger
	cmdID atomic.Int64
}

func New(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("couldn't dial %s: %w", url, err)
	}
	log.Info("connected to kalshi feed", "url", url, "status", resp.Status)

	return &Client{
		conn: conn,
		log:  log.With("component", "kalshi_ws"),
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
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

// Subscribe sends a subscribe command for the given channels and market
// tickers. An empty ticker list subscribes the channels globally.
func (c *Client) Subscribe(ctx context.Context, channels, marketTickers []string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	c.conn.SetWriteDeadline(deadline)

	cmd := Command{
		ID:  c.cmdID.Add(1),
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channels:      channels,
			MarketTickers: marketTickers,
		},
	}
	return c.conn.WriteJSON(cmd)
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

// MessageType extracts the type tag from a raw frame.
func MessageType(msg []byte) (string, error) {
	var data DataMessage
	if err := json.Unmarshal(msg, &data); err != nil {
		return "", fmt.Errorf("couldn't parse message: %w", err)
	}
	if data.Type == "" {
		return "", fmt.Errorf("couldn't find message type")
	}
	return data.Type, nil
}
