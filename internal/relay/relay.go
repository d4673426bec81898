// Package relay bridges one downstream websocket connection to one upstream
// streaming session.
//
// Two execution contexts are active per session: the foreground loop reads
// client frames one at a time, and exactly one background task drives the
// upstream feed. They share only the session's cancellation context and the
// send channel; event writes are offloaded to a pump goroutine so the feed
// loop never stalls on a slow client. Delivery is best-effort, at-most-once,
// in upstream emission order.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/datavents/datavents/internal/normalize"
	"github.com/datavents/datavents/internal/stream"
	"github.com/datavents/datavents/internal/subscription"
	"github.com/datavents/datavents/internal/vendor"
)

// Error codes carried by error frames.
const (
	CodeInvalidJSON        = "invalid_json"
	CodeInvalidPayload     = "invalid_payload"
	CodeUnexpectedMessage  = "unexpected_message"
	CodeInvalidSubscribe   = "invalid_subscribe"
	CodeUnsupportedMessage = "unsupported_message"
	CodeUpstreamFailure    = "upstream_failure"
	CodeInternalError      = "internal_error"
)

const (
	DefaultReadyTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultSendBuffer      = 256
)

// Conn is the downstream connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Feed is the upstream multiplexed streaming session. Run blocks until ctx
// is cancelled (returning nil) or the upstream fails (returning the error).
type Feed interface {
	Run(ctx context.Context, req *subscription.Request, onEvent func(stream.Event)) error
}

type Config struct {
	ReadyTimeout    time.Duration
	ShutdownTimeout time.Duration
	SendBuffer      int
}

func (c *Config) withDefaults() {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
}

// Session owns one downstream connection and at most one background
// streaming task. It never outlives the connection.
type Session struct {
	conn     Conn
	feed     Feed
	resolver subscription.AssetResolver
	cfg      Config
	log      *slog.Logger

	// Serializes all frame writes: the foreground loop, the event pump,
	// and the background task's failure report share the connection.
	writeMu sync.Mutex
}

func New(conn Conn, feed Feed, resolver subscription.AssetResolver, cfg Config, log *slog.Logger) *Session {
	cfg.withDefaults()
	return &Session{
		conn:     conn,
		feed:     feed,
		resolver: resolver,
		cfg:      cfg,
		log:      log.With("component", "relay"),
	}
}

// Serve runs the session to completion: subscribe handshake, event
// forwarding, control frames, teardown. It always closes the connection
// before returning.
func (s *Session) Serve(ctx context.Context) {
	defer s.conn.Close()

	req, ok := s.handshake(ctx)
	if !ok {
		return
	}

	s.writeInfo("subscribed", map[string]any{"vendors": vendor.Strings(req.Vendors)})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sendCh := make(chan []byte, s.cfg.SendBuffer)
	ready := make(chan struct{})
	done := make(chan struct{})

	go s.runFeed(sessionCtx, cancel, req, sendCh, ready, done)
	go s.pump(sessionCtx, cancel, sendCh)

	select {
	case <-ready:
	case <-time.After(s.cfg.ReadyTimeout):
		s.writeError(CodeInternalError, "Failed to initialize upstream session", nil)
		cancel()
		s.awaitDone(done, time.Second)
		return
	}

	s.readLoop(cancel)

	cancel()
	s.awaitDone(done, s.cfg.ShutdownTimeout)
}

// handshake reads and validates the first frame. Any violation yields a
// typed error frame and no session state.
func (s *Session) handshake(ctx context.Context) (*subscription.Request, bool) {
	_, frame, err := s.conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	var raw any
	if err := json.Unmarshal(frame, &raw); err != nil {
		s.writeError(CodeInvalidJSON, "First message must be JSON", map[string]any{"frame": string(frame)})
		return nil, false
	}

	body, ok := raw.(map[string]any)
	if !ok {
		s.writeError(CodeInvalidPayload, "First message must be a JSON object", nil)
		return nil, false
	}

	if messageType(body) != "subscribe" {
		s.writeError(CodeUnexpectedMessage, "First message must be type=subscribe", nil)
		return nil, false
	}

	req, subErr := subscription.Build(ctx, body, s.resolver)
	if subErr != nil {
		s.writeError(CodeInvalidSubscribe, subErr.Message, subErr.Details)
		return nil, false
	}

	return req, true
}

// runFeed is the background task. It publishes readiness, drives the
// upstream session, reports an upstream failure once, and requests
// cancellation on exit. Closing the connection unblocks the foreground
// read so teardown cannot deadlock.
func (s *Session) runFeed(ctx context.Context, cancel context.CancelFunc, req *subscription.Request, sendCh chan<- []byte, ready, done chan struct{}) {
	defer close(done)
	defer s.conn.Close()
	defer cancel()

	close(ready)

	err := s.feed.Run(ctx, req, func(ev stream.Event) {
		if ctx.Err() != nil {
			return
		}
		data, err := normalize.EventPayload(ev)
		if err != nil {
			s.log.Warn("couldn't serialize event", "vendor", ev.Vendor, "error", err)
			return
		}
		select {
		case sendCh <- data:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error("upstream session failed", "error", err)
		s.writeError(CodeUpstreamFailure, "Upstream websocket error", map[string]any{"error": err.Error()})
	}
}

// pump drains the send channel onto the connection. A write failure means
// the downstream side is gone: cancellation is requested and forwarding
// stops silently.
func (s *Session) pump(ctx context.Context, cancel context.CancelFunc, sendCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sendCh:
			if err := s.writeEvent(ctx, data); err != nil {
				cancel()
				return
			}
		}
	}
}

// writeEvent writes one event frame unless cancellation has been observed.
// The check happens under the write lock, so any frame serialized after a
// post-cancel control frame sees the cancellation and is dropped.
func (s *Session) writeEvent(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if ctx.Err() != nil {
		return nil
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop handles client frames after the handshake until disconnect or
// an unsubscribe instruction. Malformed frames are non-fatal.
func (s *Session) readLoop(cancel context.CancelFunc) {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var raw any
		if err := json.Unmarshal(frame, &raw); err != nil {
			s.writeError(CodeInvalidJSON, "Messages must be JSON", map[string]any{"frame": string(frame)})
			continue
		}
		body, ok := raw.(map[string]any)
		if !ok {
			s.writeError(CodeInvalidPayload, "Messages must be JSON objects", nil)
			continue
		}

		if messageType(body) == "unsubscribe" {
			// Cancel before acknowledging: buffered events that reach
			// the connection after the ack would violate ordering.
			cancel()
			s.writeInfo("unsubscribed", nil)
			return
		}
		s.writeError(CodeUnsupportedMessage, "Only unsubscribe is supported after subscribe", nil)
	}
}

func (s *Session) awaitDone(done <-chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("background task did not exit in time")
	}
}

func (s *Session) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) writeError(code, message string, details map[string]any) {
	frame := map[string]any{"type": "error", "error": code, "message": message}
	if len(details) > 0 {
		frame["details"] = details
	}
	s.writeJSON(frame)
}

func (s *Session) writeInfo(message string, extra map[string]any) {
	frame := map[string]any{"type": "info", "message": message}
	for k, v := range extra {
		frame[k] = v
	}
	s.writeJSON(frame)
}

// writeJSON is best-effort: a closed connection is an expected outcome and
// never surfaces as an error.
func (s *Session) writeJSON(frame map[string]any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.Warn("couldn't marshal frame", "error", err)
		return
	}
	if err := s.writeRaw(data); err != nil {
		s.log.Debug("frame write failed", "error", err)
	}
}

func messageType(body map[string]any) string {
	t, _ := body["type"].(string)
	return strings.ToLower(strings.TrimSpace(t))
}
