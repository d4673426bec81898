// Package server exposes the HTTP and websocket surface of the gateway.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/datavents/datavents/internal/history"
	"github.com/datavents/datavents/internal/kalshi/api"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/polymarket/gamma"
	"github.com/datavents/datavents/internal/relay"
	"github.com/datavents/datavents/internal/resolve"
	"github.com/datavents/datavents/internal/store"
	"github.com/datavents/datavents/internal/stream"
	"github.com/datavents/datavents/internal/subscription"
)

// Deps carries the wired collaborators for the HTTP surface.
type Deps struct {
	Elections        *elections.Client
	Trade            *api.Client
	Gamma            *gamma.Client
	KalshiResolver   *resolve.KalshiResolver
	AssetResolver    subscription.AssetResolver
	KalshiEngine     *history.KalshiEngine
	PolymarketEngine *history.PolymarketEngine
	Feed             relay.Feed
	RelayConfig      relay.Config
	Archive          *store.Writer // nil disables archiving
}

type Server struct {
	addr   string
	engine *gin.Engine
	log    *slog.Logger

	elections        *elections.Client
	trade            *api.Client
	gamma            *gamma.Client
	kalshiResolver   *resolve.KalshiResolver
	assetResolver    subscription.AssetResolver
	kalshiEngine     *history.KalshiEngine
	polymarketEngine *history.PolymarketEngine
	feed             relay.Feed
	relayCfg         relay.Config
	archive          *store.Writer
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func New(addr string, deps Deps, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:             addr,
		engine:           gin.New(),
		log:              log.With("component", "server"),
		elections:        deps.Elections,
		trade:            deps.Trade,
		gamma:            deps.Gamma,
		kalshiResolver:   deps.KalshiResolver,
		assetResolver:    deps.AssetResolver,
		kalshiEngine:     deps.KalshiEngine,
		polymarketEngine: deps.PolymarketEngine,
		feed:             deps.Feed,
		relayCfg:         deps.RelayConfig,
		archive:          deps.Archive,
	}

	s.engine.Use(gin.Recovery())

	apiGroup := s.engine.Group("/api")
	apiGroup.Use(corsMiddleware(), requestLogger(s.log))

	apiGroup.GET("/health", s.handleHealth)
	apiGroup.GET("/search", s.handleSearch)
	apiGroup.GET("/search/options", s.handleSearchOptions)
	apiGroup.GET("/event", s.handleGetEvent)
	apiGroup.POST("/event", s.handlePostEvent)
	apiGroup.GET("/market", s.handleGetMarket)
	apiGroup.GET("/market/history", s.handleMarketHistory)
	apiGroup.POST("/history", s.handlePostHistory)
	apiGroup.GET("/ws/dv", s.handleWebSocket)

	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("couldn't upgrade websocket", "remote", c.ClientIP(), "error", err)
		return
	}

	s.log.Info("ws open", "path", c.Request.URL.Path, "remote", c.ClientIP())

	feed := s.feed
	if s.archive != nil {
		feed = &archivingFeed{feed: feed, writer: s.archive}
	}

	session := relay.New(conn, feed, s.assetResolver, s.relayCfg, s.log)
	session.Serve(c.Request.Context())

	s.log.Info("ws closed", "remote", c.ClientIP())
}

// archivingFeed tees every forwarded event into the archive writer.
type archivingFeed struct {
	feed   relay.Feed
	writer *store.Writer
}

func (a *archivingFeed) Run(ctx context.Context, req *subscription.Request, onEvent func(stream.Event)) error {
	return a.feed.Run(ctx, req, func(ev stream.Event) {
		a.writer.Record(store.Event{
			ReceivedAt: ev.ReceivedAt,
			Vendor:     string(ev.Vendor),
			EventType:  ev.EventType,
			Payload:    ev.Payload,
		})
		onEvent(ev)
	})
}
