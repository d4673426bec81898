package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/datavents/datavents/internal/history"
	"github.com/datavents/datavents/internal/kalshi/api"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/polymarket/clob"
	"github.com/datavents/datavents/internal/polymarket/gamma"
	"github.com/datavents/datavents/internal/relay"
	"github.com/datavents/datavents/internal/resolve"
	"github.com/datavents/datavents/internal/server"
	"github.com/datavents/datavents/internal/store"
	"github.com/datavents/datavents/internal/stream"
)

const (
	defaultKalshiWSURL     = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	defaultPolymarketWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
)

func main() {
	configPath := flag.String("config", "configs/server/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	electionsClient := elections.New(cfg.Platforms.Kalshi.ElectionsURL)
	tradeClient := api.New(cfg.Platforms.Kalshi.APIURL)
	gammaClient := gamma.New(cfg.Platforms.PolyMarket.GammaURL)
	clobClient := clob.New(cfg.Platforms.PolyMarket.ClobURL)

	kalshiWSURL := cfg.Platforms.Kalshi.WSURL
	if kalshiWSURL == "" {
		kalshiWSURL = defaultKalshiWSURL
	}
	polymarketWSURL := cfg.Platforms.PolyMarket.WSURL
	if polymarketWSURL == "" {
		polymarketWSURL = defaultPolymarketWSURL
	}

	feed := stream.NewClient(stream.Config{
		KalshiURL:     kalshiWSURL,
		PolymarketURL: polymarketWSURL,
	}, logger)

	var archiveWriter *store.Writer
	if cfg.Archive.Enabled {
		db := cfg.Archive.Database
		archive, err := store.Open(ctx, store.PoolConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Database,
			PoolSize: db.PoolSize,
			SSLMode:  db.SSLMode,
		}, logger)
		if err != nil {
			log.Fatalf("Couldn't connect to archive database: %v", err)
		}
		defer archive.Close()

		flushInterval := cfg.Archive.FlushInterval.Duration()
		if flushInterval <= 0 {
			flushInterval = 5 * time.Second
		}
		archiveWriter = store.NewWriter(archive, flushInterval, cfg.Archive.BufferSize, logger)
		go archiveWriter.Start(ctx)
	}

	srv := server.New(cfg.ListenAddr, server.Deps{
		Elections:        electionsClient,
		Trade:            tradeClient,
		Gamma:            gammaClient,
		KalshiResolver:   resolve.NewKalshiResolver(electionsClient, tradeClient, logger),
		AssetResolver:    resolve.NewPolymarketResolver(gammaClient, clobClient, logger),
		KalshiEngine:     history.NewKalshiEngine(electionsClient, tradeClient, logger),
		PolymarketEngine: history.NewPolymarketEngine(clobClient, gammaClient, logger),
		Feed:             feed,
		RelayConfig: relay.Config{
			ReadyTimeout:    cfg.Relay.ReadyTimeout.Duration(),
			ShutdownTimeout: cfg.Relay.ShutdownTimeout.Duration(),
			SendBuffer:      cfg.Relay.SendBuffer,
		},
		Archive: archiveWriter,
	}, logger)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
