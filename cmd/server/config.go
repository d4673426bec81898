package main

import (
	"fmt"
	"os"

	configtypes "github.com/datavents/datavents/internal/config"
	"go.yaml.in/yaml/v4"
)

type config struct {
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error
	ListenAddr string `yaml:"listen_addr"`
	Platforms  struct {
		Kalshi struct {
			APIURL       string `yaml:"api_url"`
			ElectionsURL string `yaml:"elections_url"`
			WSURL        string `yaml:"ws_url"`
		} `yaml:"kalshi"`
		PolyMarket struct {
			GammaURL string `yaml:"gamma_url"`
			ClobURL  string `yaml:"clob_url"`
			WSURL    string `yaml:"ws_url"`
		} `yaml:"polymarket"`
	} `yaml:"platforms"`
	Relay struct {
		ReadyTimeout    configtypes.Duration `yaml:"ready_timeout"`
		ShutdownTimeout configtypes.Duration `yaml:"shutdown_timeout"`
		SendBuffer      int                  `yaml:"send_buffer"`
	} `yaml:"relay"`
	Archive struct {
		Enabled       bool                 `yaml:"enabled"`
		FlushInterval configtypes.Duration `yaml:"flush_interval"`
		BufferSize    int                  `yaml:"buffer_size"`
		Database      struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
			PoolSize int    `yaml:"pool_size"`
			SSLMode  string `yaml:"ssl_mode"`
		} `yaml:"database"`
	} `yaml:"archive"`
}

func readConfig(configPath *string) (*config, error) {
	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", *configPath, err)
	}

	cfg := &config{}
	if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	if !cfg.Archive.Enabled {
		return nil
	}

	// Archive database
	db := &cfg.Archive.Database
	if db.Host == "" {
		return fmt.Errorf("archive.database.host is required")
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("archive.database.port must be between 1 and 65535")
	}
	if db.User == "" {
		return fmt.Errorf("archive.database.user is required")
	}
	if db.Password == "" {
		return fmt.Errorf("archive.database.password is required")
	}
	if db.Database == "" {
		return fmt.Errorf("archive.database.database is required")
	}

	return nil
}
