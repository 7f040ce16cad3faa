package main

import (
	"time"

	"github.com/xtding233/payout-engine/internal/config"
)

// serverConfig is read from the process environment.
type serverConfig struct {
	HTTPAddr      string        `env:"PAYOUT_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr      string        `env:"PAYOUT_GRPC_ADDR" envDefault:":8081"`
	ConfigDir     string        `env:"PAYOUT_CONFIG_DIR" envDefault:"config"`
	LogLevel      string        `env:"PAYOUT_LOG_LEVEL" envDefault:"info"`
	LogDev        bool          `env:"PAYOUT_LOG_DEV" envDefault:"false"`
	WatchInterval time.Duration `env:"PAYOUT_WATCH_INTERVAL" envDefault:"5s"` // reload debounce; 0 disables hot reload
	Preload       []string      `env:"PAYOUT_PRELOAD" envSeparator:","`       // "game" or "game/mode"
	MaxSpins      int           `env:"PAYOUT_MAX_SPINS" envDefault:"10000000"`
	MaxWorkers    int           `env:"PAYOUT_MAX_WORKERS" envDefault:"64"`
	ShutdownGrace time.Duration `env:"PAYOUT_SHUTDOWN_GRACE" envDefault:"10s"`
}

func loadConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}
