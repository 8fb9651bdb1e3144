package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is resolved from the environment. On Docker you'll want
// LISTEN_INTERFACE=0.0.0.0.
type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	ListenInterface string `env:"LISTEN_INTERFACE" envDefault:"127.0.0.1"`
	PublicDir       string `env:"PUBLIC_DIR" envDefault:"./public"`
	DevLogging      bool   `env:"DEV_LOGGING" envDefault:"false"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenInterface, strconv.Itoa(c.Port))
}
