package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	// DBDSN is optional: when empty the server runs with in-memory
	// persistence only.
	DBDSN string `env:"DB_DSN"`

	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"paperprop"`
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	WSOrigin string `env:"WS_ORIGIN" envDefault:"*"`

	FeedInterval time.Duration `env:"FEED_INTERVAL" envDefault:"500ms"`
	FeedSeed     int64         `env:"FEED_SEED"`
	StaleAfter   time.Duration `env:"FEED_STALE_AFTER" envDefault:"3s"`

	OpeningBalance string `env:"OPENING_BALANCE" envDefault:"5000000"`
}

// Load reads configuration from the environment, layering in a .env file
// when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
