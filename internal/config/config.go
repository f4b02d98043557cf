package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Gateway holds the payment gateway connection settings.
type Gateway struct {
	BaseURL      string        `env:"BASE_URL"`
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// Config is the full process configuration, read from the environment.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Currency  string `env:"ORDER_CURRENCY" envDefault:"INR"`
	ReturnURL string `env:"PAYMENT_RETURN_URL"`

	// PostgresDSN empty means in-memory repositories with seeded inventory,
	// which is the local development mode.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// KafkaBrokers empty disables the event relay; domain events still fan
	// out on the in-process bus.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"order-events"`

	Gateway Gateway `envPrefix:"GATEWAY_"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
