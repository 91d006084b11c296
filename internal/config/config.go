// Package config loads per-service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// UserService configures cmd/user-service.
type UserService struct {
	Addr        string `env:"ADDR" env-default:":8081"`
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	NatsURL     string `env:"NATS_URL"`
}

// CalendarService configures cmd/calendar-service.
type CalendarService struct {
	Addr         string `env:"ADDR" env-default:":8082"`
	DatabaseURL  string `env:"DATABASE_URL" env-required:"true"`
	NatsURL      string `env:"NATS_URL"`
	ConsumerName string `env:"CONSUMER_NAME" env-default:"calendar-service"`
	ProviderURL  string `env:"PROVIDER_SERVICE_URL" env-default:"http://localhost:8083"`
}

// ProviderService configures cmd/provider-service.
type ProviderService struct {
	Addr        string `env:"ADDR" env-default:":8083"`
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
}

// Load populates cfg from the environment.
func Load(cfg any) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return nil
}
