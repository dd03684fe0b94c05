package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds the process settings read from the environment.
type Env struct {
	ConfigPath  string `env:"CONFIG_PATH" envDefault:"config.yaml"`
	WatchConfig bool   `env:"WATCH_CONFIG"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogFile  string `env:"LOG_FILE"`

	CooldownStore      string `env:"COOLDOWN_STORE" envDefault:"memory" validate:"oneof=memory file redis"`
	CooldownFile       string `env:"COOLDOWN_FILE" envDefault:"cooldowns.json"`
	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	PerInvokerCooldown bool   `env:"PER_INVOKER_COOLDOWN"`

	FunctionTimeout time.Duration `env:"FUNCTION_TIMEOUT" envDefault:"5s"`
	MetricsAddr     string        `env:"METRICS_ADDR"`
}

// LoadEnv loads .env files (the working directory's .env when none are
// given) into the process environment and parses Env from it. Missing files
// are not an error.
func LoadEnv(files ...string) (*Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validate.Struct(e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &e, nil
}
