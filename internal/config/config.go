// Package config содержит логику чтения конфигурации сервиса проката.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultBaseURL        = "http://localhost:3000"
	defaultCurrency       = "IDR"
	defaultMailFrom       = "invoices@rentalhub.local"
	defaultCompanyMailbox = "admin@rentalhub.local"
	defaultTokenTTL       = 24 * time.Hour
)

// Config содержит параметры конфигурации сервиса проката.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	AppBaseURL     string        `env:"APP_BASE_URL"`
	AuthSecret     string        `env:"AUTH_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL"`
	MailAPIURL     string        `env:"MAIL_API_URL"`
	MailAPIKey     string        `env:"MAIL_API_KEY"`
	MailFrom       string        `env:"MAIL_FROM"`
	CompanyMailbox string        `env:"COMPANY_MAILBOX"`
	RedisURL       string        `env:"REDIS_URL"`
	Currency       string        `env:"DEFAULT_CURRENCY"`
}

// Parse считывает конфигурацию из файла .env (если он есть), флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AppBaseURL, "b", defaultBaseURL, "public application base URL for invoice links")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret used to sign bearer tokens")
	flag.StringVar(&cfg.MailAPIURL, "m", "", "mail API base URL")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for the worker feed cache")

	flag.Parse()

	overrideString(&cfg.RunAddress, fromEnv.RunAddress)
	overrideString(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	overrideString(&cfg.AppBaseURL, fromEnv.AppBaseURL)
	overrideString(&cfg.AuthSecret, fromEnv.AuthSecret)
	overrideString(&cfg.MailAPIURL, fromEnv.MailAPIURL)
	overrideString(&cfg.RedisURL, fromEnv.RedisURL)

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = defaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = defaultMailFrom
	}
	if cfg.CompanyMailbox == "" {
		cfg.CompanyMailbox = defaultCompanyMailbox
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	return cfg, nil
}

func overrideString(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}
