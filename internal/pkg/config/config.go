package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/env"
)

// Config is built once at start-up and passed down by value; nothing reads
// the environment after Load returns.
type Config struct {
	Server   Server
	Database Database
	Cache    Cache
	Stripe   Stripe
	Billing  Billing
	Auth     Auth
	Log      Log
}

type Server struct {
	Host           string
	Port           string
	Env            string
	WebhookTimeout time.Duration
	MetricsUser    string
	MetricsPass    string
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type Database struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN returns the go-sql-driver/mysql connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL returns the golang-migrate connection URL.
func (d Database) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type Cache struct {
	Host     string
	Port     int
	Password string
	DB       int
	// LimiterDB keeps rate limiter counters apart from entitlement snapshots.
	LimiterDB int
	TTL       time.Duration
}

func (c Cache) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type Stripe struct {
	SecretKey      string
	WebhookSecret  string
	BasicPriceID   string
	PremiumPriceID string
	Currency       string
}

type Billing struct {
	PublicSiteURL       string
	LegacySubscriptions bool
	LedgerMaxAttempts   int
	CheckoutRateLimit   int
	CheckoutRateWindow  time.Duration
}

type Auth struct {
	JWTSecret string
	Issuer    string
}

type Log struct {
	Level  string
	Format string
}

// Load reads configuration from the process environment and the optional
// .env file.
func Load() Config {
	env.SetupEnvFile()

	return Config{
		Server: Server{
			Host:           env.GetEnv("APP_HOST", "localhost"),
			Port:           env.GetEnv("APP_PORT", "4000"),
			Env:            env.GetEnv("APP_ENV", "prod"),
			WebhookTimeout: env.GetDuration("WEBHOOK_TIMEOUT", 15*time.Second),
			MetricsUser:    env.GetEnv("METRICS_USER", "admin"),
			MetricsPass:    env.GetEnv("METRICS_PASSWORD", ""),
		},
		Database: Database{
			User:     env.GetEnv("DB_USER", "snippetcanvas"),
			Password: env.GetEnv("DB_PASSWORD", "snippetcanvas"),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", "snippetcanvas_db"),
		},
		Cache: Cache{
			Host:      env.GetEnv("CACHE_HOST", "localhost"),
			Port:      env.GetInt("CACHE_PORT", 6379),
			Password:  env.GetEnv("CACHE_PASSWORD", ""),
			DB:        env.GetInt("CACHE_DB", 0),
			LimiterDB: env.GetInt("CACHE_LIMITER_DB", 1),
			TTL:       env.GetDuration("ENTITLEMENT_CACHE_TTL", 5*time.Minute),
		},
		Stripe: Stripe{
			SecretKey:      strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:  strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
			BasicPriceID:   strings.TrimSpace(env.GetEnv("STRIPE_BASIC_PRICE_ID", "")),
			PremiumPriceID: strings.TrimSpace(env.GetEnv("STRIPE_PREMIUM_PRICE_ID", "")),
			Currency:       strings.ToLower(env.GetEnv("STRIPE_CURRENCY", "usd")),
		},
		Billing: Billing{
			PublicSiteURL:       strings.TrimRight(env.GetEnv("PUBLIC_SITE_URL", "http://localhost:4000"), "/"),
			LegacySubscriptions: env.GetBool("BILLING_LEGACY_SUBSCRIPTIONS", true),
			LedgerMaxAttempts:   env.GetInt("BILLING_LEDGER_MAX_ATTEMPTS", 3),
			CheckoutRateLimit:   env.GetInt("CHECKOUT_RATE_LIMIT", 10),
			CheckoutRateWindow:  env.GetDuration("CHECKOUT_RATE_WINDOW", time.Minute),
		},
		Auth: Auth{
			JWTSecret: env.GetEnv("AUTH_JWT_SECRET", ""),
			Issuer:    env.GetEnv("AUTH_JWT_ISSUER", ""),
		},
		Log: Log{
			Level:  env.GetEnv("LOG_LEVEL", "info"),
			Format: env.GetEnv("LOG_FORMAT", "json"),
		},
	}
}

func (c Config) IsDev() bool {
	return c.Server.Env == "dev"
}
