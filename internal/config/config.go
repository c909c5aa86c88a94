// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is shared by the API server and the worker.
type Config struct {
	DatabaseURL string `validate:"required"`
	Port        string `validate:"required,numeric"`
	Env         string `validate:"oneof=development staging production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`

	// JWTSecret enables bearer authentication when set.
	JWTSecret string `validate:"omitempty,min=16"`

	DBMaxConns    int32         `validate:"gte=1"`
	DBMinConns    int32         `validate:"gte=0,ltefield=DBMaxConns"`
	TxMaxAttempts int           `validate:"gte=1,lte=10"`
	LockTimeout   time.Duration `validate:"gt=0"`

	// IdempotencyTTL is how long a replayable ledger response is kept.
	IdempotencyTTL time.Duration `validate:"gte=1m"`

	LowStockThreshold int64 `validate:"gte=0"`
	ExpiryWindowDays  int   `validate:"gte=1,lte=3650"`

	WorkerScanInterval time.Duration `validate:"gte=1m"`
	AuditRetention     time.Duration `validate:"gte=24h"`
	MetricsPort        string        `validate:"omitempty,numeric"`
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, so tests can supply a map.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		DatabaseURL: env.get("DATABASE_URL", ""),
		Port:        env.get("APP_PORT", "8080"),
		Env:         env.get("APP_ENV", "development"),
		LogLevel:    strings.ToLower(env.get("LOG_LEVEL", "info")),
		JWTSecret:   env.get("JWT_SECRET", ""),

		DBMaxConns:    int32(env.getInt("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(env.getInt("DB_MIN_CONNS", 2)),
		TxMaxAttempts: env.getInt("TX_MAX_ATTEMPTS", 3),
		LockTimeout:   env.getDuration("DB_LOCK_TIMEOUT", 5*time.Second),

		IdempotencyTTL: env.getDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		LowStockThreshold: int64(env.getInt("LOW_STOCK_THRESHOLD", 10)),
		ExpiryWindowDays:  env.getInt("EXPIRY_WINDOW_DAYS", 30),

		WorkerScanInterval: env.getDuration("WORKER_SCAN_INTERVAL", time.Hour),
		AuditRetention:     env.getDuration("AUDIT_RETENTION", 90*24*time.Hour),
		MetricsPort:        env.get("METRICS_PORT", "9090"),
	}

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, describe(err)
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) get(key, defaultValue string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return defaultValue
}

func (r *envReader) getInt(key string, defaultValue int) int {
	v, ok := r.raw(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return defaultValue
	}
	return n
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return defaultValue
	}
	return d
}

var envNames = map[string]string{
	"DatabaseURL":        "DATABASE_URL",
	"Port":               "APP_PORT",
	"Env":                "APP_ENV",
	"LogLevel":           "LOG_LEVEL",
	"JWTSecret":          "JWT_SECRET",
	"DBMaxConns":         "DB_MAX_CONNS",
	"DBMinConns":         "DB_MIN_CONNS",
	"TxMaxAttempts":      "TX_MAX_ATTEMPTS",
	"LockTimeout":        "DB_LOCK_TIMEOUT",
	"IdempotencyTTL":     "IDEMPOTENCY_TTL",
	"LowStockThreshold":  "LOW_STOCK_THRESHOLD",
	"ExpiryWindowDays":   "EXPIRY_WINDOW_DAYS",
	"WorkerScanInterval": "WORKER_SCAN_INTERVAL",
	"AuditRetention":     "AUDIT_RETENTION",
	"MetricsPort":        "METRICS_PORT",
}

// describe rewrites validator errors in terms of environment variable names.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Errorf("%s: failed %s=%s", name, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Errorf("%s: failed %s", name, fe.Tag()))
		}
	}
	return errors.Join(msgs...)
}
