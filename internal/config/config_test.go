package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(lookupMap(map[string]string{
		"DATABASE_URL": "postgres://localhost/pharmastock",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, int32(2), cfg.DBMinConns)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, int64(10), cfg.LowStockThreshold)
	assert.Equal(t, 30, cfg.ExpiryWindowDays)
	assert.Equal(t, time.Hour, cfg.WorkerScanInterval)
	assert.Equal(t, 2160*time.Hour, cfg.AuditRetention)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(lookupMap(map[string]string{
		"DATABASE_URL":         "postgres://db/pharma",
		"APP_PORT":             "9000",
		"APP_ENV":              "production",
		"LOG_LEVEL":            "DEBUG",
		"LOW_STOCK_THRESHOLD":  "25",
		"EXPIRY_WINDOW_DAYS":   " 60 ",
		"WORKER_SCAN_INTERVAL": "15m",
		"TX_MAX_ATTEMPTS":      "5",
		"JWT_SECRET":           "0123456789abcdef0123",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(25), cfg.LowStockThreshold)
	assert.Equal(t, 60, cfg.ExpiryWindowDays)
	assert.Equal(t, 15*time.Minute, cfg.WorkerScanInterval)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{},
			wantErr: "DATABASE_URL: failed required",
		},
		{
			name:    "malformed integer",
			env:     map[string]string{"DATABASE_URL": "x", "LOW_STOCK_THRESHOLD": "ten"},
			wantErr: `LOW_STOCK_THRESHOLD: "ten" is not an integer`,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"DATABASE_URL": "x", "AUDIT_RETENTION": "90 days"},
			wantErr: "AUDIT_RETENTION",
		},
		{
			name:    "min conns above max",
			env:     map[string]string{"DATABASE_URL": "x", "DB_MAX_CONNS": "2", "DB_MIN_CONNS": "5"},
			wantErr: "DB_MIN_CONNS: failed ltefield=DBMaxConns",
		},
		{
			name:    "short jwt secret",
			env:     map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "short"},
			wantErr: "JWT_SECRET: failed min=16",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"DATABASE_URL": "x", "LOG_LEVEL": "trace"},
			wantErr: "LOG_LEVEL: failed oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(lookupMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
