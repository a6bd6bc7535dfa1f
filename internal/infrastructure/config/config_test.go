package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "school-fee-ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "school", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "school-fee-ledger", cfg.Telemetry.ServiceName)

		assert.Equal(t, 2, cfg.Fee.DecimalPrecision)
		assert.False(t, cfg.Fee.AllowOverpayment)
		assert.Equal(t, 720*time.Hour, cfg.Fee.ReversalWindow)
		assert.Equal(t, 3, cfg.Fee.MaxConflictRetries)
		assert.Equal(t, "oldest_due_first", cfg.Fee.AdvanceOrder)
		assert.Equal(t, 24*time.Hour, cfg.Fee.IdempotencyTTL)
		assert.Equal(t, IdempotencyMemory, cfg.Fee.IdempotencyBackend)
		assert.Empty(t, cfg.Fee.TenantPrecision)
	})

	t.Run("loads values from environment variables with SCHOOL prefix", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SCHOOL_APP_PORT", "9000")
		t.Setenv("SCHOOL_DATABASE_HOST", "testdb.local")
		t.Setenv("SCHOOL_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("SCHOOL_FEE_DECIMAL_PRECISION", "0")
		t.Setenv("SCHOOL_FEE_ALLOW_OVERPAYMENT", "true")
		t.Setenv("SCHOOL_FEE_REVERSAL_WINDOW", "48h")
		t.Setenv("SCHOOL_FEE_ADVANCE_ORDER", "period_order")
		t.Setenv("SCHOOL_FEE_IDEMPOTENCY_BACKEND", "Redis")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 0, cfg.Fee.DecimalPrecision)
		assert.True(t, cfg.Fee.AllowOverpayment)
		assert.Equal(t, 48*time.Hour, cfg.Fee.ReversalWindow)
		assert.Equal(t, "period_order", cfg.Fee.AdvanceOrder)
		assert.Equal(t, IdempotencyRedis, cfg.Fee.IdempotencyBackend)
	})

	t.Run("reads .env without overriding the environment", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("SCHOOL_REDIS_PORT=6380\nSCHOOL_APP_PORT=7000\n"), 0o600))
		t.Setenv("SCHOOL_APP_PORT", "9100")
		t.Cleanup(func() { os.Unsetenv("SCHOOL_REDIS_PORT") })

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 6380, cfg.Redis.Port)
		assert.Equal(t, "9100", cfg.App.Port)
	})

	t.Run("rejects an unknown advance order", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SCHOOL_FEE_ADVANCE_ORDER", "newest_first")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fee.advance_order")
	})

	t.Run("rejects precision above four places", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SCHOOL_FEE_DECIMAL_PRECISION", "6")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fee.decimal_precision")
	})

	t.Run("production requires secrets", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SCHOOL_APP_ENV", "production")
		t.Setenv("SCHOOL_JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})
}

func TestLoadFile(t *testing.T) {
	tenantID := uuid.New()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
name = "fee-ledger-test"

[database]
max_open_conns = 10
max_idle_conns = 2

[fee]
decimal_precision = 3
max_conflict_retries = 5
idempotency_ttl = "1h"

[fee.tenant_precision]
"`+tenantID.String()+`" = 0
`), 0o600))
	t.Chdir(t.TempDir())

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "fee-ledger-test", cfg.App.Name)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 3, cfg.Fee.DecimalPrecision)
	assert.Equal(t, 5, cfg.Fee.MaxConflictRetries)
	assert.Equal(t, time.Hour, cfg.Fee.IdempotencyTTL)
	assert.Equal(t, map[uuid.UUID]int{tenantID: 0}, cfg.Fee.TenantPrecision)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseTenantPrecision(t *testing.T) {
	_, err := parseTenantPrecision(map[string]string{"not-a-uuid": "2"})
	assert.Error(t, err)

	_, err = parseTenantPrecision(map[string]string{uuid.NewString(): "two"})
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "fee", Password: "p@ss word", DBName: "school", SSLMode: "require"}
	assert.Equal(t, "postgres://fee:p%40ss%20word@db:5432/school?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
