// Package integration runs the fee ledger against a real PostgreSQL started
// with testcontainers and migrated with the embedded schema.
package integration

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm/logger"

	"github.com/school/backend/internal/infrastructure/migration"
	"github.com/school/backend/internal/infrastructure/persistence"
	"github.com/school/backend/migrations"
)

var (
	sharedMu        sync.Mutex
	sharedContainer *tcpostgres.PostgresContainer
	sharedDSN       string
)

// TestMain terminates the shared container after the package has run
func TestMain(m *testing.M) {
	code := m.Run()
	sharedMu.Lock()
	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = sharedContainer.Terminate(ctx)
		cancel()
	}
	sharedMu.Unlock()
	os.Exit(code)
}

// NewTestDB connects to the shared, migrated container. Tests isolate their
// data by working under their own tenant IDs rather than truncating.
func NewTestDB(t *testing.T) *persistence.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	dsn := sharedDatabase(t)

	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	db, err := persistence.Open(gormpostgres.Open(dsn), persistence.WithLogger(logger.Default.LogMode(level)))
	require.NoError(t, err, "failed to connect to database")

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sharedDatabase(t *testing.T) string {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContainer != nil {
		return sharedDSN
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("school_integration"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrateUp(t, dsn)

	sharedContainer = container
	sharedDSN = dsn
	return dsn
}

// migrateUp applies the embedded migrations. The migrator closes the
// connection it is given, so it gets its own.
func migrateUp(t *testing.T, dsn string) {
	t.Helper()

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "failed to create migrator")
	defer func() { _ = m.Close() }()

	require.NoError(t, m.Up(), "failed to run migrations")
}
