package migration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/school/backend/migrations"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("school_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrator_UpDown(t *testing.T) {
	db := startPostgres(t)

	m, err := NewFromFS(db, migrations.FS, zap.NewNop())
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up(), "a second up is a no-op")

	version, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	for _, table := range []string{"fee_assignments", "fee_transactions", "fine_waivers", "advance_ledger_entries", "provisional_migrations"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	_, err = db.Exec(`INSERT INTO advance_accounts (id, tenant_id, target_type, target_id, balance) VALUES (gen_random_uuid(), gen_random_uuid(), 'STUDENT', gen_random_uuid(), -1)`)
	assert.Error(t, err, "advance balance cannot go negative")

	require.NoError(t, m.Down(1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tableExists(t, db, "fee_assignments"))

	require.NoError(t, m.Down(0), "rolling back an empty schema is a no-op")
}

func TestMigrator_Force(t *testing.T) {
	db := startPostgres(t)

	m, err := NewFromFS(db, migrations.FS, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Force(1))
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	assert.False(t, tableExists(t, db, "fee_assignments"), "force does not run migrations")
}

func TestNewFromFS_NilDB(t *testing.T) {
	_, err := NewFromFS(nil, migrations.FS, zap.NewNop())
	assert.Error(t, err)
}
