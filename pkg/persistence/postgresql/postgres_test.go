package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/persistence/postgresql"
	"github.com/dukex/dealflow/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"age_trigger_markers", "tasks", "contact_deals", "deals", "pipelines", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("dealflow_test"),
			postgres.WithUsername("dealflow"),
			postgres.WithPassword("dealflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Running the migrations again is a no-op.
	again, err := postgresql.NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestPersistence_Suite(t *testing.T) {
	testutil.RunPersistenceSuite(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		p, _, _ := setupTestDB(t)

		return p
	})
}

func TestDealRepository_DeleteRemovesContactLinks(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	deal := testutil.CreateTestDeal()
	require.NoError(t, p.DealRepository().Save(ctx, deal))
	require.NoError(t, p.DealRepository().LinkContact(ctx, deal.ID, "contact-1"))
	require.NoError(t, p.DealRepository().Delete(ctx, deal.ID))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var links int

	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_deals WHERE deal_id = $1", deal.ID).Scan(&links)
	require.NoError(t, err)
	assert.Zero(t, links)
}
