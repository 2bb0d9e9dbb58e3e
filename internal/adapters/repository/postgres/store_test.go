package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/adapters/repository/postgres"
	"github.com/okian/arena/internal/adapters/repository/storetest"
)

// startPostgres runs a disposable PostgreSQL 16 container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("arena"),
		tcpostgres.WithUsername("arena"),
		tcpostgres.WithPassword("arena"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestStoreContract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, func(t *testing.T) repository.Store {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		require.NoError(t, truncate(ctx, s))
		return s
	})
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, postgres.RunMigrations(ctx, dsn))
	require.NoError(t, postgres.RunMigrations(ctx, dsn))
}

func truncate(ctx context.Context, s *postgres.Store) error {
	return postgres.Truncate(ctx, s)
}
