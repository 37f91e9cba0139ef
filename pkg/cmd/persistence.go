package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/persistence/file"
	"github.com/dukex/dealflow/pkg/persistence/memory"
	"github.com/dukex/dealflow/pkg/persistence/postgresql"
	"github.com/dukex/dealflow/pkg/persistence/redis"
)

// NewPersistence opens the store named by the scheme of databaseURL:
// postgres:// or postgresql://, mem:// and file:// (the default).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	case "mem":
		logger.WarnContext(ctx, "Using in-memory persistence, data is lost on exit")

		return memory.NewPersistence()
	default:
		return file.NewPersistence(databaseURL)
	}
}

// NewAgeMarkers connects the Redis store shared by engine instances for
// age trigger markers.
func NewAgeMarkers(ctx context.Context, logger *slog.Logger, redisURL string) *redis.AgeMarkerRepository {
	markers, err := redis.NewAgeMarkerRepository(ctx, logger, redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create Redis age marker store: %w", err))
	}

	return markers
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
