// Package redis keeps deal age markers in Redis so that several engine
// instances share one view of which age automations already fired.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dealflow:age_marker"

// AgeMarkerRepository implements persistence.AgeMarkerRepository on Redis.
type AgeMarkerRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewAgeMarkerRepository connects to the Redis server at redisURL
// (redis://[:password@]host:port[/db]).
func NewAgeMarkerRepository(ctx context.Context, logger *slog.Logger, redisURL string) (*AgeMarkerRepository, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With("module", "redis_age_markers")
	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewAgeMarkerRepositoryWithClient(client, logger), nil
}

// NewAgeMarkerRepositoryWithClient wraps an existing client.
func NewAgeMarkerRepositoryWithClient(client redis.UniversalClient, logger *slog.Logger) *AgeMarkerRepository {
	return &AgeMarkerRepository{client: client, logger: logger}
}

func markerKey(dealID, ruleID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, dealID, ruleID)
}

func dealIndexKey(dealID string) string {
	return fmt.Sprintf("%s:index:%s", keyPrefix, dealID)
}

// MarkFired sets the marker with SETNX so only one caller wins, then records
// the rule in the per-deal index used by ClearDeal.
func (r *AgeMarkerRepository) MarkFired(ctx context.Context, dealID, ruleID string, at time.Time) (bool, error) {
	set, err := r.client.SetNX(ctx, markerKey(dealID, ruleID), at.UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark rule %s for deal %s: %w", ruleID, dealID, err)
	}

	if !set {
		return false, nil
	}

	err = r.client.SAdd(ctx, dealIndexKey(dealID), ruleID).Err()
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to index age marker", "deal_id", dealID, "rule_id", ruleID, "error", err)
	}

	return true, nil
}

func (r *AgeMarkerRepository) HasFired(ctx context.Context, dealID, ruleID string) (bool, error) {
	count, err := r.client.Exists(ctx, markerKey(dealID, ruleID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read marker of rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return count > 0, nil
}

func (r *AgeMarkerRepository) ClearRule(ctx context.Context, dealID, ruleID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, markerKey(dealID, ruleID))
		pipe.SRem(ctx, dealIndexKey(dealID), ruleID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear marker of rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return nil
}

func (r *AgeMarkerRepository) ClearDeal(ctx context.Context, dealID string) error {
	ruleIDs, err := r.client.SMembers(ctx, dealIndexKey(dealID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list markers for deal %s: %w", dealID, err)
	}

	keys := make([]string, 0, len(ruleIDs)+1)
	for _, ruleID := range ruleIDs {
		keys = append(keys, markerKey(dealID, ruleID))
	}

	keys = append(keys, dealIndexKey(dealID))

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear markers for deal %s: %w", dealID, err)
	}

	return nil
}

// Close releases the Redis connection.
func (r *AgeMarkerRepository) Close() error {
	return r.client.Close()
}
