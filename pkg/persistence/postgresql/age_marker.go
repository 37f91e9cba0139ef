package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AgeMarkerRepository records fired deal age automations. The primary key
// on (deal_id, rule_id) makes MarkFired a single winner race.
type AgeMarkerRepository struct {
	db *sql.DB
}

// NewAgeMarkerRepository creates a new age marker repository.
func NewAgeMarkerRepository(db *sql.DB) *AgeMarkerRepository {
	return &AgeMarkerRepository{db: db}
}

func (r *AgeMarkerRepository) MarkFired(ctx context.Context, dealID, ruleID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO age_trigger_markers (deal_id, rule_id, fired_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (deal_id, rule_id) DO NOTHING
	`, dealID, ruleID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark rule %s for deal %s: %w", ruleID, dealID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return affected == 1, nil
}

func (r *AgeMarkerRepository) HasFired(ctx context.Context, dealID, ruleID string) (bool, error) {
	var fired bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM age_trigger_markers WHERE deal_id = $1 AND rule_id = $2)",
		dealID, ruleID).Scan(&fired)
	if err != nil {
		return false, fmt.Errorf("failed to read marker of rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return fired, nil
}

func (r *AgeMarkerRepository) ClearRule(ctx context.Context, dealID, ruleID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM age_trigger_markers WHERE deal_id = $1 AND rule_id = $2",
		dealID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to clear marker of rule %s for deal %s: %w", ruleID, dealID, err)
	}

	return nil
}

func (r *AgeMarkerRepository) ClearDeal(ctx context.Context, dealID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM age_trigger_markers WHERE deal_id = $1", dealID)
	if err != nil {
		return fmt.Errorf("failed to clear markers for deal %s: %w", dealID, err)
	}

	return nil
}
