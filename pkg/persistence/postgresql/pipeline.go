package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// PipelineRepository stores each pipeline definition as a JSONB document.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{db: db, logger: logger}
}

func decodePipeline(definition []byte, createdAt, updatedAt time.Time) (*models.Pipeline, error) {
	var pipeline models.Pipeline

	err := json.Unmarshal(definition, &pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline definition: %w", err)
	}

	pipeline.CreatedAt = createdAt.UTC()
	pipeline.UpdatedAt = updatedAt.UTC()

	return &pipeline, nil
}

func (r *PipelineRepository) GetPipeline(ctx context.Context, accountID, pipelineID string) (*models.Pipeline, error) {
	var (
		definition []byte
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT definition, created_at, updated_at
		FROM pipelines
		WHERE account_id = $1 AND id = $2
	`, accountID, pipelineID).Scan(&definition, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, err)
	}

	pipeline, err := decodePipeline(definition, createdAt, updatedAt)
	if err != nil {
		return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, err)
	}

	return pipeline, nil
}

func (r *PipelineRepository) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	now := time.Now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	definition, err := json.Marshal(pipeline)
	if err != nil {
		return persistence.NewPipelineError("SavePipeline", pipeline.AccountID, pipeline.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipelines (account_id, id, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, id) DO UPDATE SET
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at
	`, pipeline.AccountID, pipeline.ID, definition, pipeline.CreatedAt, pipeline.UpdatedAt)
	if err != nil {
		return persistence.NewPipelineError("SavePipeline", pipeline.AccountID, pipeline.ID, err)
	}

	return nil
}

// ListPipelines returns the pipelines of an account, or of every account
// when accountID is empty.
func (r *PipelineRepository) ListPipelines(ctx context.Context, accountID string) ([]*models.Pipeline, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT definition, created_at, updated_at
		FROM pipelines
		WHERE $1::text = '' OR account_id = $1::text
		ORDER BY account_id, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		var (
			definition []byte
			createdAt  time.Time
			updatedAt  time.Time
		)

		err = rows.Scan(&definition, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipeline, err := decodePipeline(definition, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate pipelines: %w", err)
	}

	return pipelines, nil
}

func (r *PipelineRepository) DeletePipeline(ctx context.Context, accountID, pipelineID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pipelines WHERE account_id = $1 AND id = $2", accountID, pipelineID)
	if err != nil {
		return persistence.NewPipelineError("DeletePipeline", accountID, pipelineID, err)
	}

	return nil
}
