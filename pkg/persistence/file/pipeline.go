package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// PipelineRepository stores pipelines under one directory per account.
type PipelineRepository struct {
	root string
}

func NewPipelineRepository(root string) *PipelineRepository {
	return &PipelineRepository{root: root}
}

func (pr *PipelineRepository) path(accountID, pipelineID string) string {
	return filepath.Join(pr.root, pipelinesDir, escape(accountID), escape(pipelineID)+".json")
}

func (pr *PipelineRepository) GetPipeline(_ context.Context, accountID, pipelineID string) (*models.Pipeline, error) {
	var pipeline models.Pipeline

	if err := readJSON(pr.path(accountID, pipelineID), &pipeline); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, err)
	}

	return &pipeline, nil
}

func (pr *PipelineRepository) SavePipeline(_ context.Context, pipeline *models.Pipeline) error {
	now := time.Now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	if err := writeJSON(pr.path(pipeline.AccountID, pipeline.ID), pipeline); err != nil {
		return persistence.NewPipelineError("SavePipeline", pipeline.AccountID, pipeline.ID, err)
	}

	return nil
}

// ListPipelines returns the pipelines of an account, or of every account
// when accountID is empty.
func (pr *PipelineRepository) ListPipelines(_ context.Context, accountID string) ([]*models.Pipeline, error) {
	accounts := []string{escape(accountID)}

	if accountID == "" {
		entries, err := os.ReadDir(filepath.Join(pr.root, pipelinesDir))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to list pipeline accounts: %w", err)
		}

		accounts = accounts[:0]

		for _, entry := range entries {
			if entry.IsDir() {
				accounts = append(accounts, entry.Name())
			}
		}
	}

	pipelines := make([]*models.Pipeline, 0)

	for _, account := range accounts {
		paths, err := listJSON(filepath.Join(pr.root, pipelinesDir, account))
		if err != nil {
			return nil, err
		}

		for _, path := range paths {
			var pipeline models.Pipeline

			if err := readJSON(path, &pipeline); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}

				return nil, fmt.Errorf("failed to load pipeline %s: %w", filepath.Base(path), err)
			}

			pipelines = append(pipelines, &pipeline)
		}
	}

	slices.SortFunc(pipelines, func(a, b *models.Pipeline) int {
		return cmp.Or(cmp.Compare(a.AccountID, b.AccountID), cmp.Compare(a.ID, b.ID))
	})

	return pipelines, nil
}

func (pr *PipelineRepository) DeletePipeline(_ context.Context, accountID, pipelineID string) error {
	err := os.Remove(pr.path(accountID, pipelineID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewPipelineError("DeletePipeline", accountID, pipelineID, err)
	}

	return nil
}
