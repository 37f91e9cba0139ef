// Package persistence provides the data storage abstraction layer for deals, pipelines and tasks.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/dealflow/pkg/models"
)

// Persistence groups the repositories a deployment is backed by.
type Persistence interface {
	DealRepository() DealRepository
	PipelineRepository() PipelineRepository
	TaskRepository() TaskRepository
	AgeMarkerRepository() AgeMarkerRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DealRepository stores deals and their contact links.
type DealRepository interface {
	// GetByID returns the deal or an error wrapping ErrDealNotFound.
	GetByID(ctx context.Context, dealID string) (*models.Deal, error)

	// Save writes the whole deal record atomically.
	Save(ctx context.Context, deal *models.Deal) error

	// Delete removes the deal together with its contact links in one atomic
	// step. Deleting a missing deal is not an error.
	Delete(ctx context.Context, dealID string) error

	// ListByPipeline returns the deals of a pipeline ordered by creation time.
	ListByPipeline(ctx context.Context, accountID, pipelineID string) ([]*models.Deal, error)

	// LinkContact associates a contact with an existing deal.
	LinkContact(ctx context.Context, dealID, contactID string) error
}

// PipelineRepository stores account scoped pipeline configurations.
type PipelineRepository interface {
	// GetPipeline returns the pipeline or an error wrapping ErrPipelineNotFound.
	GetPipeline(ctx context.Context, accountID, pipelineID string) (*models.Pipeline, error)
	SavePipeline(ctx context.Context, pipeline *models.Pipeline) error
	ListPipelines(ctx context.Context, accountID string) ([]*models.Pipeline, error)
	DeletePipeline(ctx context.Context, accountID, pipelineID string) error
}

// TaskRepository stores follow-up tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	// GetByID returns the task or an error wrapping ErrTaskNotFound.
	GetByID(ctx context.Context, taskID string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ListByDeal(ctx context.Context, dealID string) ([]*models.Task, error)
}

// AgeMarkerRepository remembers which deal age automations already fired.
type AgeMarkerRepository interface {
	// MarkFired records the marker and reports whether it was newly set.
	// Only the first caller for a deal and rule gets true.
	MarkFired(ctx context.Context, dealID, ruleID string, at time.Time) (bool, error)
	HasFired(ctx context.Context, dealID, ruleID string) (bool, error)
	// ClearRule drops one marker so the rule can fire again. Clearing a
	// missing marker is not an error.
	ClearRule(ctx context.Context, dealID, ruleID string) error
	// ClearDeal drops every marker of a deleted deal.
	ClearDeal(ctx context.Context, dealID string) error
}

type withAgeMarkers struct {
	Persistence

	markers AgeMarkerRepository
}

// WithAgeMarkers returns p with its age marker repository replaced, so that
// markers can live in a store shared by several engine instances.
func WithAgeMarkers(p Persistence, markers AgeMarkerRepository) Persistence {
	return &withAgeMarkers{Persistence: p, markers: markers}
}

func (w *withAgeMarkers) AgeMarkerRepository() AgeMarkerRepository {
	return w.markers
}
