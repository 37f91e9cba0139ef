// Package memory provides an in-process persistence implementation, used for
// development and tests. Records are copied on the way in and out so callers
// never share state with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with guarded maps.
type Persistence struct {
	deals     *DealRepository
	pipelines *PipelineRepository
	tasks     *TaskRepository
	markers   *AgeMarkerRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		deals:     &DealRepository{deals: map[string]*models.Deal{}},
		pipelines: &PipelineRepository{pipelines: map[pipelineKey]*models.Pipeline{}},
		tasks:     &TaskRepository{tasks: map[string]*models.Task{}},
		markers:   &AgeMarkerRepository{markers: map[markerKey]time.Time{}},
	}
}

func (p *Persistence) DealRepository() persistence.DealRepository { return p.deals }

func (p *Persistence) PipelineRepository() persistence.PipelineRepository { return p.pipelines }

func (p *Persistence) TaskRepository() persistence.TaskRepository { return p.tasks }

func (p *Persistence) AgeMarkerRepository() persistence.AgeMarkerRepository { return p.markers }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

// DealRepository keeps deals keyed by id. Contact links live on the deal
// record, so deleting the deal drops its links in the same step.
type DealRepository struct {
	mu    sync.RWMutex
	deals map[string]*models.Deal
}

func (r *DealRepository) GetByID(_ context.Context, dealID string) (*models.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deal, ok := r.deals[dealID]
	if !ok {
		return nil, persistence.NewDealError("GetByID", dealID, persistence.ErrDealNotFound)
	}

	return deal.Clone(), nil
}

func (r *DealRepository) Save(_ context.Context, deal *models.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now().UTC()
	}

	r.deals[deal.ID] = deal.Clone()

	return nil
}

func (r *DealRepository) Delete(_ context.Context, dealID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.deals, dealID)

	return nil
}

func (r *DealRepository) ListByPipeline(_ context.Context, accountID, pipelineID string) ([]*models.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deals := make([]*models.Deal, 0)

	for _, deal := range r.deals {
		if deal.AccountID == accountID && deal.PipelineID == pipelineID {
			deals = append(deals, deal.Clone())
		}
	}

	slices.SortFunc(deals, func(a, b *models.Deal) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return deals, nil
}

func (r *DealRepository) LinkContact(_ context.Context, dealID, contactID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deal, ok := r.deals[dealID]
	if !ok {
		return persistence.NewDealError("LinkContact", dealID, persistence.ErrDealNotFound)
	}

	if !slices.Contains(deal.ContactIDs, contactID) {
		deal.ContactIDs = append(deal.ContactIDs, contactID)
	}

	return nil
}

type pipelineKey struct {
	accountID  string
	pipelineID string
}

// PipelineRepository keeps pipelines keyed by account and id.
type PipelineRepository struct {
	mu        sync.RWMutex
	pipelines map[pipelineKey]*models.Pipeline
}

func (r *PipelineRepository) GetPipeline(_ context.Context, accountID, pipelineID string) (*models.Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pipeline, ok := r.pipelines[pipelineKey{accountID, pipelineID}]
	if !ok {
		return nil, persistence.NewPipelineError("GetPipeline", accountID, pipelineID, persistence.ErrPipelineNotFound)
	}

	return clonePipeline(pipeline), nil
}

func (r *PipelineRepository) SavePipeline(_ context.Context, pipeline *models.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now
	r.pipelines[pipelineKey{pipeline.AccountID, pipeline.ID}] = clonePipeline(pipeline)

	return nil
}

func (r *PipelineRepository) ListPipelines(_ context.Context, accountID string) ([]*models.Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pipelines := make([]*models.Pipeline, 0)

	for key, pipeline := range r.pipelines {
		if accountID == "" || key.accountID == accountID {
			pipelines = append(pipelines, clonePipeline(pipeline))
		}
	}

	slices.SortFunc(pipelines, func(a, b *models.Pipeline) int {
		return cmp.Or(cmp.Compare(a.AccountID, b.AccountID), cmp.Compare(a.ID, b.ID))
	})

	return pipelines, nil
}

func (r *PipelineRepository) DeletePipeline(_ context.Context, accountID, pipelineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pipelines, pipelineKey{accountID, pipelineID})

	return nil
}

// TaskRepository keeps tasks keyed by id.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

func (r *TaskRepository) Create(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	copied := *task
	r.tasks[task.ID] = &copied

	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, taskID string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	copied := *task

	return &copied, nil
}

func (r *TaskRepository) Update(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; !ok {
		return persistence.ErrTaskNotFound
	}

	copied := *task
	r.tasks[task.ID] = &copied

	return nil
}

func (r *TaskRepository) ListByDeal(_ context.Context, dealID string) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.tasks {
		if task.DealID == dealID {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}

	slices.SortFunc(tasks, func(a, b *models.Task) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return tasks, nil
}

type markerKey struct {
	dealID string
	ruleID string
}

// AgeMarkerRepository keeps the first firing time per deal and rule.
type AgeMarkerRepository struct {
	mu      sync.Mutex
	markers map[markerKey]time.Time
}

func (r *AgeMarkerRepository) MarkFired(_ context.Context, dealID, ruleID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := markerKey{dealID, ruleID}
	if _, ok := r.markers[key]; ok {
		return false, nil
	}

	r.markers[key] = at

	return true, nil
}

func (r *AgeMarkerRepository) HasFired(_ context.Context, dealID, ruleID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.markers[markerKey{dealID, ruleID}]

	return ok, nil
}

func (r *AgeMarkerRepository) ClearRule(_ context.Context, dealID, ruleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.markers, markerKey{dealID, ruleID})

	return nil
}

func (r *AgeMarkerRepository) ClearDeal(_ context.Context, dealID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.markers {
		if key.dealID == dealID {
			delete(r.markers, key)
		}
	}

	return nil
}

// clonePipeline copies the pipeline and its slices. Automations are treated
// as immutable once saved and are shared.
func clonePipeline(pipeline *models.Pipeline) *models.Pipeline {
	copied := *pipeline
	copied.Stages = slices.Clone(pipeline.Stages)
	copied.CustomFields = slices.Clone(pipeline.CustomFields)
	copied.Automations = slices.Clone(pipeline.Automations)

	return &copied
}
