package mocks

import (
	"context"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDealRepository is a mock implementation of persistence.DealRepository interface.
type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) GetByID(ctx context.Context, dealID string) (*models.Deal, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Deal), args.Error(1)
}

func (m *MockDealRepository) Save(ctx context.Context, deal *models.Deal) error {
	args := m.Called(ctx, deal)

	return args.Error(0)
}

func (m *MockDealRepository) Delete(ctx context.Context, dealID string) error {
	args := m.Called(ctx, dealID)

	return args.Error(0)
}

func (m *MockDealRepository) ListByPipeline(ctx context.Context, accountID, pipelineID string) ([]*models.Deal, error) {
	args := m.Called(ctx, accountID, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Deal), args.Error(1)
}

func (m *MockDealRepository) LinkContact(ctx context.Context, dealID, contactID string) error {
	args := m.Called(ctx, dealID, contactID)

	return args.Error(0)
}

// MockPipelineRepository is a mock implementation of persistence.PipelineRepository interface.
type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) GetPipeline(ctx context.Context, accountID, pipelineID string) (*models.Pipeline, error) {
	args := m.Called(ctx, accountID, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	args := m.Called(ctx, pipeline)

	return args.Error(0)
}

func (m *MockPipelineRepository) ListPipelines(ctx context.Context, accountID string) ([]*models.Pipeline, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) DeletePipeline(ctx context.Context, accountID, pipelineID string) error {
	args := m.Called(ctx, accountID, pipelineID)

	return args.Error(0)
}

// MockTaskRepository is a mock implementation of persistence.TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) ListByDeal(ctx context.Context, dealID string) ([]*models.Task, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Task), args.Error(1)
}

// MockAgeMarkerRepository is a mock implementation of persistence.AgeMarkerRepository interface.
type MockAgeMarkerRepository struct {
	mock.Mock
}

func (m *MockAgeMarkerRepository) MarkFired(ctx context.Context, dealID, ruleID string, at time.Time) (bool, error) {
	args := m.Called(ctx, dealID, ruleID, at)

	return args.Bool(0), args.Error(1)
}

func (m *MockAgeMarkerRepository) HasFired(ctx context.Context, dealID, ruleID string) (bool, error) {
	args := m.Called(ctx, dealID, ruleID)

	return args.Bool(0), args.Error(1)
}

func (m *MockAgeMarkerRepository) ClearRule(ctx context.Context, dealID, ruleID string) error {
	args := m.Called(ctx, dealID, ruleID)

	return args.Error(0)
}

func (m *MockAgeMarkerRepository) ClearDeal(ctx context.Context, dealID string) error {
	args := m.Called(ctx, dealID)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Deals      *MockDealRepository
	Pipelines  *MockPipelineRepository
	Tasks      *MockTaskRepository
	AgeMarkers *MockAgeMarkerRepository
}

// NewMockPersistence creates a mock persistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Deals:      &MockDealRepository{},
		Pipelines:  &MockPipelineRepository{},
		Tasks:      &MockTaskRepository{},
		AgeMarkers: &MockAgeMarkerRepository{},
	}
}

func (m *MockPersistence) DealRepository() persistence.DealRepository { return m.Deals }

func (m *MockPersistence) PipelineRepository() persistence.PipelineRepository { return m.Pipelines }

func (m *MockPersistence) TaskRepository() persistence.TaskRepository { return m.Tasks }

func (m *MockPersistence) AgeMarkerRepository() persistence.AgeMarkerRepository { return m.AgeMarkers }

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
