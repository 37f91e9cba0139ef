package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error constants are available", func(t *testing.T) {
		assert.NotNil(t, persistence.ErrDealNotFound)
		assert.NotNil(t, persistence.ErrPipelineNotFound)
		assert.NotNil(t, persistence.ErrTaskNotFound)
	})

	t.Run("error checking functions work correctly", func(t *testing.T) {
		dealErr := persistence.NewDealError("GetByID", "deal-123", persistence.ErrDealNotFound)
		pipelineErr := persistence.NewPipelineError("GetPipeline", "acc-1", "sales", persistence.ErrPipelineNotFound)

		assert.True(t, persistence.IsDealNotFound(dealErr))
		assert.True(t, persistence.IsPipelineNotFound(pipelineErr))
		assert.False(t, persistence.IsDealNotFound(pipelineErr))
		assert.True(t, persistence.IsTaskNotFound(fmt.Errorf("lookup: %w", persistence.ErrTaskNotFound)))

		assert.True(t, errors.Is(dealErr, persistence.ErrDealNotFound))
		assert.True(t, errors.Is(pipelineErr, persistence.ErrPipelineNotFound))
	})

	t.Run("deal error contains context", func(t *testing.T) {
		err := persistence.NewDealError("Save", "deal-123", errors.New("disk full"))

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "deal-123")
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("pipeline error contains context", func(t *testing.T) {
		err := persistence.NewPipelineError("GetPipeline", "acc-1", "sales", persistence.ErrPipelineNotFound)

		assert.Contains(t, err.Error(), "GetPipeline")
		assert.Contains(t, err.Error(), "sales")
		assert.Contains(t, err.Error(), "acc-1")
		assert.Contains(t, err.Error(), "pipeline not found")
	})
}
