package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/pipeline.schema.json
var pipelineSchema []byte

// Pipeline manages account scoped pipeline configurations.
type Pipeline struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	schema      *gojsonschema.Schema
}

// NewPipeline creates a new pipeline service.
func NewPipeline(persistence persistence.Persistence) *Pipeline {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(pipelineSchema))
	if err != nil {
		panic(fmt.Sprintf("embedded pipeline schema is invalid: %v", err))
	}

	return &Pipeline{
		persistence: persistence,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		schema:      schema,
	}
}

// Validate checks the struct tags and the structural rules of a pipeline.
func (p *Pipeline) Validate(pipeline *models.Pipeline) error {
	if pipeline == nil {
		return NewValidationError("validate_pipeline", "pipeline_nil", "pipeline cannot be nil", ErrInvalidPipeline)
	}

	err := p.validator.Struct(pipeline)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fieldError := range validationErrors {
				messages = append(messages, fmt.Sprintf("%s failed on %s", fieldError.Namespace(), fieldError.Tag()))
			}

			return NewValidationError("validate_pipeline", "invalid_pipeline", strings.Join(messages, "; "), ErrInvalidPipeline)
		}

		return NewValidationError("validate_pipeline", "invalid_pipeline", err.Error(), ErrInvalidPipeline)
	}

	err = pipeline.Validate()
	if err != nil {
		return NewValidationError("validate_pipeline", "invalid_pipeline", err.Error(), ErrInvalidPipeline)
	}

	return nil
}

// Save validates and stores the pipeline.
func (p *Pipeline) Save(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	err := p.Validate(pipeline)
	if err != nil {
		return nil, err
	}

	err = p.persistence.PipelineRepository().SavePipeline(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to save pipeline: %w", err)
	}

	return pipeline, nil
}

// Import validates a pipeline JSON document against the pipeline schema and
// stores it for accountID.
func (p *Pipeline) Import(ctx context.Context, accountID string, document []byte) (*models.Pipeline, error) {
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}

	result, err := p.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, NewValidationError("import_pipeline", "invalid_document", err.Error(), ErrInvalidPipeline)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return nil, NewValidationError("import_pipeline", "schema_violation",
			"JSON schema validation failed: "+strings.Join(messages, "; "), ErrInvalidPipeline)
	}

	var pipeline models.Pipeline

	err = json.Unmarshal(document, &pipeline)
	if err != nil {
		return nil, NewValidationError("import_pipeline", "invalid_document", err.Error(), ErrInvalidPipeline)
	}

	pipeline.AccountID = accountID

	return p.Save(ctx, &pipeline)
}

// FetchByID returns the pipeline of an account.
func (p *Pipeline) FetchByID(ctx context.Context, accountID, pipelineID string) (*models.Pipeline, error) {
	return p.persistence.PipelineRepository().GetPipeline(ctx, accountID, pipelineID)
}

// List returns the pipelines of an account.
func (p *Pipeline) List(ctx context.Context, accountID string) ([]*models.Pipeline, error) {
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}

	return p.persistence.PipelineRepository().ListPipelines(ctx, accountID)
}

// Delete removes the pipeline of an account.
func (p *Pipeline) Delete(ctx context.Context, accountID, pipelineID string) error {
	_, err := p.persistence.PipelineRepository().GetPipeline(ctx, accountID, pipelineID)
	if err != nil {
		return err
	}

	return p.persistence.PipelineRepository().DeletePipeline(ctx, accountID, pipelineID)
}

// ValidationReport is the outcome of validating one stored pipeline.
type ValidationReport struct {
	AccountID  string
	PipelineID string
	Err        error
}

// ValidateAll validates every stored pipeline of every account.
func (p *Pipeline) ValidateAll(ctx context.Context) ([]ValidationReport, error) {
	pipelines, err := p.persistence.PipelineRepository().ListPipelines(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	reports := make([]ValidationReport, 0, len(pipelines))
	for _, pipeline := range pipelines {
		reports = append(reports, ValidationReport{
			AccountID:  pipeline.AccountID,
			PipelineID: pipeline.ID,
			Err:        p.Validate(pipeline),
		})
	}

	return reports, nil
}
