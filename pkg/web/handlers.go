// Package web provides HTTP handlers and REST API endpoints for deals,
// pipelines and tasks.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dukex/dealflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	dealService     *services.Deal
	pipelineService *services.Pipeline
	taskService     *services.Task
	validator       *validator.Validate
}

func NewAPIHandlers(
	dealService *services.Deal,
	pipelineService *services.Pipeline,
	taskService *services.Task,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		dealService:     dealService,
		pipelineService: pipelineService,
		taskService:     taskService,
		validator:       validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.dealService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Dealflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Dealflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetDeals(c fiber.Ctx) error {
	deals, err := h.dealService.List(c.Context(), c.Query("account_id"), c.Query("pipeline_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"deals":       deals,
		"total_count": len(deals),
	})
}

func (h *APIHandlers) CreateDeal(c fiber.Ctx) error {
	var req CreateDealRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	deal, err := h.dealService.Create(c.Context(), req.toDeal())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(deal)
}

func (h *APIHandlers) GetDeal(c fiber.Ctx) error {
	deal, err := h.dealService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deal)
}

func (h *APIHandlers) UpdateDeal(c fiber.Ctx) error {
	var req services.UpdateDealRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	deal, err := h.dealService.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deal)
}

// DeleteDeal answers 202: the deletion is carried out by the automation
// engine once no evaluation of the deal is running.
func (h *APIHandlers) DeleteDeal(c fiber.Ctx) error {
	if err := h.dealService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) MoveDealStage(c fiber.Ctx) error {
	var req MoveStageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	deal, err := h.dealService.MoveStage(c.Context(), c.Params("id"), req.Stage)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deal)
}

func (h *APIHandlers) LinkDealContact(c fiber.Ctx) error {
	var req LinkContactRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.dealService.LinkContact(c.Context(), c.Params("id"), req.ContactID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetDealTasks(c fiber.Ctx) error {
	tasks, err := h.taskService.ListByDeal(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks":       tasks,
		"total_count": len(tasks),
	})
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	task, err := h.taskService.Complete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.pipelineService.List(c.Context(), c.Params("accountId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipelines":   pipelines,
		"total_count": len(pipelines),
	})
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	pipeline, err := h.pipelineService.FetchByID(c.Context(), c.Params("accountId"), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

// PutPipeline imports a pipeline document. The id in the document must
// match the id in the path.
func (h *APIHandlers) PutPipeline(c fiber.Ctx) error {
	document := c.Body()

	var header struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(document, &header); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if header.ID != c.Params("id") {
		return badRequest(c, "pipeline id does not match the request path")
	}

	pipeline, err := h.pipelineService.Import(c.Context(), c.Params("accountId"), document)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	if err := h.pipelineService.Delete(c.Context(), c.Params("accountId"), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
