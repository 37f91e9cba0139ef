// Package main provides the Dealflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/dealflow/pkg/eventbus"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/dukex/dealflow/pkg/services"
	"github.com/dukex/dealflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dealService := services.NewDeal(a.persistence, a.eventBus, a.logger)
	pipelineService := services.NewPipeline(a.persistence)
	taskService := services.NewTask(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(dealService, pipelineService, taskService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dealflow API")
	})

	d := app.Group("/deals")
	d.Get("/", handlers.GetDeals)
	d.Post("/", handlers.CreateDeal)
	d.Get("/:id", handlers.GetDeal)
	d.Patch("/:id", handlers.UpdateDeal)
	d.Delete("/:id", handlers.DeleteDeal)
	d.Post("/:id/stage", handlers.MoveDealStage)
	d.Post("/:id/contacts", handlers.LinkDealContact)
	d.Get("/:id/tasks", handlers.GetDealTasks)

	app.Post("/tasks/:id/complete", handlers.CompleteTask)

	p := app.Group("/accounts/:accountId/pipelines")
	p.Get("/", handlers.GetPipelines)
	p.Get("/:id", handlers.GetPipeline)
	p.Put("/:id", handlers.PutPipeline)
	p.Delete("/:id", handlers.DeletePipeline)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
