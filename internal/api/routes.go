package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/srikarv/eduinsights/internal/api/handlers"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	extractionHandler *handlers.ExtractionHandler,
	catalogHandler *handlers.CatalogHandler,
	studentHandler *handlers.StudentHandler,
	healthHandler *handlers.HealthHandler,
	rateLimiter *middleware.RateLimiter,
	auth *middleware.APIKeyAuth,
	log *logger.Logger,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
		ExposeHeaders: "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining",
		MaxAge:        300,
	}))

	// Request logging middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Locals("requestid").(string)

		err := c.Next()

		log.Infof("[%s] %s %s - %d - %v",
			requestID,
			c.Method(),
			c.Path(),
			c.Response().StatusCode(),
			time.Since(start),
		)
		return err
	})

	// Health endpoints (no auth)
	app.Get("/health", healthHandler.GetHealth)
	app.Get("/health/live", healthHandler.GetLiveness)
	app.Get("/health/ready", healthHandler.GetReadiness)

	// API v1 routes
	api := app.Group("/api/v1")

	if rateLimiter != nil {
		api.Use(rateLimiter.Handler())
	}
	if auth != nil {
		api.Use(auth.Handler())
	}

	// Extraction engine
	extractions := api.Group("/extractions")
	extractions.Post("/identify_subjects/:batch_id", extractionHandler.IdentifySubjects)
	extractions.Post("/add_subjects/:batch_id", extractionHandler.AddSubjects)
	extractions.Post("/scraper/:section_id", extractionHandler.StartScrape)
	extractions.Get("/:id", extractionHandler.GetExtraction)
	extractions.Get("/:id/invalids", extractionHandler.GetExtractionInvalids)
	extractions.Post("/:id/cancel", extractionHandler.CancelExtraction)

	// Cohort catalog
	api.Get("/departments", catalogHandler.ListDepartments)
	api.Post("/departments", catalogHandler.CreateDepartment)
	api.Delete("/departments/:id", catalogHandler.DeleteDepartment)
	api.Get("/departments/:id/batches", catalogHandler.ListBatches)
	api.Post("/batches", catalogHandler.CreateBatch)
	api.Get("/batches/:id/semesters", catalogHandler.ListSemesters)
	api.Post("/semesters", catalogHandler.CreateSemester)
	api.Get("/batches/:id/sections", catalogHandler.ListSections)
	api.Post("/sections", catalogHandler.CreateSection)
	api.Get("/semesters/:id/subjects", catalogHandler.ListSubjects)

	// Students and marks
	api.Get("/sections/:id/students", studentHandler.ListStudents)
	api.Post("/students", studentHandler.CreateStudents)
	api.Get("/students/:id/marks", studentHandler.ListMarks)
	api.Get("/student-performances/:id", studentHandler.GetPerformance)
}
