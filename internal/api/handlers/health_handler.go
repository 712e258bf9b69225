package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/srikarv/eduinsights/pkg/logger"
)

// HealthHandler reports service liveness and dependency health.
type HealthHandler struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redisClient,
		logger: log.WithComponent("health-handler"),
	}
}

// GetHealth handles GET /health
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	checks := fiber.Map{}
	status := "healthy"

	if err := h.db.Ping(c.Context()); err != nil {
		checks["database"] = fiber.Map{"status": "down", "message": err.Error()}
		status = "degraded"
	} else {
		checks["database"] = fiber.Map{"status": "up"}
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Context()).Err(); err != nil {
			checks["redis"] = fiber.Map{"status": "down", "message": err.Error()}
			status = "degraded"
		} else {
			checks["redis"] = fiber.Map{"status": "up"}
		}
	} else {
		checks["redis"] = fiber.Map{"status": "disabled"}
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"service":   "eduinsights-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// GetLiveness handles GET /health/live
func (h *HealthHandler) GetLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// GetReadiness handles GET /health/ready
func (h *HealthHandler) GetReadiness(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready", "message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
