package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// APIKeyAuth middleware for API key authentication
type APIKeyAuth struct {
	apiKey     string
	headerName string
}

// NewAPIKeyAuth creates a new API key authentication middleware
func NewAPIKeyAuth(apiKey, headerName string) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &APIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
	}
}

// Handler returns the Fiber middleware handler. With no key
// configured, authentication is disabled.
func (a *APIKeyAuth) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.apiKey == "" {
			return c.Next()
		}

		if c.Get(a.headerName) != a.apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Invalid or missing API key",
			})
		}

		return c.Next()
	}
}
