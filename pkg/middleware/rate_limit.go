package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter middleware for API rate limiting using Redis
type RateLimiter struct {
	redis         *redis.Client
	maxRequests   int
	windowSeconds int
}

// NewRateLimiter creates a new rate limiter middleware
func NewRateLimiter(redisClient *redis.Client, maxRequests, windowSeconds int) *RateLimiter {
	return &RateLimiter{
		redis:         redisClient,
		maxRequests:   maxRequests,
		windowSeconds: windowSeconds,
	}
}

// Handler returns the Fiber middleware handler
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.IP()
		if apiKey := c.Get("X-API-Key"); apiKey != "" {
			identifier = apiKey
		}

		key := fmt.Sprintf("rate_limit:%s", identifier)

		ctx := context.Background()
		count, err := rl.redis.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			// Redis trouble never blocks the request.
			return c.Next()
		}

		if count >= rl.maxRequests {
			c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxRequests))
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", fmt.Sprintf("%d", rl.windowSeconds))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Maximum %d requests per %d seconds", rl.maxRequests, rl.windowSeconds),
			})
		}

		pipe := rl.redis.Pipeline()
		pipe.Incr(ctx, key)
		if count == 0 {
			pipe.Expire(ctx, key, time.Duration(rl.windowSeconds)*time.Second)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return c.Next()
		}

		remaining := rl.maxRequests - count - 1
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		return c.Next()
	}
}
