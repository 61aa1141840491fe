package middlewares

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/metrics"
)

// MetricsMiddleware mencatat jumlah request dan latency per pola route.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.ObserveHTTP(c.Method(), route, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
