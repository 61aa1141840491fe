package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// RecoveryMiddleware mengubah panic jadi 500 dan mencatat stack-nya.
func RecoveryMiddleware(log logrus.FieldLogger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.WithFields(logrus.Fields{
				"method":     c.Method(),
				"path":       c.Path(),
				"request_id": c.Locals("requestid"),
			}).Errorf("panic: %v", e)
		},
	})
}
