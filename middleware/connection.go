// middleware/connection.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	HeaderConnectionID = "X-Connection-ID"
	localConnectionID  = "connection_id"
)

// ConnectionContextMiddleware attaches the caller's stream connection id.
// Action routes reject requests that do not name one.
func ConnectionContextMiddleware(logger *logrus.Logger) fiber.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("middleware", "connection")

	return func(c *fiber.Ctx) error {
		connID := strings.TrimSpace(c.Get(HeaderConnectionID))
		if connID == "" {
			connID = strings.TrimSpace(c.Query("connectionId"))
		}

		if connID == "" && c.Method() == fiber.MethodPost {
			log.WithField("path", c.Path()).Debug("missing connection id")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing " + HeaderConnectionID + ", open /events first",
			})
		}

		c.Locals(localConnectionID, connID)
		return c.Next()
	}
}

// ConnectionID returns the id attached by ConnectionContextMiddleware.
func ConnectionID(c *fiber.Ctx) string {
	id, _ := c.Locals(localConnectionID).(string)
	return id
}
