// handlers/kniffel.go
package handlers

import (
	"game-night-server/middleware"
	"game-night-server/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func SetupKniffelRoutes(app *fiber.App, coordinator *services.Coordinator, logger *logrus.Logger) {
	app.Get("/kniffel/status", coordinator.GetKniffelStatus)

	// 🎲 Actions, tied to an open event stream
	actions := app.Group("/kniffel", middleware.ConnectionContextMiddleware(logger))
	actions.Post("/:event", coordinator.PostKniffelEvent)
}
