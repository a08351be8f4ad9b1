// handlers/tournament.go
package handlers

import (
	"game-night-server/middleware"
	"game-night-server/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func SetupOlympiadeRoutes(app *fiber.App, coordinator *services.Coordinator, logger *logrus.Logger) {
	// 🔓 Snapshots for late joiners
	app.Get("/olympiade/status", coordinator.GetOlympiadeStatus)
	app.Get("/olympiade/standings", coordinator.GetStandings)

	// 🎯 Actions, tied to an open event stream
	actions := app.Group("/olympiade", middleware.ConnectionContextMiddleware(logger))
	actions.Post("/:event", coordinator.PostOlympiadeEvent)
}
