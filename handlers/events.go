// handlers/events.go
package handlers

import (
	"game-night-server/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, coordinator *services.Coordinator) {
	// 📡 One stream per client; closing it leaves both games
	app.Get("/events", coordinator.StreamEvents)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK"})
	})
}
