// handlers/game.go
package handlers

import (
	"game-night-server/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService, historyService *services.HistoryService) {
	// 🔓 Catalog for the Olympiade lobby
	app.Get("/games", gameService.GetAllGames)
	app.Get("/games/:id", gameService.GetGameByID)

	// 📜 Finished sessions
	app.Get("/history/kniffel", historyService.RecentKniffelGames)
	app.Get("/history/olympiade", historyService.RecentOlympiades)
}
