package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"game-night-server/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GameService is the mini-game catalog.
type GameService struct {
	DB  *gorm.DB
	log *logrus.Entry
}

func NewGameService(db *gorm.DB, logger *logrus.Logger) *GameService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameService{DB: db, log: logger.WithField("component", "catalog")}
}

// GamesByIDs loads the named mini-games in the order requested.
func (s *GameService) GamesByIDs(ctx context.Context, ids []string) ([]models.GameRef, error) {
	if len(ids) == 0 {
		return nil, validationf("select at least one game")
	}

	var rows []models.MiniGame
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load mini-games: %w", err)
	}
	byID := make(map[string]models.MiniGame, len(rows))
	for _, g := range rows {
		byID[g.ID] = g
	}

	refs := make([]models.GameRef, 0, len(ids))
	for _, id := range ids {
		g, ok := byID[id]
		if !ok {
			return nil, notFoundf("game %q does not exist", id)
		}
		refs = append(refs, g.Ref())
	}
	return refs, nil
}

// ListGames returns the catalog sorted by name.
func (s *GameService) ListGames(ctx context.Context) ([]models.MiniGame, error) {
	var games []models.MiniGame
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list mini-games: %w", err)
	}
	return games, nil
}

// EnsureSeedGames inserts names when the catalog is empty and returns how
// many rows were created.
func (s *GameService) EnsureSeedGames(ctx context.Context, names []string) (int, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.MiniGame{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count mini-games: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	games := seedRows(names)
	if len(games) == 0 {
		return 0, nil
	}
	if err := s.DB.WithContext(ctx).Create(&games).Error; err != nil {
		return 0, fmt.Errorf("seed mini-games: %w", err)
	}
	s.log.WithField("count", len(games)).Info("catalog seeded")
	return len(games), nil
}

// seedRows builds catalog rows, skipping blanks and names that share a slug.
func seedRows(names []string) []models.MiniGame {
	seen := make(map[string]bool)
	var games []models.MiniGame
	for _, name := range names {
		name = strings.TrimSpace(name)
		sl := slug.Make(name)
		if name == "" || sl == "" || seen[sl] {
			continue
		}
		seen[sl] = true
		games = append(games, models.MiniGame{ID: uuid.NewString(), Name: name, Slug: sl})
	}
	return games
}

// GetAllGames lists the catalog.
func (s *GameService) GetAllGames(c *fiber.Ctx) error {
	games, err := s.ListGames(c.UserContext())
	if err != nil {
		s.log.WithError(err).Error("list games")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch games"})
	}
	return c.JSON(games)
}

// GetGameByID returns a single catalog entry.
func (s *GameService) GetGameByID(c *fiber.Ctx) error {
	var game models.MiniGame
	if err := s.DB.WithContext(c.UserContext()).First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch game"})
	}
	return c.JSON(game)
}
