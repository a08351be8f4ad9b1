package services

import (
	"context"
	"strings"

	"game-night-server/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const historyPageSize = 20

// HistoryStore persists finished sessions.
type HistoryStore interface {
	SaveKniffel(ctx context.Context, result models.KniffelResult) error
	SaveOlympiade(ctx context.Context, result models.OlympiadeResult) error
}

// Archiver stores a JSON copy of a finished session and returns where it lives.
type Archiver interface {
	ArchiveJSON(ctx context.Context, key string, v any) (string, error)
}

// HistoryJob is one finished session waiting to be written. Exactly one of
// Kniffel and Olympiade is set. Done, if set, receives the outcome.
type HistoryJob struct {
	Kniffel   *models.KniffelResult
	Olympiade *models.OlympiadeResult
	Done      func(error)
}

// HistoryQueue accepts jobs without blocking the caller.
type HistoryQueue interface {
	Enqueue(job HistoryJob) error
}

// HistoryService writes finished games and tournaments to Postgres and,
// when an archiver is configured, a JSON copy to object storage.
type HistoryService struct {
	DB      *gorm.DB
	archive Archiver
	log     *logrus.Entry
}

func NewHistoryService(db *gorm.DB, archive Archiver, logger *logrus.Logger) *HistoryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HistoryService{DB: db, archive: archive, log: logger.WithField("component", "history")}
}

func (s *HistoryService) SaveKniffel(ctx context.Context, result models.KniffelResult) error {
	rec := kniffelRecord(uuid.NewString(), result)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if err != nil {
		return persistenceFailure(err, "failed to save kniffel game")
	}
	s.log.WithFields(logrus.Fields{"record_id": rec.ID, "players": len(rec.Scores)}).Info("kniffel game saved")
	s.archiveCopy(ctx, GameKniffel+"/"+rec.ID+".json", result)
	return nil
}

func (s *HistoryService) SaveOlympiade(ctx context.Context, result models.OlympiadeResult) error {
	rec := olympiadeRecord(uuid.NewString(), result)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if err != nil {
		return persistenceFailure(err, "failed to save olympiade")
	}
	s.log.WithFields(logrus.Fields{"record_id": rec.ID, "rounds": len(rec.Results), "finished": rec.Finished}).Info("olympiade saved")
	s.archiveCopy(ctx, GameOlympiade+"/"+rec.ID+".json", result)
	return nil
}

// archiveCopy is best effort; the database row is the record of truth.
func (s *HistoryService) archiveCopy(ctx context.Context, key string, v any) {
	if s.archive == nil {
		return
	}
	url, err := s.archive.ArchiveJSON(ctx, key, v)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("archive upload failed")
		return
	}
	s.log.WithField("url", url).Debug("archived")
}

// RecentKniffelGames lists the latest saved dice games with their scores.
func (s *HistoryService) RecentKniffelGames(c *fiber.Ctx) error {
	var games []models.KniffelGameRecord
	err := s.DB.WithContext(c.UserContext()).
		Preload("Scores", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		Order("finished_at DESC").Limit(historyPageSize).Find(&games).Error
	if err != nil {
		s.log.WithError(err).Error("list kniffel history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch history"})
	}
	return c.JSON(games)
}

// RecentOlympiades lists the latest ended tournaments.
func (s *HistoryService) RecentOlympiades(c *fiber.Ctx) error {
	var rows []models.OlympiadeRecord
	err := s.DB.WithContext(c.UserContext()).
		Preload("Players").
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("round_number ASC") }).
		Order("ended_at DESC").Limit(historyPageSize).Find(&rows).Error
	if err != nil {
		s.log.WithError(err).Error("list olympiade history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch history"})
	}
	return c.JSON(rows)
}

func kniffelRecord(id string, result models.KniffelResult) models.KniffelGameRecord {
	rec := models.KniffelGameRecord{ID: id, FinishedAt: result.FinishedAt}
	for _, sc := range result.Scores {
		rec.Scores = append(rec.Scores, models.KniffelScoreRecord{
			ID:          uuid.NewString(),
			GameID:      id,
			PlayerID:    sc.PlayerID,
			DisplayName: sc.DisplayName,
			Upper:       sc.Totals.Upper,
			Bonus:       sc.Totals.Bonus,
			Lower:       sc.Totals.LowerTotal,
			GrandTotal:  sc.Totals.GrandTotal,
			Rank:        sc.Rank,
		})
	}
	return rec
}

func olympiadeRecord(id string, result models.OlympiadeResult) models.OlympiadeRecord {
	rec := models.OlympiadeRecord{
		ID:       id,
		GameIDs:  strings.Join(gameIDs(result.Games), ","),
		Finished: result.Finished,
		EndedAt:  result.EndedAt,
	}
	for _, p := range result.Players {
		rec.Players = append(rec.Players, models.OlympiadePlayerRecord{
			ID:          uuid.NewString(),
			OlympiadeID: id,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			FinalScore:  p.Score,
		})
	}
	for _, r := range result.Results {
		rec.Results = append(rec.Results, models.OlympiadeResultRecord{
			ID:             uuid.NewString(),
			OlympiadeID:    id,
			GameID:         r.GameID,
			RoundNumber:    r.RoundNumber,
			WinnerPlayerID: r.WinnerPlayerID,
			PointsAwarded:  r.PointsAwarded,
		})
	}
	return rec
}
