// models/history.go
package models

import "time"

// KniffelGameRecord is a finished dice game.
type KniffelGameRecord struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	FinishedAt time.Time `json:"finished_at" gorm:"index;not null"`

	Scores []KniffelScoreRecord `json:"scores" gorm:"foreignKey:GameID"`

	Timestamps
}

type KniffelScoreRecord struct {
	ID          string `json:"id" gorm:"primaryKey"`
	GameID      string `json:"game_id" gorm:"index;not null"`
	PlayerID    string `json:"player_id" gorm:"index;not null"`
	DisplayName string `json:"display_name"`
	Upper       int    `json:"upper"`
	Bonus       int    `json:"bonus"`
	Lower       int    `json:"lower"`
	GrandTotal  int    `json:"grand_total"`
	Rank        int    `json:"rank"`
}

// OlympiadeRecord is an ended tournament, complete or aborted.
type OlympiadeRecord struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	GameIDs  string    `json:"game_ids" gorm:"not null"` // comma separated, in selection order
	Finished bool      `json:"finished" gorm:"default:false"`
	EndedAt  time.Time `json:"ended_at" gorm:"index"`

	Players []OlympiadePlayerRecord `json:"players" gorm:"foreignKey:OlympiadeID"`
	Results []OlympiadeResultRecord `json:"results" gorm:"foreignKey:OlympiadeID"`

	Timestamps
}

type OlympiadePlayerRecord struct {
	ID          string `json:"id" gorm:"primaryKey"`
	OlympiadeID string `json:"olympiade_id" gorm:"index;not null"`
	PlayerID    string `json:"player_id" gorm:"index;not null"`
	DisplayName string `json:"display_name"`
	FinalScore  int    `json:"final_score"`
}

type OlympiadeResultRecord struct {
	ID             string `json:"id" gorm:"primaryKey"`
	OlympiadeID    string `json:"olympiade_id" gorm:"index;not null"`
	GameID         string `json:"game_id" gorm:"not null"`
	RoundNumber    int    `json:"round_number" gorm:"not null"`
	WinnerPlayerID string `json:"winner_player_id" gorm:"not null"`
	PointsAwarded  int    `json:"points_awarded" gorm:"not null"`
}
