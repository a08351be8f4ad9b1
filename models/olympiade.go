// models/olympiade.go
package models

import "time"

// SelectionMode is how the next mini-game of a round is chosen.
type SelectionMode string

const (
	SelectManual SelectionMode = "manual"
	SelectRandom SelectionMode = "random"
)

// NoGameSelected is the CurrentGameIndex value when no mini-game is picked.
const NoGameSelected = -1

// GameRef is the lightweight view of a mini-game used inside live state.
type GameRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OlympiadePlayer is a tournament participant with their running score.
type OlympiadePlayer struct {
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	Score        int    `json:"score"`
	ConnectionID string `json:"-"`
}

// RoundResult records the winner of one judged mini-game.
type RoundResult struct {
	GameID         string `json:"gameId"`
	RoundNumber    int    `json:"round"`
	WinnerPlayerID string `json:"winnerPlayerId"`
	PointsAwarded  int    `json:"pointsAwarded"`
}

// OlympiadeState is the full tournament snapshot sent to every client.
type OlympiadeState struct {
	IsActive          bool              `json:"isActive"`
	SelectedGamesList []GameRef         `json:"selectedGamesList"`
	Players           []OlympiadePlayer `json:"players"`
	CurrentGameIndex  int               `json:"currentGameIndex"`
	Results           []RoundResult     `json:"results"`
	SpinPending       bool              `json:"spinPending"`
}

// Standing is one row of the final ranking.
type Standing struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// SpinAnnouncement is broadcast when a random selection has picked its target.
type SpinAnnouncement struct {
	TargetGameID  string    `json:"targetGameId"`
	CandidatePool []GameRef `json:"availableGames"`
}

// TournamentFinished is broadcast once every selected mini-game is judged.
type TournamentFinished struct {
	Results   []RoundResult `json:"results"`
	Standings []Standing    `json:"standings"`
}

// OlympiadeResult is the immutable record handed to persistence on end.
type OlympiadeResult struct {
	Games    []GameRef         `json:"games"`
	Players  []OlympiadePlayer `json:"players"`
	Results  []RoundResult     `json:"results"`
	Finished bool              `json:"finished"`
	EndedAt  time.Time         `json:"endedAt"`
}
