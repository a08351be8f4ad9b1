// models/kniffel.go
package models

import "time"

// Section groups scoreboard categories into the upper and lower block.
type Section string

const (
	SectionUpper Section = "upper"
	SectionLower Section = "lower"
)

// CategoryID names one of the 13 fixed scoring slots.
type CategoryID string

const (
	CategoryOnes          CategoryID = "ones"
	CategoryTwos          CategoryID = "twos"
	CategoryThrees        CategoryID = "threes"
	CategoryFours         CategoryID = "fours"
	CategoryFives         CategoryID = "fives"
	CategorySixes         CategoryID = "sixes"
	CategoryThreeOfAKind  CategoryID = "threeOfAKind"
	CategoryFourOfAKind   CategoryID = "fourOfAKind"
	CategoryFullHouse     CategoryID = "fullHouse"
	CategorySmallStraight CategoryID = "smallStraight"
	CategoryLargeStraight CategoryID = "largeStraight"
	CategoryKniffel       CategoryID = "kniffel"
	CategoryChance        CategoryID = "chance"
)

// KniffelPhase is the lifecycle position of the dice table.
type KniffelPhase string

const (
	KniffelIdle     KniffelPhase = "idle"
	KniffelPlaying  KniffelPhase = "playing"
	KniffelFinished KniffelPhase = "finished"
)

// Player is a participant of one engine instance.
// ConnectionID is only a back-reference for disconnect handling and never leaves the server.
type Player struct {
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	ConnectionID string `json:"-"`
}

// ScoreRow is one category row of a player's scoreboard.
type ScoreRow struct {
	ID             CategoryID `json:"id"`
	Name           string     `json:"name"`
	Section        Section    `json:"section"`
	Score          *int       `json:"score"` // nil until committed
	PotentialScore int        `json:"potentialScore"`
	IsSet          bool       `json:"isSet"`
}

// TotalScores are the aggregates derived from the committed rows.
type TotalScores struct {
	Upper      int `json:"upper"`
	Bonus      int `json:"bonus"`
	UpperTotal int `json:"upperTotal"`
	LowerTotal int `json:"lowerTotal"`
	GrandTotal int `json:"grandTotal"`
}

// Die is a single die slot. Value 0 means the die has not been rolled this turn.
type Die struct {
	Value  int  `json:"value"`
	IsHeld bool `json:"isHeld"`
}

// KniffelState is the full snapshot of the dice table sent to every client.
type KniffelState struct {
	Phase            KniffelPhase           `json:"phase"`
	IsActive         bool                   `json:"isActive"`
	Players          []Player               `json:"players"`
	Scoreboards      map[string][]ScoreRow  `json:"scoreboards"`
	TotalScores      map[string]TotalScores `json:"totalScores"`
	ActivePlayerID   string                 `json:"activePlayerId"`
	Dice             []Die                  `json:"currentDice"`
	RollCount        int                    `json:"rollCount"`
	LastRollNotation string                 `json:"lastRollNotation,omitempty"`
	RollSeq          int                    `json:"rollSeq"`
}

// KniffelFinalScore is one line of a finished game handed to persistence.
type KniffelFinalScore struct {
	PlayerID    string      `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Totals      TotalScores `json:"totals"`
	Rank        int         `json:"rank"`
}

// KniffelResult is the immutable record of a finished dice game.
type KniffelResult struct {
	FinishedAt time.Time           `json:"finishedAt"`
	Scores     []KniffelFinalScore `json:"scores"`
}
