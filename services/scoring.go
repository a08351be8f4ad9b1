// services/scoring.go
package services

import (
	"game-night-server/models"
)

const (
	DiceCount      = 5
	DieFaces       = 6
	UpperBonusMin  = 63
	UpperBonus     = 35
	FullHouseScore = 25
	SmallStraight  = 30
	LargeStraight  = 40
	KniffelScore   = 50
)

// CategoryDef describes one fixed scoreboard row.
type CategoryDef struct {
	ID      models.CategoryID
	Name    string
	Section models.Section
	Face    int // upper section only
}

// Categories lists the 13 rows in scoreboard order.
var Categories = []CategoryDef{
	{ID: models.CategoryOnes, Name: "Einser", Section: models.SectionUpper, Face: 1},
	{ID: models.CategoryTwos, Name: "Zweier", Section: models.SectionUpper, Face: 2},
	{ID: models.CategoryThrees, Name: "Dreier", Section: models.SectionUpper, Face: 3},
	{ID: models.CategoryFours, Name: "Vierer", Section: models.SectionUpper, Face: 4},
	{ID: models.CategoryFives, Name: "Fünfer", Section: models.SectionUpper, Face: 5},
	{ID: models.CategorySixes, Name: "Sechser", Section: models.SectionUpper, Face: 6},
	{ID: models.CategoryThreeOfAKind, Name: "Dreierpasch", Section: models.SectionLower},
	{ID: models.CategoryFourOfAKind, Name: "Viererpasch", Section: models.SectionLower},
	{ID: models.CategoryFullHouse, Name: "Full House", Section: models.SectionLower},
	{ID: models.CategorySmallStraight, Name: "Kleine Straße", Section: models.SectionLower},
	{ID: models.CategoryLargeStraight, Name: "Große Straße", Section: models.SectionLower},
	{ID: models.CategoryKniffel, Name: "Kniffel", Section: models.SectionLower},
	{ID: models.CategoryChance, Name: "Chance", Section: models.SectionLower},
}

func lookupCategory(id models.CategoryID) (CategoryDef, bool) {
	for _, def := range Categories {
		if def.ID == id {
			return def, true
		}
	}
	return CategoryDef{}, false
}

// NewScoreboard returns an empty scoreboard with every row uncommitted.
func NewScoreboard() []models.ScoreRow {
	rows := make([]models.ScoreRow, len(Categories))
	for i, def := range Categories {
		rows[i] = models.ScoreRow{ID: def.ID, Name: def.Name, Section: def.Section}
	}
	return rows
}

// ScoreAllCategories maps five die faces to the score each category would yield.
// The result only depends on the multiset of faces.
func ScoreAllCategories(dice [DiceCount]int) (map[models.CategoryID]int, error) {
	var counts [DieFaces + 1]int
	sum := 0
	for _, v := range dice {
		if v < 1 || v > DieFaces {
			return nil, validationf("die value %d out of range", v)
		}
		counts[v]++
		sum += v
	}

	maxCount := 0
	hasThree, hasTwo := false, false
	for face := 1; face <= DieFaces; face++ {
		c := counts[face]
		if c > maxCount {
			maxCount = c
		}
		switch c {
		case 3:
			hasThree = true
		case 2:
			hasTwo = true
		}
	}

	scores := make(map[models.CategoryID]int, len(Categories))
	for _, def := range Categories {
		if def.Section == models.SectionUpper {
			scores[def.ID] = counts[def.Face] * def.Face
		}
	}

	scores[models.CategoryThreeOfAKind] = 0
	if maxCount >= 3 {
		scores[models.CategoryThreeOfAKind] = sum
	}
	scores[models.CategoryFourOfAKind] = 0
	if maxCount >= 4 {
		scores[models.CategoryFourOfAKind] = sum
	}
	scores[models.CategoryFullHouse] = 0
	if (hasThree && hasTwo) || maxCount == 5 {
		scores[models.CategoryFullHouse] = FullHouseScore
	}
	scores[models.CategorySmallStraight] = 0
	if coversRun(counts, 1, 4) || coversRun(counts, 2, 5) || coversRun(counts, 3, 6) {
		scores[models.CategorySmallStraight] = SmallStraight
	}
	scores[models.CategoryLargeStraight] = 0
	if coversRun(counts, 1, 5) || coversRun(counts, 2, 6) {
		scores[models.CategoryLargeStraight] = LargeStraight
	}
	scores[models.CategoryKniffel] = 0
	if maxCount == 5 {
		scores[models.CategoryKniffel] = KniffelScore
	}
	scores[models.CategoryChance] = sum

	return scores, nil
}

// coversRun reports whether every face in [from, to] is present.
func coversRun(counts [DieFaces + 1]int, from, to int) bool {
	for face := from; face <= to; face++ {
		if counts[face] == 0 {
			return false
		}
	}
	return true
}

// ComputeTotals aggregates the committed rows of a scoreboard.
func ComputeTotals(rows []models.ScoreRow) models.TotalScores {
	var t models.TotalScores
	for _, row := range rows {
		if !row.IsSet || row.Score == nil {
			continue
		}
		if row.Section == models.SectionUpper {
			t.Upper += *row.Score
		} else {
			t.LowerTotal += *row.Score
		}
	}
	if t.Upper >= UpperBonusMin {
		t.Bonus = UpperBonus
	}
	t.UpperTotal = t.Upper + t.Bonus
	t.GrandTotal = t.UpperTotal + t.LowerTotal
	return t
}
