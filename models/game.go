// models/game.go
package models

// MiniGame is a catalog entry that can be scheduled into an Olympiade round.
type MiniGame struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
	Slug string `json:"slug" gorm:"uniqueIndex;not null"`

	Timestamps
}

// Ref returns the live-state view of the catalog entry.
func (g MiniGame) Ref() GameRef {
	return GameRef{ID: g.ID, Name: g.Name, Slug: g.Slug}
}
