package types

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is one ranked entry in a user's list for a given
// algorithm and model version. Ranks are contiguous from 1 within
// (user, model version, algorithm); the scorer's order is authoritative.
type Recommendation struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	MovieID      uuid.UUID  `gorm:"type:uuid;not null;index;column:movie_id" json:"movie_id"`
	Score        float64    `gorm:"not null;column:score" json:"score"`
	Algorithm    string     `gorm:"not null;column:algorithm" json:"algorithm"`
	Rank         int        `gorm:"not null;column:rank" json:"rank"`
	ModelVersion string     `gorm:"not null;index;column:model_version" json:"model_version"`
	Explanation  *string    `gorm:"column:explanation" json:"explanation"`
	ViewedAt     *time.Time `gorm:"column:viewed_at" json:"viewed_at"`
	ClickedAt    *time.Time `gorm:"column:clicked_at" json:"clicked_at"`
	IsHidden     bool       `gorm:"not null;default:false;column:is_hidden" json:"is_hidden"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (Recommendation) TableName() string {
	return "recommendation"
}
