package types

import (
	"time"

	"github.com/google/uuid"
)

type Rating struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_rating_user_movie;column:user_id" json:"user_id"`
	MovieID            uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_rating_user_movie;column:movie_id" json:"movie_id"`
	Value              float64    `gorm:"not null;column:value" json:"value"`
	ReviewText         string     `gorm:"column:review_text" json:"review_text"`
	WatchedDate        *time.Time `gorm:"column:watched_date" json:"watched_date"`
	IsRewatch          bool       `gorm:"not null;default:false;column:is_rewatch" json:"is_rewatch"`
	LetterboxdReviewID *string    `gorm:"column:letterboxd_review_id" json:"letterboxd_review_id"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Rating) TableName() string {
	return "rating"
}
