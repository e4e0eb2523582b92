package types

import (
	"time"

	"github.com/google/uuid"
)

type Movie struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TmdbID         *int64    `gorm:"uniqueIndex;column:tmdb_id" json:"tmdb_id"`
	LetterboxdID   *string   `gorm:"uniqueIndex;column:letterboxd_id" json:"letterboxd_id"`
	Title          string    `gorm:"not null;column:title" json:"title"`
	Year           int       `gorm:"column:year" json:"year"`
	Genres         []string  `gorm:"serializer:json;column:genres" json:"genres"`
	Director       string    `gorm:"column:director" json:"director"`
	Actors         []string  `gorm:"serializer:json;column:actors" json:"actors"`
	PosterURL      string    `gorm:"column:poster_url" json:"poster_url"`
	Overview       string    `gorm:"column:overview" json:"overview"`
	RuntimeMinutes int       `gorm:"column:runtime_minutes" json:"runtime_minutes"`
	AvgRating      float64   `gorm:"column:avg_rating" json:"avg_rating"`
	RatingCount    int64     `gorm:"not null;default:0;column:rating_count" json:"rating_count"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Movie) TableName() string {
	return "movie"
}
