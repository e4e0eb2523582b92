package types

import (
	"time"

	"github.com/google/uuid"
)

// DatasetMetrics is one append-only snapshot of dataset health numbers.
// The most recent row by creation time is the "latest" snapshot; it is
// never rewritten once superseded, except for in-place training-status
// updates while it is still the latest row.
type DatasetMetrics struct {
	ID                    uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TotalUsers            int64          `gorm:"not null;column:total_users" json:"total_users"`
	TotalMovies           int64          `gorm:"not null;column:total_movies" json:"total_movies"`
	TotalRatings          int64          `gorm:"not null;column:total_ratings" json:"total_ratings"`
	Sparsity              float64        `gorm:"not null;column:sparsity" json:"sparsity"`
	ActiveUsers           int64          `gorm:"not null;default:0;column:active_users" json:"active_users"`
	PopularMovies         int64          `gorm:"not null;default:0;column:popular_movies" json:"popular_movies"`
	AvgRatingsPerUser     float64        `gorm:"not null;default:0;column:avg_ratings_per_user" json:"avg_ratings_per_user"`
	AvgRatingsPerMovie    float64        `gorm:"not null;default:0;column:avg_ratings_per_movie" json:"avg_ratings_per_movie"`
	AvgRatingValue        float64        `gorm:"not null;default:0;column:avg_rating_value" json:"avg_rating_value"`
	ModelVersion          string         `gorm:"not null;default:'1.0.0';column:model_version" json:"model_version"`
	TrainingStatus        TrainingStatus `gorm:"not null;default:'PENDING';column:training_status" json:"training_status"`
	LastTrainingStarted   *time.Time     `gorm:"column:last_training_started" json:"last_training_started"`
	LastTrainingCompleted *time.Time     `gorm:"column:last_training_completed" json:"last_training_completed"`
	TrainingError         *string        `gorm:"column:training_error" json:"training_error"`
	CreatedAt             time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DatasetMetrics) TableName() string {
	return "dataset_metrics"
}
