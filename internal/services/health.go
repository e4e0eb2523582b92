package services

import (
	"github.com/cinematch/cinematch-backend/internal/types"
)

type HealthReport struct {
	Status  string                 `json:"status"`
	Score   int                    `json:"score"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusWarning   = "warning"
	HealthStatusUnhealthy = "unhealthy"
)

const sparsityFloor = 0.001

// ScoreDatasetHealth composes a snapshot into a single verdict. Scoring
// starts at 100 and deducts 30 for too few users, 30 for too few ratings,
// 20 for extreme sparsity and 40 for a failed training run; the final
// status is derived from the score, except that a failed training run is
// unhealthy no matter what.
func ScoreDatasetHealth(m *types.DatasetMetrics, minUsers, minRatings int64) HealthReport {
	if m == nil {
		return HealthReport{
			Status:  HealthStatusUnhealthy,
			Score:   0,
			Message: "No dataset metrics available",
		}
	}

	score := 100
	status := HealthStatusHealthy
	message := "Dataset is in good health"

	if m.TotalUsers < minUsers {
		score -= 30
		status = HealthStatusWarning
		message = "Insufficient users for training"
	}

	if m.TotalRatings < minRatings {
		score -= 30
		status = HealthStatusWarning
		message = "Insufficient ratings for training"
	}

	if m.Sparsity < sparsityFloor {
		score -= 20
		if status == HealthStatusHealthy {
			status = HealthStatusWarning
			message = "Dataset is very sparse"
		}
	}

	if m.TrainingStatus == types.TrainingFailed {
		score -= 40
		status = HealthStatusUnhealthy
		message = "Last training failed"
	}

	// Final status follows the score band; the intermediate flips above
	// only decide the message. A failed training run is unhealthy no
	// matter where the score lands.
	if score < 50 {
		status = HealthStatusUnhealthy
	} else if score < 80 {
		status = HealthStatusWarning
	} else {
		status = HealthStatusHealthy
	}
	if m.TrainingStatus == types.TrainingFailed {
		status = HealthStatusUnhealthy
	}

	if score < 0 {
		score = 0
	}

	return HealthReport{
		Status:  status,
		Score:   score,
		Message: message,
		Details: map[string]interface{}{
			"total_users":     m.TotalUsers,
			"total_ratings":   m.TotalRatings,
			"total_movies":    m.TotalMovies,
			"sparsity":        m.Sparsity,
			"training_status": string(m.TrainingStatus),
			"last_updated":    m.CreatedAt,
		},
	}
}
