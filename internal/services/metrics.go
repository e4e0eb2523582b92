package services

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

// RawCounts are the persistence-layer inputs to a snapshot. The derivation
// itself performs no I/O.
type RawCounts struct {
	TotalUsers     int64
	TotalMovies    int64
	TotalRatings   int64
	ActiveUsers    int64
	PopularMovies  int64
	AvgRatingValue float64
}

type MetricsService interface {
	// ComputeSnapshot gathers raw counts, derives the metrics and persists a
	// new snapshot row. Prior snapshots are never mutated.
	ComputeSnapshot(ctx context.Context) (*types.DatasetMetrics, error)
	GetLatest(ctx context.Context) (*types.DatasetMetrics, error)
	// GetOrCompute returns the latest snapshot, computing one first if none
	// exists yet.
	GetOrCompute(ctx context.Context) (*types.DatasetMetrics, error)
	History(ctx context.Context, limit int) ([]*types.DatasetMetrics, error)
}

type metricsService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	movieRepo        repos.MovieRepo
	ratingRepo       repos.RatingRepo
	metricsRepo      repos.DatasetMetricsRepo
	popularThreshold int64
}

func NewMetricsService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	movieRepo repos.MovieRepo,
	ratingRepo repos.RatingRepo,
	metricsRepo repos.DatasetMetricsRepo,
	popularThreshold int64,
) MetricsService {
	serviceLog := log.With("service", "MetricsService")
	if popularThreshold <= 0 {
		popularThreshold = 5
	}
	return &metricsService{
		db:               db,
		log:              serviceLog,
		userRepo:         userRepo,
		movieRepo:        movieRepo,
		ratingRepo:       ratingRepo,
		metricsRepo:      metricsRepo,
		popularThreshold: popularThreshold,
	}
}

// roundHalfUp rounds v to the given number of decimal places, half away
// from zero upward. All inputs here are non-negative.
func roundHalfUp(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Floor(v*p+0.5) / p
}

// deriveSnapshot is the pure numeric core. Every derived value is exact
// zero when its denominator is zero; division by zero never occurs.
// Sparsity is fixed at 6 decimal places, the per-user/per-movie averages
// at 2, the overall rating average at 1, all half-up.
func deriveSnapshot(counts RawCounts) *types.DatasetMetrics {
	m := &types.DatasetMetrics{
		TotalUsers:     counts.TotalUsers,
		TotalMovies:    counts.TotalMovies,
		TotalRatings:   counts.TotalRatings,
		ActiveUsers:    counts.ActiveUsers,
		PopularMovies:  counts.PopularMovies,
		ModelVersion:   "1.0.0",
		TrainingStatus: types.TrainingPending,
	}

	if counts.TotalUsers > 0 && counts.TotalMovies > 0 {
		possible := float64(counts.TotalUsers) * float64(counts.TotalMovies)
		m.Sparsity = roundHalfUp(float64(counts.TotalRatings)/possible, 6)
	}
	if counts.TotalUsers > 0 {
		m.AvgRatingsPerUser = roundHalfUp(float64(counts.TotalRatings)/float64(counts.TotalUsers), 2)
	}
	if counts.TotalMovies > 0 {
		m.AvgRatingsPerMovie = roundHalfUp(float64(counts.TotalRatings)/float64(counts.TotalMovies), 2)
	}
	m.AvgRatingValue = roundHalfUp(counts.AvgRatingValue, 1)

	return m
}

func (ms *metricsService) gatherCounts(ctx context.Context) (RawCounts, error) {
	var counts RawCounts
	var err error

	if counts.TotalUsers, err = ms.userRepo.CountActive(ctx, nil); err != nil {
		return counts, err
	}
	// Movies with at least one rating; the catalog may be larger.
	if counts.TotalMovies, err = ms.movieRepo.CountWithMinRatings(ctx, nil, 1); err != nil {
		return counts, err
	}
	if counts.TotalRatings, err = ms.ratingRepo.CountAll(ctx, nil); err != nil {
		return counts, err
	}
	if counts.ActiveUsers, err = ms.ratingRepo.CountDistinctUsers(ctx, nil); err != nil {
		return counts, err
	}
	if counts.PopularMovies, err = ms.movieRepo.CountWithMinRatings(ctx, nil, ms.popularThreshold); err != nil {
		return counts, err
	}
	if counts.AvgRatingValue, err = ms.ratingRepo.OverallAverage(ctx, nil); err != nil {
		return counts, err
	}
	return counts, nil
}

func (ms *metricsService) ComputeSnapshot(ctx context.Context) (*types.DatasetMetrics, error) {
	ms.log.Info("Calculating dataset metrics")

	counts, err := ms.gatherCounts(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := deriveSnapshot(counts)

	// Training lifecycle fields belong to the logical "latest" record, not
	// to one computation: carry them forward so a recomputation does not
	// erase training history.
	prev, err := ms.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		snapshot.ModelVersion = prev.ModelVersion
		snapshot.TrainingStatus = prev.TrainingStatus
		snapshot.LastTrainingStarted = prev.LastTrainingStarted
		snapshot.LastTrainingCompleted = prev.LastTrainingCompleted
		snapshot.TrainingError = prev.TrainingError
	}

	saved, err := ms.metricsRepo.Create(ctx, nil, snapshot)
	if err != nil {
		return nil, err
	}

	ms.log.Info("Dataset metrics calculated and saved",
		"total_users", saved.TotalUsers,
		"total_movies", saved.TotalMovies,
		"total_ratings", saved.TotalRatings,
		"sparsity", saved.Sparsity,
	)
	return saved, nil
}

func (ms *metricsService) GetLatest(ctx context.Context) (*types.DatasetMetrics, error) {
	return ms.metricsRepo.GetLatest(ctx, nil)
}

func (ms *metricsService) GetOrCompute(ctx context.Context) (*types.DatasetMetrics, error) {
	latest, err := ms.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}
	return ms.ComputeSnapshot(ctx)
}

func (ms *metricsService) History(ctx context.Context, limit int) ([]*types.DatasetMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	return ms.metricsRepo.History(ctx, nil, limit)
}
