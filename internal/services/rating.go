package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

const (
	minRatingValue = 0.5
	maxRatingValue = 5.0
)

type RatingService interface {
	RateMovie(ctx context.Context, rating *types.Rating) (*types.Rating, error)
	GetUserRatings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Rating, error)
	GetMovieRatings(ctx context.Context, movieID uuid.UUID, limit, offset int) ([]*types.Rating, error)
	DeleteRating(ctx context.Context, ratingID uuid.UUID) error
	UserRatingStats(ctx context.Context, userID uuid.UUID) (*UserRatingStats, error)
}

type UserRatingStats struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

type ratingService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	movieRepo  repos.MovieRepo
	ratingRepo repos.RatingRepo
}

func NewRatingService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	movieRepo repos.MovieRepo,
	ratingRepo repos.RatingRepo,
) RatingService {
	serviceLog := log.With("service", "RatingService")
	return &ratingService{
		db:         db,
		log:        serviceLog,
		userRepo:   userRepo,
		movieRepo:  movieRepo,
		ratingRepo: ratingRepo,
	}
}

// RateMovie upserts on (user, movie): re-rating a film replaces the value
// instead of duplicating the pair.
func (rs *ratingService) RateMovie(ctx context.Context, rating *types.Rating) (*types.Rating, error) {
	if rating.Value < minRatingValue || rating.Value > maxRatingValue {
		return nil, apierr.Validation("rating value must be between %.1f and %.1f", minRatingValue, maxRatingValue)
	}

	users, err := rs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rating.UserID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apierr.NotFound("user %s not found", rating.UserID)
	}
	movies, err := rs.movieRepo.GetByIDs(ctx, nil, []uuid.UUID{rating.MovieID})
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, apierr.NotFound("movie %s not found", rating.MovieID)
	}

	saved, err := rs.ratingRepo.Upsert(ctx, nil, []*types.Rating{rating})
	if err != nil {
		return nil, err
	}
	return saved[0], nil
}

func (rs *ratingService) GetUserRatings(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return rs.ratingRepo.GetByUserID(ctx, nil, userID, limit, offset)
}

func (rs *ratingService) GetMovieRatings(ctx context.Context, movieID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return rs.ratingRepo.GetByMovieID(ctx, nil, movieID, limit, offset)
}

func (rs *ratingService) DeleteRating(ctx context.Context, ratingID uuid.UUID) error {
	return rs.ratingRepo.Delete(ctx, nil, ratingID)
}

func (rs *ratingService) UserRatingStats(ctx context.Context, userID uuid.UUID) (*UserRatingStats, error) {
	count, err := rs.ratingRepo.CountByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	avg, err := rs.ratingRepo.AverageByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &UserRatingStats{Count: count, Average: avg}, nil
}
