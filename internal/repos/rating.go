package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type RatingRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, ratings []*types.Rating) ([]*types.Rating, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Rating, error)
	GetByMovieID(ctx context.Context, tx *gorm.DB, movieID uuid.UUID, limit, offset int) ([]*types.Rating, error)
	Delete(ctx context.Context, tx *gorm.DB, ratingID uuid.UUID) error
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
	CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	CountDistinctUsers(ctx context.Context, tx *gorm.DB) (int64, error)
	OverallAverage(ctx context.Context, tx *gorm.DB) (float64, error)
	AverageByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
}

type ratingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRatingRepo(db *gorm.DB, baseLog *logger.Logger) RatingRepo {
	repoLog := baseLog.With("repo", "RatingRepo")
	return &ratingRepo{db: db, log: repoLog}
}

// Upsert writes ratings keyed on (user_id, movie_id); a re-scraped rating
// overwrites the prior value instead of duplicating the pair.
func (rr *ratingRepo) Upsert(ctx context.Context, tx *gorm.DB, ratings []*types.Rating) ([]*types.Rating, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(ratings) == 0 {
		return []*types.Rating{}, nil
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "review_text", "watched_date", "is_rewatch", "updated_at"}),
		}).
		Create(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

func (rr *ratingRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Rating
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *ratingRepo) GetByMovieID(ctx context.Context, tx *gorm.DB, movieID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Rating
	if err := transaction.WithContext(ctx).
		Where("movie_id = ?", movieID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *ratingRepo) Delete(ctx context.Context, tx *gorm.DB, ratingID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", ratingID).
		Delete(&types.Rating{}).Error
}

func (rr *ratingRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Rating{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *ratingRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Rating{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *ratingRepo) CountDistinctUsers(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Rating{}).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *ratingRepo) OverallAverage(ctx context.Context, tx *gorm.DB) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var avg *float64
	if err := transaction.WithContext(ctx).
		Model(&types.Rating{}).
		Select("AVG(value)").
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (rr *ratingRepo) AverageByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var avg *float64
	if err := transaction.WithContext(ctx).
		Model(&types.Rating{}).
		Select("AVG(value)").
		Where("user_id = ?", userID).
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
