package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type MovieRepo interface {
	Create(ctx context.Context, tx *gorm.DB, movies []*types.Movie) ([]*types.Movie, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, movieIDs []uuid.UUID) ([]*types.Movie, error)
	GetByTmdbIDs(ctx context.Context, tx *gorm.DB, tmdbIDs []int64) ([]*types.Movie, error)
	GetByLetterboxdIDs(ctx context.Context, tx *gorm.DB, letterboxdIDs []string) ([]*types.Movie, error)
	Update(ctx context.Context, tx *gorm.DB, movie *types.Movie) error
	Delete(ctx context.Context, tx *gorm.DB, movieID uuid.UUID) error
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Movie, error)
	SearchByTitle(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*types.Movie, error)
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
	CountWithMinRatings(ctx context.Context, tx *gorm.DB, minRatings int64) (int64, error)
}

type movieRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMovieRepo(db *gorm.DB, baseLog *logger.Logger) MovieRepo {
	repoLog := baseLog.With("repo", "MovieRepo")
	return &movieRepo{db: db, log: repoLog}
}

func (mr *movieRepo) Create(ctx context.Context, tx *gorm.DB, movies []*types.Movie) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(movies) == 0 {
		return []*types.Movie{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

func (mr *movieRepo) GetByIDs(ctx context.Context, tx *gorm.DB, movieIDs []uuid.UUID) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Movie
	if len(movieIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", movieIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *movieRepo) GetByTmdbIDs(ctx context.Context, tx *gorm.DB, tmdbIDs []int64) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Movie
	if len(tmdbIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("tmdb_id IN ?", tmdbIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *movieRepo) GetByLetterboxdIDs(ctx context.Context, tx *gorm.DB, letterboxdIDs []string) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Movie
	if len(letterboxdIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("letterboxd_id IN ?", letterboxdIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *movieRepo) Update(ctx context.Context, tx *gorm.DB, movie *types.Movie) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	return transaction.WithContext(ctx).Save(movie).Error
}

func (mr *movieRepo) Delete(ctx context.Context, tx *gorm.DB, movieID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", movieID).
		Delete(&types.Movie{}).Error
}

func (mr *movieRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Movie
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *movieRepo) SearchByTitle(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*types.Movie, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Movie
	if err := transaction.WithContext(ctx).
		Where("title ILIKE ?", "%"+query+"%").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *movieRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Movie{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountWithMinRatings counts movies with at least minRatings ratings,
// derived from the rating table rather than the denormalized counter.
func (mr *movieRepo) CountWithMinRatings(ctx context.Context, tx *gorm.DB, minRatings int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).Raw(`
    SELECT COUNT(*) FROM (
      SELECT movie_id FROM rating GROUP BY movie_id HAVING COUNT(*) >= ?
    ) qualified`, minRatings).
		Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
