package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type RecommendationRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, recs []*types.Recommendation) ([]*types.Recommendation, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, recIDs []uuid.UUID) ([]*types.Recommendation, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Recommendation, error)
	GetActiveByUserAndAlgorithm(ctx context.Context, tx *gorm.DB, userID uuid.UUID, algorithm string) ([]*types.Recommendation, error)
	GetActiveByUserOrderByScore(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Recommendation, error)
	DeleteByUserNotVersion(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currentVersion string) (int64, error)
	DeleteNotVersion(ctx context.Context, tx *gorm.DB, currentVersion string) (int64, error)
	SetViewedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, viewedAt time.Time) error
	SetClickedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, clickedAt time.Time) error
	SetHidden(ctx context.Context, tx *gorm.DB, recID uuid.UUID) error
	CountActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	repoLog := baseLog.With("repo", "RecommendationRepo")
	return &recommendationRepo{db: db, log: repoLog}
}

func (rr *recommendationRepo) CreateBatch(ctx context.Context, tx *gorm.DB, recs []*types.Recommendation) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(recs) == 0 {
		return []*types.Recommendation{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (rr *recommendationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, recIDs []uuid.UUID) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Recommendation
	if len(recIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", recIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Recommendation
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND is_hidden = ?", userID, false).
		Order("rank ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) GetActiveByUserAndAlgorithm(ctx context.Context, tx *gorm.DB, userID uuid.UUID, algorithm string) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Recommendation
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND algorithm = ? AND is_hidden = ?", userID, algorithm, false).
		Order("rank ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) GetActiveByUserOrderByScore(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Recommendation
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND is_hidden = ?", userID, false).
		Order("score DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) DeleteByUserNotVersion(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currentVersion string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	result := transaction.WithContext(ctx).
		Where("user_id = ? AND model_version != ?", userID, currentVersion).
		Delete(&types.Recommendation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (rr *recommendationRepo) DeleteNotVersion(ctx context.Context, tx *gorm.DB, currentVersion string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	result := transaction.WithContext(ctx).
		Where("model_version != ?", currentVersion).
		Delete(&types.Recommendation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetViewedAt stamps viewed_at once; a second call is a no-op because the
// update is guarded on the column still being null.
func (rr *recommendationRepo) SetViewedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, viewedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Recommendation{}).
		Where("id = ? AND viewed_at IS NULL", recID).
		Update("viewed_at", viewedAt).Error
}

func (rr *recommendationRepo) SetClickedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, clickedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Recommendation{}).
		Where("id = ? AND clicked_at IS NULL", recID).
		Update("clicked_at", clickedAt).Error
}

func (rr *recommendationRepo) SetHidden(ctx context.Context, tx *gorm.DB, recID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Recommendation{}).
		Where("id = ?", recID).
		Update("is_hidden", true).Error
}

func (rr *recommendationRepo) CountActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Recommendation{}).
		Where("user_id = ? AND is_hidden = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *recommendationRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Recommendation{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
