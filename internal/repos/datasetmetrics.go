package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type DatasetMetricsRepo interface {
	Create(ctx context.Context, tx *gorm.DB, metrics *types.DatasetMetrics) (*types.DatasetMetrics, error)
	// GetLatest returns (nil, nil) when no snapshot exists yet.
	GetLatest(ctx context.Context, tx *gorm.DB) (*types.DatasetMetrics, error)
	// UpdateTrainingFields applies a partial update to one snapshot row and
	// reports how many rows matched, so callers can detect a lost race on
	// the latest row.
	UpdateTrainingFields(ctx context.Context, tx *gorm.DB, metricsID uuid.UUID, fields map[string]interface{}) (int64, error)
	History(ctx context.Context, tx *gorm.DB, limit int) ([]*types.DatasetMetrics, error)
}

type datasetMetricsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetMetricsRepo(db *gorm.DB, baseLog *logger.Logger) DatasetMetricsRepo {
	repoLog := baseLog.With("repo", "DatasetMetricsRepo")
	return &datasetMetricsRepo{db: db, log: repoLog}
}

func (dr *datasetMetricsRepo) Create(ctx context.Context, tx *gorm.DB, metrics *types.DatasetMetrics) (*types.DatasetMetrics, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	if err := transaction.WithContext(ctx).Create(metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

func (dr *datasetMetricsRepo) GetLatest(ctx context.Context, tx *gorm.DB) (*types.DatasetMetrics, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.DatasetMetrics
	err := transaction.WithContext(ctx).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *datasetMetricsRepo) UpdateTrainingFields(ctx context.Context, tx *gorm.DB, metricsID uuid.UUID, fields map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.DatasetMetrics{}).
		Where("id = ?", metricsID).
		Updates(fields)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (dr *datasetMetricsRepo) History(ctx context.Context, tx *gorm.DB, limit int) ([]*types.DatasetMetrics, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var results []*types.DatasetMetrics
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
