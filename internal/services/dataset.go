package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

// DatasetService owns the global training lifecycle carried on the latest
// metrics snapshot: readiness checks, the PENDING/SCHEDULED/IN_PROGRESS/
// COMPLETED/FAILED transitions, and the retrain staleness policy.
type DatasetService interface {
	GetLatestMetrics(ctx context.Context) (*types.DatasetMetrics, error)
	GetDatasetMetrics(ctx context.Context) (*types.DatasetMetrics, error)
	IsReadyForTraining(ctx context.Context) (bool, error)
	TriggerTraining(ctx context.Context) (*mlservice.TrainResult, error)
	ScheduleTraining(ctx context.Context) (*types.DatasetMetrics, error)
	ShouldRetrain(ctx context.Context) (bool, error)
	RebuildDataset(ctx context.Context) error
	SystemCleanup(ctx context.Context) error
	GetTrainingStatus(ctx context.Context) (map[string]interface{}, error)
	GetMLServiceStatus(ctx context.Context) map[string]interface{}
	GetDatasetHealth(ctx context.Context) (HealthReport, error)
}

type datasetService struct {
	db              *gorm.DB
	log             *logger.Logger
	metricsService  MetricsService
	metricsRepo     repos.DatasetMetricsRepo
	recRepo         repos.RecommendationRepo
	mlClient        mlservice.Client
	minUsers        int64
	minRatings      int64
	stalenessWindow time.Duration
	now             func() time.Time
}

const defaultStalenessWindow = 7 * 24 * time.Hour

func NewDatasetService(
	db *gorm.DB,
	log *logger.Logger,
	metricsService MetricsService,
	metricsRepo repos.DatasetMetricsRepo,
	recRepo repos.RecommendationRepo,
	mlClient mlservice.Client,
	minUsers int64,
	minRatings int64,
	stalenessWindow time.Duration,
) DatasetService {
	serviceLog := log.With("service", "DatasetService")
	if stalenessWindow <= 0 {
		stalenessWindow = defaultStalenessWindow
	}
	return &datasetService{
		db:              db,
		log:             serviceLog,
		metricsService:  metricsService,
		metricsRepo:     metricsRepo,
		recRepo:         recRepo,
		mlClient:        mlClient,
		minUsers:        minUsers,
		minRatings:      minRatings,
		stalenessWindow: stalenessWindow,
		now:             time.Now,
	}
}

func (ds *datasetService) GetLatestMetrics(ctx context.Context) (*types.DatasetMetrics, error) {
	return ds.metricsRepo.GetLatest(ctx, nil)
}

func (ds *datasetService) GetDatasetMetrics(ctx context.Context) (*types.DatasetMetrics, error) {
	return ds.metricsService.GetOrCompute(ctx)
}

// IsReadyForTraining is false when no snapshot exists; thresholds are
// inclusive.
func (ds *datasetService) IsReadyForTraining(ctx context.Context) (bool, error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	return m.TotalUsers >= ds.minUsers && m.TotalRatings >= ds.minRatings, nil
}

// TriggerTraining runs one training attempt against the external trainer.
// Failures are recorded on the snapshot and re-raised; this path never
// retries on its own.
func (ds *datasetService) TriggerTraining(ctx context.Context) (*mlservice.TrainResult, error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotReady("dataset not ready for training: no metrics snapshot exists")
	}
	if m.TotalUsers < ds.minUsers || m.TotalRatings < ds.minRatings {
		return nil, apierr.NotReady(
			"dataset not ready for training: need at least %d users and %d ratings",
			ds.minUsers, ds.minRatings,
		)
	}
	if !m.TrainingStatus.CanTransitionTo(types.TrainingInProgress) {
		return nil, apierr.NotReady("training already in progress")
	}

	startedAt := ds.now()
	affected, err := ds.metricsRepo.UpdateTrainingFields(ctx, nil, m.ID, map[string]interface{}{
		"training_status":       types.TrainingInProgress,
		"last_training_started": startedAt,
		"training_error":        nil,
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.NotReady("metrics snapshot changed underneath the training trigger")
	}

	result, trainErr := ds.mlClient.TrainModel(ctx)
	if trainErr != nil {
		ds.recordTrainingFailure(ctx, trainErr)
		return nil, apierr.TrainingFailed(fmt.Errorf("failed to train model: %w", trainErr))
	}

	completedAt := ds.now()
	fields := map[string]interface{}{
		"training_status":         types.TrainingCompleted,
		"last_training_completed": completedAt,
	}
	if result.ModelVersion != "" {
		fields["model_version"] = result.ModelVersion
	}
	// A metrics recomputation during the training call replaces the latest
	// snapshot and carries IN_PROGRESS forward onto it. The terminal status
	// belongs on whatever row is latest now, not the one read at trigger
	// time.
	target := m.ID
	if latest, err := ds.metricsRepo.GetLatest(ctx, nil); err != nil {
		return nil, err
	} else if latest != nil {
		target = latest.ID
	}
	if _, err := ds.metricsRepo.UpdateTrainingFields(ctx, nil, target, fields); err != nil {
		return nil, err
	}

	ds.log.Info("Model training completed successfully", "model_version", result.ModelVersion)
	return result, nil
}

func (ds *datasetService) recordTrainingFailure(ctx context.Context, trainErr error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil || m == nil {
		ds.log.Error("Could not load snapshot to record training failure", "error", err)
		return
	}
	diagnostic := trainErr.Error()
	if len(diagnostic) > 500 {
		diagnostic = diagnostic[:500]
	}
	if _, err := ds.metricsRepo.UpdateTrainingFields(ctx, nil, m.ID, map[string]interface{}{
		"training_status": types.TrainingFailed,
		"training_error":  diagnostic,
	}); err != nil {
		ds.log.Error("Could not persist training failure", "error", err)
	}
}

// ScheduleTraining marks the latest snapshot SCHEDULED. Nothing reaches
// SCHEDULED automatically; this is the explicit admin entry point.
func (ds *datasetService) ScheduleTraining(ctx context.Context) (*types.DatasetMetrics, error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotReady("no metrics snapshot exists to schedule training on")
	}
	if !m.TrainingStatus.CanTransitionTo(types.TrainingScheduled) {
		return nil, apierr.NotReady("cannot schedule training from status %s", m.TrainingStatus)
	}
	if _, err := ds.metricsRepo.UpdateTrainingFields(ctx, nil, m.ID, map[string]interface{}{
		"training_status": types.TrainingScheduled,
	}); err != nil {
		return nil, err
	}
	return ds.metricsRepo.GetLatest(ctx, nil)
}

// ShouldRetrain is policy, not a hard constraint: never while a run is in
// progress, always when ready but never completed, otherwise only when the
// last completion is older than the staleness window.
func (ds *datasetService) ShouldRetrain(ctx context.Context) (bool, error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	if m.TrainingStatus == types.TrainingInProgress {
		return false, nil
	}

	ready := m.TotalUsers >= ds.minUsers && m.TotalRatings >= ds.minRatings
	if m.LastTrainingCompleted == nil {
		return ready, nil
	}
	stale := m.LastTrainingCompleted.Before(ds.now().Add(-ds.stalenessWindow))
	return stale && ready, nil
}

func (ds *datasetService) RebuildDataset(ctx context.Context) error {
	ds.log.Info("Initiating dataset rebuild")

	newMetrics, err := ds.metricsService.ComputeSnapshot(ctx)
	if err != nil {
		return err
	}
	ds.log.Info("Dataset metrics recalculated",
		"total_users", newMetrics.TotalUsers,
		"total_movies", newMetrics.TotalMovies,
		"total_ratings", newMetrics.TotalRatings,
	)

	ready, err := ds.IsReadyForTraining(ctx)
	if err != nil {
		return err
	}
	if !ready {
		ds.log.Warn("Dataset not ready for training, ML rebuild skipped")
		return nil
	}

	if _, err := ds.mlClient.RebuildDataset(ctx); err != nil {
		return fmt.Errorf("failed to rebuild dataset: %w", err)
	}
	ds.log.Info("Dataset rebuild completed successfully")
	return nil
}

// SystemCleanup recomputes metrics, prunes recommendations from superseded
// model versions and asks the ML service to clean up after itself. The ML
// call is best-effort.
func (ds *datasetService) SystemCleanup(ctx context.Context) error {
	ds.log.Info("Starting system cleanup")

	newMetrics, err := ds.metricsService.ComputeSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("system cleanup failed: %w", err)
	}

	if newMetrics.ModelVersion != "" {
		pruned, err := ds.recRepo.DeleteNotVersion(ctx, nil, newMetrics.ModelVersion)
		if err != nil {
			return fmt.Errorf("system cleanup failed: %w", err)
		}
		ds.log.Info("Pruned stale recommendations", "count", pruned, "current_version", newMetrics.ModelVersion)
	}

	if _, err := ds.mlClient.Cleanup(ctx); err != nil {
		ds.log.Warn("ML service cleanup failed (non-critical)", "error", err)
	}

	ds.log.Info("System cleanup completed successfully")
	return nil
}

func (ds *datasetService) GetTrainingStatus(ctx context.Context) (map[string]interface{}, error) {
	return ds.mlClient.TrainingStatus(ctx)
}

// GetMLServiceStatus degrades to a low-detail map instead of raising:
// status probing must never destabilize a caller.
func (ds *datasetService) GetMLServiceStatus(ctx context.Context) map[string]interface{} {
	resp, err := ds.mlClient.Status(ctx)
	if err != nil {
		ds.log.Error("Error getting ML service status", "error", err)
		return map[string]interface{}{
			"status":  "unavailable",
			"message": "Failed to connect to ML service",
			"error":   err.Error(),
		}
	}
	return resp
}

func (ds *datasetService) GetDatasetHealth(ctx context.Context) (HealthReport, error) {
	m, err := ds.metricsRepo.GetLatest(ctx, nil)
	if err != nil {
		return HealthReport{}, err
	}
	return ScoreDatasetHealth(m, ds.minUsers, ds.minRatings), nil
}
