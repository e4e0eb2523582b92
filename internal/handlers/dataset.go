package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/services"
)

// DatasetHandler exposes the admin surface: metrics snapshots, the
// training lifecycle, health and maintenance.
type DatasetHandler struct {
	datasetService services.DatasetService
	metricsService services.MetricsService
	recService     services.RecommendationService
	syncService    services.SyncService
}

func NewDatasetHandler(
	datasetService services.DatasetService,
	metricsService services.MetricsService,
	recService services.RecommendationService,
	syncService services.SyncService,
) *DatasetHandler {
	return &DatasetHandler{
		datasetService: datasetService,
		metricsService: metricsService,
		recService:     recService,
		syncService:    syncService,
	}
}

func (dh *DatasetHandler) Metrics(c *gin.Context) {
	m, err := dh.datasetService.GetDatasetMetrics(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, m)
}

func (dh *DatasetHandler) RecalculateMetrics(c *gin.Context) {
	m, err := dh.metricsService.ComputeSnapshot(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, m)
}

func (dh *DatasetHandler) MetricsHistory(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	history, err := dh.metricsService.History(c.Request.Context(), limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, history)
}

func (dh *DatasetHandler) Health(c *gin.Context) {
	report, err := dh.datasetService.GetDatasetHealth(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, report)
}

func (dh *DatasetHandler) Readiness(c *gin.Context) {
	ready, err := dh.datasetService.IsReadyForTraining(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	shouldRetrain, err := dh.datasetService.ShouldRetrain(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"ready_for_training": ready, "should_retrain": shouldRetrain})
}

func (dh *DatasetHandler) TriggerTraining(c *gin.Context) {
	result, err := dh.datasetService.TriggerTraining(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (dh *DatasetHandler) ScheduleTraining(c *gin.Context) {
	m, err := dh.datasetService.ScheduleTraining(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, m)
}

func (dh *DatasetHandler) TrainingStatus(c *gin.Context) {
	status, err := dh.datasetService.GetTrainingStatus(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, status)
}

func (dh *DatasetHandler) MLServiceStatus(c *gin.Context) {
	RespondOK(c, dh.datasetService.GetMLServiceStatus(c.Request.Context()))
}

func (dh *DatasetHandler) RebuildDataset(c *gin.Context) {
	if err := dh.datasetService.RebuildDataset(c.Request.Context()); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "dataset rebuild completed"})
}

func (dh *DatasetHandler) SystemCleanup(c *gin.Context) {
	if err := dh.datasetService.SystemCleanup(c.Request.Context()); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "system cleanup completed"})
}

func (dh *DatasetHandler) RegenerateAllRecommendations(c *gin.Context) {
	result, err := dh.recService.RegenerateAll(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (dh *DatasetHandler) RecommendationAccuracy(c *gin.Context) {
	accuracy, err := dh.recService.GetAccuracy(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"accuracy": accuracy})
}

func (dh *DatasetHandler) BulkSync(c *gin.Context) {
	staleHours := parseIntQuery(c, "stale_hours", 24)
	result, err := dh.syncService.BulkSync(c.Request.Context(), staleHours)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
