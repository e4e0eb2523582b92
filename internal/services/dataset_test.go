package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	"github.com/cinematch/cinematch-backend/internal/types"
)

func seedSnapshot(t *testing.T, repo *fakeMetricsRepo, m *types.DatasetMetrics) *types.DatasetMetrics {
	t.Helper()
	saved, err := repo.Create(context.Background(), nil, m)
	if err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	return saved
}

func newDatasetServiceForTest(metricsRepo *fakeMetricsRepo, recRepo *fakeRecRepo, ml *fakeMLClient) *datasetService {
	ratingRepo := newFakeRatingRepo()
	metricsService := NewMetricsService(nil, testLogger(), newFakeUserRepo(), &countsMovieRepo{byThreshold: map[int64]int64{}}, ratingRepo, metricsRepo, 5)
	svc := NewDatasetService(nil, testLogger(), metricsService, metricsRepo, recRepo, ml, 10, 100, 0)
	return svc.(*datasetService)
}

func TestIsReadyForTraining(t *testing.T) {
	cases := []struct {
		name     string
		snapshot *types.DatasetMetrics
		want     bool
	}{
		{name: "no_snapshot", snapshot: nil, want: false},
		{
			name:     "both_at_threshold",
			snapshot: &types.DatasetMetrics{TotalUsers: 10, TotalRatings: 100},
			want:     true,
		},
		{
			name:     "users_below_threshold",
			snapshot: &types.DatasetMetrics{TotalUsers: 9, TotalRatings: 100},
			want:     false,
		},
		{
			name:     "ratings_below_threshold",
			snapshot: &types.DatasetMetrics{TotalUsers: 10, TotalRatings: 99},
			want:     false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metricsRepo := &fakeMetricsRepo{}
			if tc.snapshot != nil {
				seedSnapshot(t, metricsRepo, tc.snapshot)
			}
			ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, &fakeMLClient{})
			got, err := ds.IsReadyForTraining(context.Background())
			if err != nil {
				t.Fatalf("IsReadyForTraining: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ready=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestTriggerTrainingNotReadyLeavesStateUntouched(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     5,
		TotalRatings:   50,
		TrainingStatus: types.TrainingPending,
	})
	ml := &fakeMLClient{}
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, ml)

	_, err := ds.TriggerTraining(context.Background())
	if !apierr.IsNotReady(err) {
		t.Fatalf("err=%v, want not_ready", err)
	}
	if ml.trainCalls != 0 {
		t.Fatalf("trainer called %d times on a not-ready dataset", ml.trainCalls)
	}
	if len(metricsRepo.updates) != 0 {
		t.Fatalf("training fields mutated on a refused trigger: %v", metricsRepo.updates)
	}
}

func TestTriggerTrainingRefusedWhileInProgress(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		TrainingStatus: types.TrainingInProgress,
	})
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, &fakeMLClient{})

	_, err := ds.TriggerTraining(context.Background())
	if !apierr.IsNotReady(err) {
		t.Fatalf("err=%v, want not_ready", err)
	}
}

func TestTriggerTrainingSuccess(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	snap := seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		ModelVersion:   "1.0.0",
		TrainingStatus: types.TrainingPending,
	})
	ml := &fakeMLClient{trainResult: &mlservice.TrainResult{ModelVersion: "2.0.0"}}
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, ml)

	result, err := ds.TriggerTraining(context.Background())
	if err != nil {
		t.Fatalf("TriggerTraining: %v", err)
	}
	if result.ModelVersion != "2.0.0" {
		t.Fatalf("model version=%q, want 2.0.0", result.ModelVersion)
	}
	if snap.TrainingStatus != types.TrainingCompleted {
		t.Fatalf("training status=%q, want COMPLETED", snap.TrainingStatus)
	}
	if snap.ModelVersion != "2.0.0" {
		t.Fatalf("persisted model version=%q, want 2.0.0", snap.ModelVersion)
	}
	if snap.LastTrainingStarted == nil || snap.LastTrainingCompleted == nil {
		t.Fatal("training timestamps not stamped")
	}
	if snap.TrainingError != nil {
		t.Fatalf("training error=%q, want cleared", *snap.TrainingError)
	}
}

func TestTriggerTrainingCompletesLatestSnapshotAfterRecompute(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		ModelVersion:   "1.0.0",
		TrainingStatus: types.TrainingPending,
	})
	ml := &fakeMLClient{trainResult: &mlservice.TrainResult{ModelVersion: "2.0.0"}}
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, ml)

	// A metrics recomputation lands while the trainer runs. It appends a
	// new latest snapshot that carries the IN_PROGRESS status forward; the
	// terminal write must land on that row, not the one read at trigger
	// time.
	ml.trainHook = func() {
		if _, err := ds.metricsService.ComputeSnapshot(context.Background()); err != nil {
			t.Errorf("interleaved ComputeSnapshot: %v", err)
		}
	}

	if _, err := ds.TriggerTraining(context.Background()); err != nil {
		t.Fatalf("TriggerTraining: %v", err)
	}
	if len(metricsRepo.snapshots) != 2 {
		t.Fatalf("snapshot count=%d, want 2", len(metricsRepo.snapshots))
	}

	latest, err := metricsRepo.GetLatest(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.TrainingStatus != types.TrainingCompleted {
		t.Fatalf("latest training status=%q, want COMPLETED", latest.TrainingStatus)
	}
	if latest.ModelVersion != "2.0.0" {
		t.Fatalf("latest model version=%q, want 2.0.0", latest.ModelVersion)
	}
	if latest.LastTrainingCompleted == nil {
		t.Fatal("completion timestamp not stamped on the latest snapshot")
	}
	if !latest.TrainingStatus.CanTransitionTo(types.TrainingInProgress) {
		t.Fatal("training lifecycle wedged after interleaved recompute")
	}
}

func TestTriggerTrainingFailureRecordsDiagnostic(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	snap := seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		TrainingStatus: types.TrainingPending,
	})
	ml := &fakeMLClient{trainErr: errors.New("trainer exploded")}
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, ml)

	_, err := ds.TriggerTraining(context.Background())
	if !apierr.IsTrainingFailed(err) {
		t.Fatalf("err=%v, want training_failed", err)
	}
	if snap.TrainingStatus != types.TrainingFailed {
		t.Fatalf("training status=%q, want FAILED", snap.TrainingStatus)
	}
	if snap.TrainingError == nil || !strings.Contains(*snap.TrainingError, "trainer exploded") {
		t.Fatalf("training error=%v, want diagnostic", snap.TrainingError)
	}
}

func TestTriggerTrainingFailureDiagnosticTruncated(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	snap := seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		TrainingStatus: types.TrainingPending,
	})
	ml := &fakeMLClient{trainErr: errors.New(strings.Repeat("x", 800))}
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, ml)

	_, _ = ds.TriggerTraining(context.Background())
	if snap.TrainingError == nil || len(*snap.TrainingError) != 500 {
		t.Fatalf("diagnostic length=%d, want 500", len(*snap.TrainingError))
	}
}

func TestScheduleTraining(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:     50,
		TotalRatings:   500,
		TrainingStatus: types.TrainingPending,
	})
	ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, &fakeMLClient{})

	m, err := ds.ScheduleTraining(context.Background())
	if err != nil {
		t.Fatalf("ScheduleTraining: %v", err)
	}
	if m.TrainingStatus != types.TrainingScheduled {
		t.Fatalf("training status=%q, want SCHEDULED", m.TrainingStatus)
	}

	// SCHEDULED cannot be re-scheduled.
	if _, err := ds.ScheduleTraining(context.Background()); !apierr.IsNotReady(err) {
		t.Fatalf("err=%v, want not_ready on double schedule", err)
	}
}

func TestShouldRetrain(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)

	cases := []struct {
		name     string
		snapshot *types.DatasetMetrics
		want     bool
	}{
		{name: "no_snapshot", snapshot: nil, want: false},
		{
			name: "in_progress_never_retrains",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 50, TotalRatings: 500,
				TrainingStatus:        types.TrainingInProgress,
				LastTrainingCompleted: &stale,
			},
			want: false,
		},
		{
			name: "ready_never_completed",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 50, TotalRatings: 500,
				TrainingStatus: types.TrainingPending,
			},
			want: true,
		},
		{
			name: "not_ready_never_completed",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 5, TotalRatings: 50,
				TrainingStatus: types.TrainingPending,
			},
			want: false,
		},
		{
			name: "completed_recently",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 50, TotalRatings: 500,
				TrainingStatus:        types.TrainingCompleted,
				LastTrainingCompleted: &recent,
			},
			want: false,
		},
		{
			name: "completed_stale_and_ready",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 50, TotalRatings: 500,
				TrainingStatus:        types.TrainingCompleted,
				LastTrainingCompleted: &stale,
			},
			want: true,
		},
		{
			name: "completed_stale_but_not_ready",
			snapshot: &types.DatasetMetrics{
				TotalUsers: 5, TotalRatings: 50,
				TrainingStatus:        types.TrainingCompleted,
				LastTrainingCompleted: &stale,
			},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metricsRepo := &fakeMetricsRepo{}
			if tc.snapshot != nil {
				seedSnapshot(t, metricsRepo, tc.snapshot)
			}
			ds := newDatasetServiceForTest(metricsRepo, &fakeRecRepo{}, &fakeMLClient{})
			ds.now = func() time.Time { return now }

			got, err := ds.ShouldRetrain(context.Background())
			if err != nil {
				t.Fatalf("ShouldRetrain: %v", err)
			}
			if got != tc.want {
				t.Fatalf("should retrain=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestSystemCleanupPrunesStaleVersions(t *testing.T) {
	metricsRepo := &fakeMetricsRepo{}
	seedSnapshot(t, metricsRepo, &types.DatasetMetrics{
		TotalUsers:   50,
		TotalRatings: 500,
		ModelVersion: "2.0.0",
	})
	recRepo := &fakeRecRepo{recs: []*types.Recommendation{
		{ModelVersion: "1.0.0"},
		{ModelVersion: "2.0.0"},
		{ModelVersion: "1.5.0"},
	}}
	ds := newDatasetServiceForTest(metricsRepo, recRepo, &fakeMLClient{})

	if err := ds.SystemCleanup(context.Background()); err != nil {
		t.Fatalf("SystemCleanup: %v", err)
	}
	for _, r := range recRepo.recs {
		if r.ModelVersion != "2.0.0" {
			t.Fatalf("stale version %q survived cleanup", r.ModelVersion)
		}
	}
}
