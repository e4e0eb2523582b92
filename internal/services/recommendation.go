package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	redisclient "github.com/cinematch/cinematch-backend/internal/clients/redis"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

// RecommendationService persists versioned, ranked recommendation lists
// per user. The scorer's order is authoritative: ranks are assigned from
// response positions and never re-sorted here.
type RecommendationService interface {
	GenerateForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recommendation, error)
	GenerateColdStart(ctx context.Context, userID uuid.UUID, preferredGenres []string) ([]*types.Recommendation, error)
	GetForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recommendation, error)
	GetForUserByAlgorithm(ctx context.Context, userID uuid.UUID, algorithm string) ([]*types.Recommendation, error)
	GetForUserByScore(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Recommendation, error)
	MarkViewed(ctx context.Context, recID uuid.UUID) error
	MarkClicked(ctx context.Context, recID uuid.UUID) error
	Hide(ctx context.Context, recID uuid.UUID) error
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CleanupOldRecommendations(ctx context.Context, currentModelVersion string) (int64, error)
	RegenerateAll(ctx context.Context) (*BulkRegenerateResult, error)
	GetAccuracy(ctx context.Context) (float64, error)
}

type BulkRegenerateResult struct {
	TotalUsers int `json:"total_users"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

type recommendationService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	recRepo  repos.RecommendationRepo
	mlClient mlservice.Client
	cache    redisclient.RecommendationCache
}

const bulkRegenerateConcurrency = 4

func NewRecommendationService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	recRepo repos.RecommendationRepo,
	mlClient mlservice.Client,
	cache redisclient.RecommendationCache,
) RecommendationService {
	serviceLog := log.With("service", "RecommendationService")
	return &recommendationService{
		db:       db,
		log:      serviceLog,
		userRepo: userRepo,
		recRepo:  recRepo,
		mlClient: mlClient,
		cache:    cache,
	}
}

func recCacheKey(userID uuid.UUID) string {
	return "rec:user:" + userID.String()
}

// withTx runs fn inside a transaction when a database handle is present,
// and directly otherwise (test doubles inject repos without a *gorm.DB).
func (rs *recommendationService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if rs.db == nil {
		return fn(nil)
	}
	return rs.db.WithContext(ctx).Transaction(fn)
}

func (rs *recommendationService) requireUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	users, err := rs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apierr.NotFound("user %s not found", userID)
	}
	return users[0], nil
}

func buildRows(userID uuid.UUID, resp *mlservice.RecommendResponse) []*types.Recommendation {
	rows := make([]*types.Recommendation, 0, len(resp.Recommendations))
	for i, scored := range resp.Recommendations {
		rows = append(rows, &types.Recommendation{
			UserID:       userID,
			MovieID:      scored.MovieID,
			Score:        scored.Score,
			Algorithm:    resp.Algorithm,
			Rank:         i + 1,
			ModelVersion: resp.ModelVersion,
			Explanation:  scored.Explanation,
		})
	}
	return rows
}

// GenerateForUser calls the scorer with the user's full history, persists
// the returned list and prunes this user's rows from superseded model
// versions. Inserts happen before the stale delete so a crash between the
// two never leaves the user with zero recommendations.
func (rs *recommendationService) GenerateForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recommendation, error) {
	if _, err := rs.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	rs.log.Info("Generating recommendations", "user_id", userID)

	resp, err := rs.mlClient.RecommendForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows := buildRows(userID, resp)
	err = rs.withTx(ctx, func(tx *gorm.DB) error {
		if _, err := rs.recRepo.CreateBatch(ctx, tx, rows); err != nil {
			return err
		}
		pruned, err := rs.recRepo.DeleteByUserNotVersion(ctx, tx, userID, resp.ModelVersion)
		if err != nil {
			return err
		}
		if pruned > 0 {
			rs.log.Debug("Pruned stale recommendations", "user_id", userID, "count", pruned)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist recommendations: %w", err)
	}

	if rs.cache != nil {
		_ = rs.cache.Invalidate(ctx, recCacheKey(userID))
	}
	return rs.GetForUser(ctx, userID)
}

// GenerateColdStart drives the scorer with stated genre preferences for a
// user with no history. There is nothing to prune: this is the user's
// first set.
func (rs *recommendationService) GenerateColdStart(ctx context.Context, userID uuid.UUID, preferredGenres []string) ([]*types.Recommendation, error) {
	if _, err := rs.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	rs.log.Info("Generating cold start recommendations", "user_id", userID, "genres", preferredGenres)

	resp, err := rs.mlClient.RecommendColdStart(ctx, userID, preferredGenres)
	if err != nil {
		return nil, err
	}

	rows := buildRows(userID, resp)
	if _, err := rs.recRepo.CreateBatch(ctx, nil, rows); err != nil {
		return nil, fmt.Errorf("failed to persist cold start recommendations: %w", err)
	}

	if rs.cache != nil {
		_ = rs.cache.Invalidate(ctx, recCacheKey(userID))
	}
	return rs.GetForUser(ctx, userID)
}

func (rs *recommendationService) GetForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recommendation, error) {
	key := recCacheKey(userID)
	if rs.cache != nil {
		if cached, ok := rs.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	recs, err := rs.recRepo.GetActiveByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	if rs.cache != nil {
		if err := rs.cache.Set(ctx, key, recs); err != nil {
			rs.log.Warn("Failed to cache recommendations", "user_id", userID, "error", err)
		}
	}
	return recs, nil
}

func (rs *recommendationService) GetForUserByAlgorithm(ctx context.Context, userID uuid.UUID, algorithm string) ([]*types.Recommendation, error) {
	return rs.recRepo.GetActiveByUserAndAlgorithm(ctx, nil, userID, algorithm)
}

func (rs *recommendationService) GetForUserByScore(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}
	return rs.recRepo.GetActiveByUserOrderByScore(ctx, nil, userID, limit, offset)
}

func (rs *recommendationService) requireRecommendation(ctx context.Context, recID uuid.UUID) (*types.Recommendation, error) {
	recs, err := rs.recRepo.GetByIDs(ctx, nil, []uuid.UUID{recID})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apierr.NotFound("recommendation %s not found", recID)
	}
	return recs[0], nil
}

// MarkViewed, MarkClicked and Hide are monotonic: the first call stamps
// the field, repeat calls are accepted and change nothing.
func (rs *recommendationService) MarkViewed(ctx context.Context, recID uuid.UUID) error {
	rec, err := rs.requireRecommendation(ctx, recID)
	if err != nil {
		return err
	}
	if rec.ViewedAt != nil {
		return nil
	}
	if err := rs.recRepo.SetViewedAt(ctx, nil, recID, time.Now()); err != nil {
		return err
	}
	if rs.cache != nil {
		_ = rs.cache.Invalidate(ctx, recCacheKey(rec.UserID))
	}
	return nil
}

func (rs *recommendationService) MarkClicked(ctx context.Context, recID uuid.UUID) error {
	rec, err := rs.requireRecommendation(ctx, recID)
	if err != nil {
		return err
	}
	if rec.ClickedAt != nil {
		return nil
	}
	if err := rs.recRepo.SetClickedAt(ctx, nil, recID, time.Now()); err != nil {
		return err
	}
	if rs.cache != nil {
		_ = rs.cache.Invalidate(ctx, recCacheKey(rec.UserID))
	}
	return nil
}

func (rs *recommendationService) Hide(ctx context.Context, recID uuid.UUID) error {
	rec, err := rs.requireRecommendation(ctx, recID)
	if err != nil {
		return err
	}
	if rec.IsHidden {
		return nil
	}
	if err := rs.recRepo.SetHidden(ctx, nil, recID); err != nil {
		return err
	}
	if rs.cache != nil {
		_ = rs.cache.Invalidate(ctx, recCacheKey(rec.UserID))
	}
	return nil
}

func (rs *recommendationService) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return rs.recRepo.CountActiveByUser(ctx, nil, userID)
}

func (rs *recommendationService) CleanupOldRecommendations(ctx context.Context, currentModelVersion string) (int64, error) {
	if currentModelVersion == "" {
		return 0, apierr.Validation("current model version is required")
	}
	return rs.recRepo.DeleteNotVersion(ctx, nil, currentModelVersion)
}

// RegenerateAll sweeps every active user with a linked Letterboxd profile.
// Per-user failures are logged and skipped; the sweep is best-effort, not
// atomic across users.
func (rs *recommendationService) RegenerateAll(ctx context.Context) (*BulkRegenerateResult, error) {
	rs.log.Info("Starting regeneration of recommendations for all users")

	users, err := rs.userRepo.GetActiveWithLetterboxd(ctx, nil)
	if err != nil {
		return nil, err
	}
	rs.log.Info("Found active users with Letterboxd profiles", "count", len(users))

	result := &BulkRegenerateResult{TotalUsers: len(users)}
	outcomes := make([]bool, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkRegenerateConcurrency)
	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			if _, err := rs.GenerateForUser(gctx, user.ID); err != nil {
				rs.log.Error("Failed to regenerate recommendations", "user_id", user.ID, "error", err)
				return nil
			}
			outcomes[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range outcomes {
		if ok {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	rs.log.Info("Completed regeneration of recommendations",
		"succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// GetAccuracy is a placeholder aggregate pending a real click-through
// computation over a trailing window.
func (rs *recommendationService) GetAccuracy(ctx context.Context) (float64, error) {
	total, err := rs.recRepo.CountAll(ctx, nil)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return 75.5, nil
}
