package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	"github.com/cinematch/cinematch-backend/internal/types"
)

func newRecServiceForTest(userRepo *fakeUserRepo, recRepo *fakeRecRepo, ml *fakeMLClient) RecommendationService {
	return NewRecommendationService(nil, testLogger(), userRepo, recRepo, ml, nil)
}

func scoredMovies(n int) []mlservice.ScoredMovie {
	out := make([]mlservice.ScoredMovie, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, mlservice.ScoredMovie{MovieID: uuid.New(), Score: 1.0 - float64(i)*0.1})
	}
	return out
}

func TestGenerateForUserUnknownUser(t *testing.T) {
	svc := newRecServiceForTest(newFakeUserRepo(), &fakeRecRepo{}, &fakeMLClient{})
	_, err := svc.GenerateForUser(context.Background(), uuid.New())
	if !apierr.IsNotFound(err) {
		t.Fatalf("err=%v, want not_found", err)
	}
}

func TestGenerateForUserAssignsRanksAndPrunes(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}
	userRepo := newFakeUserRepo(user)

	recRepo := &fakeRecRepo{recs: []*types.Recommendation{
		{ID: uuid.New(), UserID: user.ID, ModelVersion: "1.0.0"},
		{ID: uuid.New(), UserID: user.ID, ModelVersion: "1.0.0"},
	}}
	ml := &fakeMLClient{recommendResp: &mlservice.RecommendResponse{
		Recommendations: scoredMovies(3),
		Algorithm:       "hybrid",
		ModelVersion:    "2.0.0",
	}}
	svc := newRecServiceForTest(userRepo, recRepo, ml)

	recs, err := svc.GenerateForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GenerateForUser: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recs))
	}
	for i, r := range recs {
		if r.Rank != i+1 {
			t.Fatalf("rank[%d]=%d, want %d", i, r.Rank, i+1)
		}
		if r.ModelVersion != "2.0.0" {
			t.Fatalf("model version=%q, want 2.0.0", r.ModelVersion)
		}
		if r.Algorithm != "hybrid" {
			t.Fatalf("algorithm=%q, want hybrid", r.Algorithm)
		}
	}
	for _, r := range recRepo.recs {
		if r.ModelVersion == "1.0.0" {
			t.Fatal("stale model version survived regeneration")
		}
	}
}

func TestGenerateForUserPruneLeavesOtherUsers(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}
	other := &types.User{ID: uuid.New(), IsActive: true}
	userRepo := newFakeUserRepo(user, other)

	recRepo := &fakeRecRepo{recs: []*types.Recommendation{
		{ID: uuid.New(), UserID: other.ID, ModelVersion: "1.0.0"},
	}}
	ml := &fakeMLClient{recommendResp: &mlservice.RecommendResponse{
		Recommendations: scoredMovies(1),
		Algorithm:       "hybrid",
		ModelVersion:    "2.0.0",
	}}
	svc := newRecServiceForTest(userRepo, recRepo, ml)

	if _, err := svc.GenerateForUser(context.Background(), user.ID); err != nil {
		t.Fatalf("GenerateForUser: %v", err)
	}
	otherRecs, err := svc.GetForUser(context.Background(), other.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if len(otherRecs) != 1 {
		t.Fatalf("other user's recommendations pruned, got %d", len(otherRecs))
	}
}

func TestGenerateColdStartKeepsExistingRows(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}
	userRepo := newFakeUserRepo(user)

	prior := &types.Recommendation{ID: uuid.New(), UserID: user.ID, ModelVersion: "1.0.0", Rank: 1}
	recRepo := &fakeRecRepo{recs: []*types.Recommendation{prior}}
	ml := &fakeMLClient{recommendResp: &mlservice.RecommendResponse{
		Recommendations: scoredMovies(2),
		Algorithm:       "cold_start",
		ModelVersion:    "2.0.0",
	}}
	svc := newRecServiceForTest(userRepo, recRepo, ml)

	recs, err := svc.GenerateColdStart(context.Background(), user.ID, []string{"noir", "thriller"})
	if err != nil {
		t.Fatalf("GenerateColdStart: %v", err)
	}
	if len(ml.coldStartGenres) != 2 || ml.coldStartGenres[0] != "noir" {
		t.Fatalf("genres passed to scorer=%v, want [noir thriller]", ml.coldStartGenres)
	}
	if len(recs) != 3 {
		t.Fatalf("active rows=%d, want 3 (cold start never prunes)", len(recs))
	}

	var priorSurvived bool
	rank := 0
	for _, r := range recRepo.recs {
		if r.ID == prior.ID {
			priorSurvived = true
			continue
		}
		rank++
		if r.Rank != rank {
			t.Fatalf("rank=%d, want %d (response order)", r.Rank, rank)
		}
		if r.Algorithm != "cold_start" || r.ModelVersion != "2.0.0" {
			t.Fatalf("algorithm=%q version=%q", r.Algorithm, r.ModelVersion)
		}
	}
	if !priorSurvived {
		t.Fatal("pre-existing recommendation removed by cold start")
	}
}

func TestGenerateColdStartUnknownUser(t *testing.T) {
	svc := newRecServiceForTest(newFakeUserRepo(), &fakeRecRepo{}, &fakeMLClient{})
	if _, err := svc.GenerateColdStart(context.Background(), uuid.New(), []string{"noir"}); !apierr.IsNotFound(err) {
		t.Fatalf("err=%v, want not_found", err)
	}
}

func TestMarkViewedIsMonotonic(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}
	rec := &types.Recommendation{ID: uuid.New(), UserID: user.ID}
	recRepo := &fakeRecRepo{recs: []*types.Recommendation{rec}}
	svc := newRecServiceForTest(newFakeUserRepo(user), recRepo, &fakeMLClient{})

	if err := svc.MarkViewed(context.Background(), rec.ID); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if rec.ViewedAt == nil {
		t.Fatal("viewed_at not stamped")
	}
	first := *rec.ViewedAt

	if err := svc.MarkViewed(context.Background(), rec.ID); err != nil {
		t.Fatalf("repeat MarkViewed: %v", err)
	}
	if !rec.ViewedAt.Equal(first) {
		t.Fatal("viewed_at changed on repeat call")
	}
}

func TestMarkViewedUnknownRecommendation(t *testing.T) {
	svc := newRecServiceForTest(newFakeUserRepo(), &fakeRecRepo{}, &fakeMLClient{})
	if err := svc.MarkViewed(context.Background(), uuid.New()); !apierr.IsNotFound(err) {
		t.Fatalf("err=%v, want not_found", err)
	}
}

func TestHideExcludesFromActiveSet(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}
	rec := &types.Recommendation{ID: uuid.New(), UserID: user.ID}
	recRepo := &fakeRecRepo{recs: []*types.Recommendation{rec}}
	svc := newRecServiceForTest(newFakeUserRepo(user), recRepo, &fakeMLClient{})

	if err := svc.Hide(context.Background(), rec.ID); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	recs, err := svc.GetForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("hidden recommendation still active, got %d", len(recs))
	}
	count, err := svc.CountForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CountForUser: %v", err)
	}
	if count != 0 {
		t.Fatalf("count=%d, want 0", count)
	}
}

func TestCleanupOldRecommendationsRequiresVersion(t *testing.T) {
	svc := newRecServiceForTest(newFakeUserRepo(), &fakeRecRepo{}, &fakeMLClient{})
	if _, err := svc.CleanupOldRecommendations(context.Background(), ""); !apierr.IsValidation(err) {
		t.Fatalf("err=%v, want validation", err)
	}
}

func TestRegenerateAllIsolatesFailures(t *testing.T) {
	lb := "someone"
	good := &types.User{ID: uuid.New(), IsActive: true, LetterboxdUsername: &lb}
	bad := &types.User{ID: uuid.New(), IsActive: true, LetterboxdUsername: &lb}
	inactive := &types.User{ID: uuid.New(), IsActive: false, LetterboxdUsername: &lb}
	userRepo := newFakeUserRepo(good, bad, inactive)

	ml := &fakeMLClient{
		recommendResp: &mlservice.RecommendResponse{
			Recommendations: scoredMovies(2),
			Algorithm:       "hybrid",
			ModelVersion:    "2.0.0",
		},
		failForUsers: map[uuid.UUID]bool{bad.ID: true},
	}
	svc := newRecServiceForTest(userRepo, &fakeRecRepo{}, ml)

	result, err := svc.RegenerateAll(context.Background())
	if err != nil {
		t.Fatalf("RegenerateAll: %v", err)
	}
	if result.TotalUsers != 2 {
		t.Fatalf("total users=%d, want 2 (inactive excluded)", result.TotalUsers)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", result.Succeeded, result.Failed)
	}
}

func TestGetAccuracy(t *testing.T) {
	user := &types.User{ID: uuid.New(), IsActive: true}

	empty := newRecServiceForTest(newFakeUserRepo(user), &fakeRecRepo{}, &fakeMLClient{})
	acc, err := empty.GetAccuracy(context.Background())
	if err != nil {
		t.Fatalf("GetAccuracy: %v", err)
	}
	if acc != 0 {
		t.Fatalf("accuracy=%v, want 0 with no recommendations", acc)
	}

	populated := newRecServiceForTest(newFakeUserRepo(user), &fakeRecRepo{recs: []*types.Recommendation{
		{ID: uuid.New(), UserID: user.ID},
	}}, &fakeMLClient{})
	acc, err = populated.GetAccuracy(context.Background())
	if err != nil {
		t.Fatalf("GetAccuracy: %v", err)
	}
	if acc != 75.5 {
		t.Fatalf("accuracy=%v, want 75.5", acc)
	}
}
