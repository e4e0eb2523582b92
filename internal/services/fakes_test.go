package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/letterboxd"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	"github.com/cinematch/cinematch-backend/internal/clients/tmdb"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// fakeUserRepo is an in-memory UserRepo backed by a map.
type fakeUserRepo struct {
	users map[uuid.UUID]*types.User
}

func newFakeUserRepo(users ...*types.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[uuid.UUID]*types.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	for _, u := range users {
		f.users[u.ID] = u
	}
	return users, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		for _, e := range emails {
			if u.Email == e {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByUsernames(ctx context.Context, tx *gorm.DB, usernames []string) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		for _, n := range usernames {
			if u.Username == n {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, tx *gorm.DB, user *types.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	for k, v := range fields {
		switch k {
		case "sync_status":
			u.SyncStatus = v.(types.SyncStatus)
		case "last_sync_date":
			if v == nil {
				u.LastSyncDate = nil
			} else {
				t := v.(time.Time)
				u.LastSyncDate = &t
			}
		case "letterboxd_username":
			if v == nil {
				u.LetterboxdUsername = nil
			} else {
				s := v.(string)
				u.LetterboxdUsername = &s
			}
		case "is_active":
			u.IsActive = v.(bool)
		case "username":
			u.Username = v.(string)
		case "email":
			u.Email = v.(string)
		}
	}
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	delete(f.users, userID)
	return nil
}

func (f *fakeUserRepo) CountActive(ctx context.Context, tx *gorm.DB) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeUserRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeUserRepo) GetActiveWithLetterboxd(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		if u.IsActive && u.LetterboxdUsername != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetNeedingSync(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		if !u.IsActive || u.LetterboxdUsername == nil {
			continue
		}
		if u.LastSyncDate == nil || u.LastSyncDate.Before(cutoff) {
			out = append(out, u)
		}
	}
	return out, nil
}

// fakeMovieRepo backs MovieRepo with a map keyed by movie ID.
type fakeMovieRepo struct {
	movies map[uuid.UUID]*types.Movie
}

func newFakeMovieRepo(movies ...*types.Movie) *fakeMovieRepo {
	f := &fakeMovieRepo{movies: map[uuid.UUID]*types.Movie{}}
	for _, m := range movies {
		f.movies[m.ID] = m
	}
	return f
}

func (f *fakeMovieRepo) Create(ctx context.Context, tx *gorm.DB, movies []*types.Movie) ([]*types.Movie, error) {
	for _, m := range movies {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		f.movies[m.ID] = m
	}
	return movies, nil
}

func (f *fakeMovieRepo) GetByIDs(ctx context.Context, tx *gorm.DB, movieIDs []uuid.UUID) ([]*types.Movie, error) {
	var out []*types.Movie
	for _, id := range movieIDs {
		if m, ok := f.movies[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMovieRepo) GetByTmdbIDs(ctx context.Context, tx *gorm.DB, tmdbIDs []int64) ([]*types.Movie, error) {
	var out []*types.Movie
	for _, m := range f.movies {
		for _, id := range tmdbIDs {
			if m.TmdbID != nil && *m.TmdbID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeMovieRepo) GetByLetterboxdIDs(ctx context.Context, tx *gorm.DB, letterboxdIDs []string) ([]*types.Movie, error) {
	var out []*types.Movie
	for _, m := range f.movies {
		for _, id := range letterboxdIDs {
			if m.LetterboxdID != nil && *m.LetterboxdID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeMovieRepo) Update(ctx context.Context, tx *gorm.DB, movie *types.Movie) error {
	f.movies[movie.ID] = movie
	return nil
}

func (f *fakeMovieRepo) Delete(ctx context.Context, tx *gorm.DB, movieID uuid.UUID) error {
	delete(f.movies, movieID)
	return nil
}

func (f *fakeMovieRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Movie, error) {
	var out []*types.Movie
	for _, m := range f.movies {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMovieRepo) SearchByTitle(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*types.Movie, error) {
	return nil, nil
}

func (f *fakeMovieRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	return int64(len(f.movies)), nil
}

func (f *fakeMovieRepo) CountWithMinRatings(ctx context.Context, tx *gorm.DB, minRatings int64) (int64, error) {
	return int64(len(f.movies)), nil
}

// countsMovieRepo overrides CountWithMinRatings with canned values per
// threshold for metrics tests.
type countsMovieRepo struct {
	fakeMovieRepo
	byThreshold map[int64]int64
}

func (f *countsMovieRepo) CountWithMinRatings(ctx context.Context, tx *gorm.DB, minRatings int64) (int64, error) {
	return f.byThreshold[minRatings], nil
}

// fakeRatingRepo keeps ratings keyed on (user, movie).
type fakeRatingRepo struct {
	ratings map[string]*types.Rating
	average float64
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{ratings: map[string]*types.Rating{}}
}

func ratingKey(userID, movieID uuid.UUID) string {
	return userID.String() + "/" + movieID.String()
}

func (f *fakeRatingRepo) Upsert(ctx context.Context, tx *gorm.DB, ratings []*types.Rating) ([]*types.Rating, error) {
	for _, r := range ratings {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.ratings[ratingKey(r.UserID, r.MovieID)] = r
	}
	return ratings, nil
}

func (f *fakeRatingRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	var out []*types.Rating
	for _, r := range f.ratings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatingRepo) GetByMovieID(ctx context.Context, tx *gorm.DB, movieID uuid.UUID, limit, offset int) ([]*types.Rating, error) {
	var out []*types.Rating
	for _, r := range f.ratings {
		if r.MovieID == movieID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatingRepo) Delete(ctx context.Context, tx *gorm.DB, ratingID uuid.UUID) error {
	for k, r := range f.ratings {
		if r.ID == ratingID {
			delete(f.ratings, k)
		}
	}
	return nil
}

func (f *fakeRatingRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	return int64(len(f.ratings)), nil
}

func (f *fakeRatingRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range f.ratings {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRatingRepo) CountDistinctUsers(ctx context.Context, tx *gorm.DB) (int64, error) {
	seen := map[uuid.UUID]bool{}
	for _, r := range f.ratings {
		seen[r.UserID] = true
	}
	return int64(len(seen)), nil
}

func (f *fakeRatingRepo) OverallAverage(ctx context.Context, tx *gorm.DB) (float64, error) {
	return f.average, nil
}

func (f *fakeRatingRepo) AverageByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	return f.average, nil
}

// fakeRecRepo keeps recommendations in insertion order. Mutations are
// serialized so bulk-sweep tests can run it from several goroutines.
type fakeRecRepo struct {
	mu   sync.Mutex
	recs []*types.Recommendation
}

func (f *fakeRecRepo) CreateBatch(ctx context.Context, tx *gorm.DB, recs []*types.Recommendation) ([]*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range recs {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.recs = append(f.recs, r)
	}
	return recs, nil
}

func (f *fakeRecRepo) GetByIDs(ctx context.Context, tx *gorm.DB, recIDs []uuid.UUID) ([]*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Recommendation
	for _, r := range f.recs {
		for _, id := range recIDs {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeRecRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Recommendation
	for _, r := range f.recs {
		if r.UserID == userID && !r.IsHidden {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecRepo) GetActiveByUserAndAlgorithm(ctx context.Context, tx *gorm.DB, userID uuid.UUID, algorithm string) ([]*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Recommendation
	for _, r := range f.recs {
		if r.UserID == userID && !r.IsHidden && r.Algorithm == algorithm {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecRepo) GetActiveByUserOrderByScore(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Recommendation, error) {
	return f.GetActiveByUser(ctx, tx, userID)
}

func (f *fakeRecRepo) DeleteByUserNotVersion(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currentVersion string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*types.Recommendation
	var deleted int64
	for _, r := range f.recs {
		if r.UserID == userID && r.ModelVersion != currentVersion {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return deleted, nil
}

func (f *fakeRecRepo) DeleteNotVersion(ctx context.Context, tx *gorm.DB, currentVersion string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*types.Recommendation
	var deleted int64
	for _, r := range f.recs {
		if r.ModelVersion != currentVersion {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return deleted, nil
}

func (f *fakeRecRepo) SetViewedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, viewedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == recID && r.ViewedAt == nil {
			t := viewedAt
			r.ViewedAt = &t
		}
	}
	return nil
}

func (f *fakeRecRepo) SetClickedAt(ctx context.Context, tx *gorm.DB, recID uuid.UUID, clickedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == recID && r.ClickedAt == nil {
			t := clickedAt
			r.ClickedAt = &t
		}
	}
	return nil
}

func (f *fakeRecRepo) SetHidden(ctx context.Context, tx *gorm.DB, recID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == recID {
			r.IsHidden = true
		}
	}
	return nil
}

func (f *fakeRecRepo) CountActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.recs {
		if r.UserID == userID && !r.IsHidden {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.recs)), nil
}

// fakeMetricsRepo keeps snapshots in creation order; the last one is the
// latest.
type fakeMetricsRepo struct {
	snapshots []*types.DatasetMetrics
	updates   []map[string]interface{}
}

func (f *fakeMetricsRepo) Create(ctx context.Context, tx *gorm.DB, m *types.DatasetMetrics) (*types.DatasetMetrics, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	f.snapshots = append(f.snapshots, m)
	return m, nil
}

func (f *fakeMetricsRepo) GetLatest(ctx context.Context, tx *gorm.DB) (*types.DatasetMetrics, error) {
	if len(f.snapshots) == 0 {
		return nil, nil
	}
	return f.snapshots[len(f.snapshots)-1], nil
}

func (f *fakeMetricsRepo) UpdateTrainingFields(ctx context.Context, tx *gorm.DB, metricsID uuid.UUID, fields map[string]interface{}) (int64, error) {
	f.updates = append(f.updates, fields)
	for _, m := range f.snapshots {
		if m.ID != metricsID {
			continue
		}
		for k, v := range fields {
			switch k {
			case "training_status":
				m.TrainingStatus = v.(types.TrainingStatus)
			case "last_training_started":
				t := v.(time.Time)
				m.LastTrainingStarted = &t
			case "last_training_completed":
				t := v.(time.Time)
				m.LastTrainingCompleted = &t
			case "training_error":
				if v == nil {
					m.TrainingError = nil
				} else {
					s := v.(string)
					m.TrainingError = &s
				}
			case "model_version":
				m.ModelVersion = v.(string)
			}
		}
		return 1, nil
	}
	return 0, nil
}

func (f *fakeMetricsRepo) History(ctx context.Context, tx *gorm.DB, limit int) ([]*types.DatasetMetrics, error) {
	return f.snapshots, nil
}

// fakeMLClient returns canned responses; err (when set) applies to every
// call. trainHook, when set, runs in the middle of TrainModel so tests
// can interleave work with a long training call.
type fakeMLClient struct {
	trainResult     *mlservice.TrainResult
	trainErr        error
	trainHook       func()
	recommendResp   *mlservice.RecommendResponse
	recommendErr    error
	failForUsers    map[uuid.UUID]bool
	trainCalls      int
	coldStartGenres []string
}

func (f *fakeMLClient) TrainModel(ctx context.Context) (*mlservice.TrainResult, error) {
	f.trainCalls++
	if f.trainHook != nil {
		f.trainHook()
	}
	if f.trainErr != nil {
		return nil, f.trainErr
	}
	return f.trainResult, nil
}

func (f *fakeMLClient) TrainingStatus(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"status": "idle"}, nil
}

func (f *fakeMLClient) RebuildDataset(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"rebuilt": true}, nil
}

func (f *fakeMLClient) Cleanup(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"cleaned": true}, nil
}

func (f *fakeMLClient) Status(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"status": "healthy"}, nil
}

func (f *fakeMLClient) RecommendForUser(ctx context.Context, userID uuid.UUID) (*mlservice.RecommendResponse, error) {
	if f.failForUsers[userID] {
		return nil, fmt.Errorf("scorer unavailable")
	}
	if f.recommendErr != nil {
		return nil, f.recommendErr
	}
	return f.recommendResp, nil
}

func (f *fakeMLClient) RecommendColdStart(ctx context.Context, userID uuid.UUID, preferredGenres []string) (*mlservice.RecommendResponse, error) {
	f.coldStartGenres = preferredGenres
	return f.RecommendForUser(ctx, userID)
}

func (f *fakeMLClient) CollectBulk(ctx context.Context, usernames []string) (map[string]interface{}, error) {
	return map[string]interface{}{"collected": len(usernames)}, nil
}

func (f *fakeMLClient) IsHealthy(ctx context.Context) bool {
	return true
}

// fakeTMDb serves canned search results keyed by title and details keyed
// by tmdb id. The zero value is a disabled client.
type fakeTMDb struct {
	enabled    bool
	searchIDs  map[string]int64
	details    map[int64]*tmdb.MovieDetails
	detailsErr error
}

func (f *fakeTMDb) Enabled() bool {
	return f.enabled
}

func (f *fakeTMDb) SearchMovie(ctx context.Context, title string, year int) (int64, error) {
	id, ok := f.searchIDs[title]
	if !ok {
		return 0, apierr.NotFound("no tmdb match for %q (%d)", title, year)
	}
	return id, nil
}

func (f *fakeTMDb) GetMovieDetails(ctx context.Context, tmdbID int64) (*tmdb.MovieDetails, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	d, ok := f.details[tmdbID]
	if !ok {
		return nil, apierr.NotFound("tmdb movie %d not found", tmdbID)
	}
	return d, nil
}

// fakeScraper serves a canned scrape response.
type fakeScraper struct {
	resp      *letterboxd.ScrapeResponse
	scrapeErr error
	healthy   bool
}

func (f *fakeScraper) ScrapeUser(ctx context.Context, username string, opts letterboxd.ScrapeOptions) (*letterboxd.ScrapeResponse, error) {
	if f.scrapeErr != nil {
		return nil, f.scrapeErr
	}
	return f.resp, nil
}

func (f *fakeScraper) GetProfile(ctx context.Context, username string) (*letterboxd.Profile, error) {
	return &letterboxd.Profile{Username: username}, nil
}

func (f *fakeScraper) ValidateUser(ctx context.Context, username string) bool {
	return true
}

func (f *fakeScraper) IsHealthy(ctx context.Context) bool {
	return f.healthy
}

func (f *fakeScraper) Enabled() bool {
	return true
}
