package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/letterboxd"
	"github.com/cinematch/cinematch-backend/internal/clients/tmdb"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

// SyncService owns the per-user Letterboxd sync lifecycle: the
// PENDING/IN_PROGRESS/COMPLETED/FAILED/PAUSED transitions, the scrape
// orchestration that imports ratings, and the staleness query behind the
// periodic sweep.
type SyncService interface {
	SyncUser(ctx context.Context, userID uuid.UUID) error
	UpdateSyncStatus(ctx context.Context, userID uuid.UUID, next types.SyncStatus) (*types.User, error)
	PauseSync(ctx context.Context, userID uuid.UUID) (*types.User, error)
	ResumeSync(ctx context.Context, userID uuid.UUID) (*types.User, error)
	GetSyncStatus(ctx context.Context, userID uuid.UUID) (types.SyncStatus, error)
	GetUsersNeedingSync(ctx context.Context, staleHours int) ([]*types.User, error)
	BulkSync(ctx context.Context, staleHours int) (*BulkSyncResult, error)
	ScraperHealthy(ctx context.Context) bool
	ScraperInfo() map[string]interface{}
}

type BulkSyncResult struct {
	TotalUsers int `json:"total_users"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

type syncService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	movieRepo  repos.MovieRepo
	ratingRepo repos.RatingRepo
	scraper    letterboxd.Client
	tmdb       tmdb.Client
	now        func() time.Time
}

const (
	defaultSyncStaleHours = 24
	bulkSyncConcurrency   = 2
	watchedDateLayout     = "2006-01-02"
)

func NewSyncService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	movieRepo repos.MovieRepo,
	ratingRepo repos.RatingRepo,
	scraper letterboxd.Client,
	tmdbClient tmdb.Client,
) SyncService {
	serviceLog := log.With("service", "SyncService")
	return &syncService{
		db:         db,
		log:        serviceLog,
		userRepo:   userRepo,
		movieRepo:  movieRepo,
		ratingRepo: ratingRepo,
		scraper:    scraper,
		tmdb:       tmdbClient,
		now:        time.Now,
	}
}

func (ss *syncService) requireUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	users, err := ss.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apierr.NotFound("user %s not found", userID)
	}
	return users[0], nil
}

// UpdateSyncStatus applies one transition on the user's sync state.
// last_sync_date is stamped only on COMPLETED; every other state leaves it
// untouched, so staleness always measures the last successful import.
func (ss *syncService) UpdateSyncStatus(ctx context.Context, userID uuid.UUID, next types.SyncStatus) (*types.User, error) {
	if !next.Valid() {
		return nil, apierr.Validation("invalid sync status %q", next)
	}

	user, err := ss.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.SyncStatus.CanTransitionTo(next) {
		return nil, apierr.Validation("cannot transition sync status from %s to %s", user.SyncStatus, next)
	}

	fields := map[string]interface{}{"sync_status": next}
	if next == types.SyncCompleted {
		fields["last_sync_date"] = ss.now()
	}
	if err := ss.userRepo.UpdateFields(ctx, nil, userID, fields); err != nil {
		return nil, err
	}
	return ss.requireUser(ctx, userID)
}

func (ss *syncService) PauseSync(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return ss.UpdateSyncStatus(ctx, userID, types.SyncPaused)
}

// ResumeSync moves a paused user back to PENDING so the next sweep picks
// them up; it never jumps straight into IN_PROGRESS.
func (ss *syncService) ResumeSync(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return ss.UpdateSyncStatus(ctx, userID, types.SyncPending)
}

func (ss *syncService) GetSyncStatus(ctx context.Context, userID uuid.UUID) (types.SyncStatus, error) {
	user, err := ss.requireUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.SyncStatus, nil
}

// SyncUser runs one scrape-and-import cycle for a user. The user must have
// a Letterboxd handle and must not already be IN_PROGRESS or PAUSED. The
// terminal status (COMPLETED or FAILED) is always persisted, even when the
// scrape itself errors.
func (ss *syncService) SyncUser(ctx context.Context, userID uuid.UUID) error {
	user, err := ss.requireUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.LetterboxdUsername == nil || strings.TrimSpace(*user.LetterboxdUsername) == "" {
		return apierr.Validation("user %s has no Letterboxd username", userID)
	}
	if user.SyncStatus == types.SyncInProgress {
		return apierr.Validation("sync already in progress for user %s", userID)
	}
	if user.SyncStatus == types.SyncPaused {
		return apierr.Validation("sync is paused for user %s", userID)
	}

	handle := strings.TrimSpace(*user.LetterboxdUsername)
	ss.log.Info("Starting Letterboxd sync", "user_id", userID, "letterboxd_username", handle)

	if _, err := ss.UpdateSyncStatus(ctx, userID, types.SyncInProgress); err != nil {
		return err
	}

	scrape, scrapeErr := ss.scraper.ScrapeUser(ctx, handle, letterboxd.DefaultScrapeOptions())
	if scrapeErr == nil {
		scrapeErr = ss.applyScrape(ctx, userID, scrape)
	}

	if scrapeErr != nil {
		ss.log.Error("Letterboxd sync failed", "user_id", userID, "error", scrapeErr)
		if _, err := ss.UpdateSyncStatus(ctx, userID, types.SyncFailed); err != nil {
			ss.log.Error("Could not persist failed sync status", "user_id", userID, "error", err)
		}
		return scrapeErr
	}

	if _, err := ss.UpdateSyncStatus(ctx, userID, types.SyncCompleted); err != nil {
		return err
	}
	ss.log.Info("Letterboxd sync completed", "user_id", userID, "ratings", len(scrape.Ratings))
	return nil
}

// applyScrape imports scraped ratings: films are matched to the catalog by
// Letterboxd slug, created when missing, then ratings are upserted keyed on
// (user, movie). Unrated entries are skipped.
func (ss *syncService) applyScrape(ctx context.Context, userID uuid.UUID, scrape *letterboxd.ScrapeResponse) error {
	rated := make([]letterboxd.FilmRating, 0, len(scrape.Ratings))
	slugs := make([]string, 0, len(scrape.Ratings))
	seen := make(map[string]bool)
	for _, fr := range scrape.Ratings {
		if fr.Rating == nil || strings.TrimSpace(fr.FilmSlug) == "" {
			continue
		}
		rated = append(rated, fr)
		if !seen[fr.FilmSlug] {
			seen[fr.FilmSlug] = true
			slugs = append(slugs, fr.FilmSlug)
		}
	}
	if len(rated) == 0 {
		return nil
	}

	existing, err := ss.movieRepo.GetByLetterboxdIDs(ctx, nil, slugs)
	if err != nil {
		return err
	}
	bySlug := make(map[string]*types.Movie, len(existing))
	for _, m := range existing {
		if m.LetterboxdID != nil {
			bySlug[*m.LetterboxdID] = m
		}
	}

	var missing []*types.Movie
	for _, fr := range rated {
		if _, ok := bySlug[fr.FilmSlug]; ok {
			continue
		}
		slug := fr.FilmSlug
		movie := &types.Movie{
			LetterboxdID: &slug,
			Title:        fr.FilmTitle,
		}
		if fr.FilmYear != nil {
			movie.Year = *fr.FilmYear
		}
		bySlug[slug] = movie
		missing = append(missing, movie)
	}
	if len(missing) > 0 {
		for _, movie := range missing {
			ss.enrichMovie(ctx, movie)
		}
		if _, err := ss.movieRepo.Create(ctx, nil, missing); err != nil {
			return fmt.Errorf("failed to create movies from scrape: %w", err)
		}
		ss.log.Info("Created movies from Letterboxd scrape", "count", len(missing))
	}

	ratings := make([]*types.Rating, 0, len(rated))
	for _, fr := range rated {
		movie := bySlug[fr.FilmSlug]
		rating := &types.Rating{
			UserID:  userID,
			MovieID: movie.ID,
			Value:   *fr.Rating,
		}
		if fr.Review != nil {
			rating.ReviewText = *fr.Review
		}
		if fr.WatchedDate != nil {
			if parsed, err := time.Parse(watchedDateLayout, *fr.WatchedDate); err == nil {
				rating.WatchedDate = &parsed
			}
		}
		ratings = append(ratings, rating)
	}
	if _, err := ss.ratingRepo.Upsert(ctx, nil, ratings); err != nil {
		return fmt.Errorf("failed to upsert ratings from scrape: %w", err)
	}
	return nil
}

// enrichMovie fills in TMDb metadata on a freshly scraped movie. Enrichment
// is best-effort: lookups that fail leave the movie as scraped.
func (ss *syncService) enrichMovie(ctx context.Context, movie *types.Movie) {
	if !ss.tmdb.Enabled() {
		return
	}
	tmdbID, err := ss.tmdb.SearchMovie(ctx, movie.Title, movie.Year)
	if err != nil {
		ss.log.Warn("TMDb lookup failed for scraped movie", "title", movie.Title, "error", err)
		return
	}
	details, err := ss.tmdb.GetMovieDetails(ctx, tmdbID)
	if err != nil {
		ss.log.Warn("TMDb details failed for scraped movie", "title", movie.Title, "error", err)
		return
	}
	applyMovieDetails(movie, details)
}

// GetUsersNeedingSync returns active linked users whose last successful
// sync is older than staleHours, plus those never synced.
func (ss *syncService) GetUsersNeedingSync(ctx context.Context, staleHours int) ([]*types.User, error) {
	if staleHours <= 0 {
		staleHours = defaultSyncStaleHours
	}
	cutoff := ss.now().Add(-time.Duration(staleHours) * time.Hour)
	return ss.userRepo.GetNeedingSync(ctx, nil, cutoff)
}

// BulkSync sweeps every stale user. Per-user failures are logged and
// counted but never abort the sweep.
func (ss *syncService) BulkSync(ctx context.Context, staleHours int) (*BulkSyncResult, error) {
	users, err := ss.GetUsersNeedingSync(ctx, staleHours)
	if err != nil {
		return nil, err
	}
	ss.log.Info("Starting bulk Letterboxd sync", "users", len(users))

	result := &BulkSyncResult{TotalUsers: len(users)}
	outcomes := make([]bool, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkSyncConcurrency)
	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			if err := ss.SyncUser(gctx, user.ID); err != nil {
				ss.log.Error("Bulk sync failed for user", "user_id", user.ID, "error", err)
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

	ss.log.Info("Bulk Letterboxd sync completed",
		"succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (ss *syncService) ScraperHealthy(ctx context.Context) bool {
	return ss.scraper.IsHealthy(ctx)
}

func (ss *syncService) ScraperInfo() map[string]interface{} {
	return map[string]interface{}{
		"enabled": ss.scraper.Enabled(),
	}
}
