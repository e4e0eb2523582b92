package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/clients/tmdb"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type MovieService interface {
	GetMovie(ctx context.Context, movieID uuid.UUID) (*types.Movie, error)
	ListMovies(ctx context.Context, limit, offset int) ([]*types.Movie, error)
	SearchMovies(ctx context.Context, query string, limit int) ([]*types.Movie, error)
	CreateMovie(ctx context.Context, movie *types.Movie) (*types.Movie, error)
	UpdateMovie(ctx context.Context, movie *types.Movie) (*types.Movie, error)
	DeleteMovie(ctx context.Context, movieID uuid.UUID) error
	EnrichMovie(ctx context.Context, movieID uuid.UUID) (*types.Movie, error)
}

type movieService struct {
	db        *gorm.DB
	log       *logger.Logger
	movieRepo repos.MovieRepo
	tmdb      tmdb.Client
}

func NewMovieService(db *gorm.DB, log *logger.Logger, movieRepo repos.MovieRepo, tmdbClient tmdb.Client) MovieService {
	serviceLog := log.With("service", "MovieService")
	return &movieService{db: db, log: serviceLog, movieRepo: movieRepo, tmdb: tmdbClient}
}

func (ms *movieService) requireMovie(ctx context.Context, movieID uuid.UUID) (*types.Movie, error) {
	movies, err := ms.movieRepo.GetByIDs(ctx, nil, []uuid.UUID{movieID})
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, apierr.NotFound("movie %s not found", movieID)
	}
	return movies[0], nil
}

func (ms *movieService) GetMovie(ctx context.Context, movieID uuid.UUID) (*types.Movie, error) {
	return ms.requireMovie(ctx, movieID)
}

func (ms *movieService) ListMovies(ctx context.Context, limit, offset int) ([]*types.Movie, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return ms.movieRepo.List(ctx, nil, limit, offset)
}

func (ms *movieService) SearchMovies(ctx context.Context, query string, limit int) ([]*types.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.Validation("search query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return ms.movieRepo.SearchByTitle(ctx, nil, query, limit)
}

func (ms *movieService) CreateMovie(ctx context.Context, movie *types.Movie) (*types.Movie, error) {
	if strings.TrimSpace(movie.Title) == "" {
		return nil, apierr.Validation("movie title is required")
	}
	if movie.TmdbID != nil {
		existing, err := ms.movieRepo.GetByTmdbIDs(ctx, nil, []int64{*movie.TmdbID})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, apierr.Validation("movie with tmdb id %d already exists", *movie.TmdbID)
		}
	}

	movie.ID = uuid.New()
	created, err := ms.movieRepo.Create(ctx, nil, []*types.Movie{movie})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (ms *movieService) UpdateMovie(ctx context.Context, movie *types.Movie) (*types.Movie, error) {
	if _, err := ms.requireMovie(ctx, movie.ID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(movie.Title) == "" {
		return nil, apierr.Validation("movie title is required")
	}
	if err := ms.movieRepo.Update(ctx, nil, movie); err != nil {
		return nil, err
	}
	return ms.requireMovie(ctx, movie.ID)
}

func (ms *movieService) DeleteMovie(ctx context.Context, movieID uuid.UUID) error {
	if _, err := ms.requireMovie(ctx, movieID); err != nil {
		return err
	}
	return ms.movieRepo.Delete(ctx, nil, movieID)
}

// EnrichMovie pulls poster, genres, credits, overview and runtime from TMDb
// and stores them on the movie. A movie without a TMDb id is resolved by
// title and year first; the resolved id is persisted with the metadata.
func (ms *movieService) EnrichMovie(ctx context.Context, movieID uuid.UUID) (*types.Movie, error) {
	movie, err := ms.requireMovie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if !ms.tmdb.Enabled() {
		return nil, apierr.Validation("tmdb enrichment is not configured")
	}

	tmdbID := int64(0)
	if movie.TmdbID != nil {
		tmdbID = *movie.TmdbID
	} else {
		tmdbID, err = ms.tmdb.SearchMovie(ctx, movie.Title, movie.Year)
		if err != nil {
			return nil, err
		}
	}

	details, err := ms.tmdb.GetMovieDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	applyMovieDetails(movie, details)
	if err := ms.movieRepo.Update(ctx, nil, movie); err != nil {
		return nil, err
	}
	ms.log.Info("Enriched movie from TMDb", "movie_id", movieID, "tmdb_id", tmdbID)
	return ms.requireMovie(ctx, movieID)
}

// applyMovieDetails copies TMDb metadata onto a movie, leaving existing
// values alone when TMDb has nothing for a field.
func applyMovieDetails(movie *types.Movie, details *tmdb.MovieDetails) {
	if details.TmdbID != 0 {
		id := details.TmdbID
		movie.TmdbID = &id
	}
	if details.Overview != "" {
		movie.Overview = details.Overview
	}
	if details.RuntimeMinutes > 0 {
		movie.RuntimeMinutes = details.RuntimeMinutes
	}
	if details.PosterURL != "" {
		movie.PosterURL = details.PosterURL
	}
	if len(details.Genres) > 0 {
		movie.Genres = details.Genres
	}
	if details.Director != "" {
		movie.Director = details.Director
	}
	if len(details.Actors) > 0 {
		movie.Actors = details.Actors
	}
}
