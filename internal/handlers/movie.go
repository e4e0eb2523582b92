package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/services"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type MovieHandler struct {
	movieService services.MovieService
}

func NewMovieHandler(movieService services.MovieService) *MovieHandler {
	return &MovieHandler{movieService: movieService}
}

func (mh *MovieHandler) Get(c *gin.Context) {
	movieID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	movie, err := mh.movieService.GetMovie(c.Request.Context(), movieID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, movie)
}

func (mh *MovieHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)
	movies, err := mh.movieService.ListMovies(c.Request.Context(), limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, movies)
}

func (mh *MovieHandler) Search(c *gin.Context) {
	query := c.Query("q")
	limit := parseIntQuery(c, "limit", 20)
	movies, err := mh.movieService.SearchMovies(c.Request.Context(), query, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, movies)
}

func (mh *MovieHandler) Create(c *gin.Context) {
	var movie types.Movie
	if err := c.ShouldBindJSON(&movie); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	created, err := mh.movieService.CreateMovie(c.Request.Context(), &movie)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (mh *MovieHandler) Update(c *gin.Context) {
	movieID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var movie types.Movie
	if err := c.ShouldBindJSON(&movie); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	movie.ID = movieID
	updated, err := mh.movieService.UpdateMovie(c.Request.Context(), &movie)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, updated)
}

func (mh *MovieHandler) Enrich(c *gin.Context) {
	movieID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	enriched, err := mh.movieService.EnrichMovie(c.Request.Context(), movieID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, enriched)
}

func (mh *MovieHandler) Delete(c *gin.Context) {
	movieID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := mh.movieService.DeleteMovie(c.Request.Context(), movieID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "movie deleted"})
}
