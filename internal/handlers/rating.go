package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/services"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type RatingHandler struct {
	ratingService services.RatingService
}

func NewRatingHandler(ratingService services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

func (rh *RatingHandler) Rate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		MovieID     string     `json:"movie_id"`
		Value       float64    `json:"value"`
		ReviewText  string     `json:"review_text"`
		WatchedDate *time.Time `json:"watched_date"`
		IsRewatch   bool       `json:"is_rewatch"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	movieID, ok := parseUUIDString(c, req.MovieID)
	if !ok {
		return
	}
	rating := types.Rating{
		UserID:      userID,
		MovieID:     movieID,
		Value:       req.Value,
		ReviewText:  req.ReviewText,
		WatchedDate: req.WatchedDate,
		IsRewatch:   req.IsRewatch,
	}
	saved, err := rh.ratingService.RateMovie(c.Request.Context(), &rating)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (rh *RatingHandler) Mine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	ratings, err := rh.ratingService.GetUserRatings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ratings)
}

func (rh *RatingHandler) ByMovie(c *gin.Context) {
	movieID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	ratings, err := rh.ratingService.GetMovieRatings(c.Request.Context(), movieID, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, ratings)
}

func (rh *RatingHandler) Delete(c *gin.Context) {
	ratingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.ratingService.DeleteRating(c.Request.Context(), ratingID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "rating deleted"})
}

func (rh *RatingHandler) MyStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	stats, err := rh.ratingService.UserRatingStats(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}
