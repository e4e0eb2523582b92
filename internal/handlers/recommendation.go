package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/services"
)

type RecommendationHandler struct {
	recService services.RecommendationService
}

func NewRecommendationHandler(recService services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{recService: recService}
}

func (rh *RecommendationHandler) Mine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	recs, err := rh.recService.GetForUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, recs)
}

func (rh *RecommendationHandler) MineByAlgorithm(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	algorithm := c.Param("algorithm")
	recs, err := rh.recService.GetForUserByAlgorithm(c.Request.Context(), userID, algorithm)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, recs)
}

func (rh *RecommendationHandler) MineByScore(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)
	recs, err := rh.recService.GetForUserByScore(c.Request.Context(), userID, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, recs)
}

func (rh *RecommendationHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	recs, err := rh.recService.GenerateForUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, recs)
}

func (rh *RecommendationHandler) GenerateColdStart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		PreferredGenres []string `json:"preferred_genres"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	recs, err := rh.recService.GenerateColdStart(c.Request.Context(), userID, req.PreferredGenres)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, recs)
}

func (rh *RecommendationHandler) MarkViewed(c *gin.Context) {
	recID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.recService.MarkViewed(c.Request.Context(), recID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "marked as viewed"})
}

func (rh *RecommendationHandler) MarkClicked(c *gin.Context) {
	recID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.recService.MarkClicked(c.Request.Context(), recID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "marked as clicked"})
}

func (rh *RecommendationHandler) Hide(c *gin.Context) {
	recID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.recService.Hide(c.Request.Context(), recID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "recommendation hidden"})
}

func (rh *RecommendationHandler) Count(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	count, err := rh.recService.CountForUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"count": count})
}
