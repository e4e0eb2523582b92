package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/services"
	"github.com/cinematch/cinematch-backend/internal/types"
)

type LetterboxdHandler struct {
	syncService services.SyncService
}

func NewLetterboxdHandler(syncService services.SyncService) *LetterboxdHandler {
	return &LetterboxdHandler{syncService: syncService}
}

func (lh *LetterboxdHandler) Sync(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := lh.syncService.SyncUser(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "sync completed"})
}

func (lh *LetterboxdHandler) Status(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	status, err := lh.syncService.GetSyncStatus(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sync_status": status})
}

func (lh *LetterboxdHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	user, err := lh.syncService.UpdateSyncStatus(c.Request.Context(), userID, types.SyncStatus(req.Status))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, user)
}

func (lh *LetterboxdHandler) Pause(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	user, err := lh.syncService.PauseSync(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, user)
}

func (lh *LetterboxdHandler) Resume(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	user, err := lh.syncService.ResumeSync(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, user)
}

func (lh *LetterboxdHandler) ScraperHealth(c *gin.Context) {
	info := lh.syncService.ScraperInfo()
	info["healthy"] = lh.syncService.ScraperHealthy(c.Request.Context())
	RespondOK(c, info)
}
