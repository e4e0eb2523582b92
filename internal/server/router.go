package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cinematch/cinematch-backend/internal/handlers"
	"github.com/cinematch/cinematch-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler           *handlers.AuthHandler
	AuthMiddleware        *middleware.AuthMiddleware
	UserHandler           *handlers.UserHandler
	MovieHandler          *handlers.MovieHandler
	RatingHandler         *handlers.RatingHandler
	RecommendationHandler *handlers.RecommendationHandler
	DatasetHandler        *handlers.DatasetHandler
	LetterboxdHandler     *handlers.LetterboxdHandler
	HealthcheckHandler    *handlers.HealthcheckHandler
	AllowedOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthz)
	router.POST("/api/register", cfg.AuthHandler.Register)
	router.POST("/api/login", cfg.AuthHandler.Login)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Auth
	api.POST("/refresh", cfg.AuthHandler.Refresh)
	api.POST("/logout", cfg.AuthHandler.Logout)

	// User
	api.GET("/user", cfg.UserHandler.Me)
	api.PATCH("/user", cfg.UserHandler.UpdateProfile)
	api.POST("/user/deactivate", cfg.UserHandler.Deactivate)
	api.POST("/user/letterboxd", cfg.UserHandler.LinkLetterboxd)
	api.DELETE("/user/letterboxd", cfg.UserHandler.UnlinkLetterboxd)

	// Letterboxd sync
	api.POST("/sync", cfg.LetterboxdHandler.Sync)
	api.GET("/sync/status", cfg.LetterboxdHandler.Status)
	api.PUT("/sync/status", cfg.LetterboxdHandler.UpdateStatus)
	api.POST("/sync/pause", cfg.LetterboxdHandler.Pause)
	api.POST("/sync/resume", cfg.LetterboxdHandler.Resume)
	api.GET("/sync/scraper", cfg.LetterboxdHandler.ScraperHealth)

	// Movies
	api.GET("/movies", cfg.MovieHandler.List)
	api.GET("/movies/search", cfg.MovieHandler.Search)
	api.GET("/movies/:id", cfg.MovieHandler.Get)
	api.GET("/movies/:id/ratings", cfg.RatingHandler.ByMovie)

	// Ratings
	api.POST("/ratings", cfg.RatingHandler.Rate)
	api.GET("/ratings", cfg.RatingHandler.Mine)
	api.GET("/ratings/stats", cfg.RatingHandler.MyStats)
	api.DELETE("/ratings/:id", cfg.RatingHandler.Delete)

	// Recommendations
	api.GET("/recommendations", cfg.RecommendationHandler.Mine)
	api.GET("/recommendations/count", cfg.RecommendationHandler.Count)
	api.GET("/recommendations/by-score", cfg.RecommendationHandler.MineByScore)
	api.GET("/recommendations/algorithm/:algorithm", cfg.RecommendationHandler.MineByAlgorithm)
	api.POST("/recommendations/generate", cfg.RecommendationHandler.Generate)
	api.POST("/recommendations/cold-start", cfg.RecommendationHandler.GenerateColdStart)
	api.POST("/recommendations/:id/viewed", cfg.RecommendationHandler.MarkViewed)
	api.POST("/recommendations/:id/clicked", cfg.RecommendationHandler.MarkClicked)
	api.POST("/recommendations/:id/hide", cfg.RecommendationHandler.Hide)

	// Admin
	admin := api.Group("/admin")
	admin.GET("/users", cfg.UserHandler.List)
	admin.GET("/users/:id", cfg.UserHandler.Get)
	admin.POST("/users/:id/activate", cfg.UserHandler.Activate)
	admin.DELETE("/users/:id", cfg.UserHandler.Delete)
	admin.POST("/movies", cfg.MovieHandler.Create)
	admin.PUT("/movies/:id", cfg.MovieHandler.Update)
	admin.POST("/movies/:id/enrich", cfg.MovieHandler.Enrich)
	admin.DELETE("/movies/:id", cfg.MovieHandler.Delete)
	admin.GET("/dataset/metrics", cfg.DatasetHandler.Metrics)
	admin.POST("/dataset/metrics/recalculate", cfg.DatasetHandler.RecalculateMetrics)
	admin.GET("/dataset/metrics/history", cfg.DatasetHandler.MetricsHistory)
	admin.GET("/dataset/health", cfg.DatasetHandler.Health)
	admin.GET("/dataset/readiness", cfg.DatasetHandler.Readiness)
	admin.POST("/dataset/rebuild", cfg.DatasetHandler.RebuildDataset)
	admin.POST("/training/trigger", cfg.DatasetHandler.TriggerTraining)
	admin.POST("/training/schedule", cfg.DatasetHandler.ScheduleTraining)
	admin.GET("/training/status", cfg.DatasetHandler.TrainingStatus)
	admin.GET("/ml/status", cfg.DatasetHandler.MLServiceStatus)
	admin.POST("/recommendations/regenerate-all", cfg.DatasetHandler.RegenerateAllRecommendations)
	admin.GET("/recommendations/accuracy", cfg.DatasetHandler.RecommendationAccuracy)
	admin.POST("/sync/bulk", cfg.DatasetHandler.BulkSync)
	admin.POST("/system/cleanup", cfg.DatasetHandler.SystemCleanup)

	return router
}
