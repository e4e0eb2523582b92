package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cinematch/cinematch-backend/internal/clients/letterboxd"
	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
	redisclient "github.com/cinematch/cinematch-backend/internal/clients/redis"
	"github.com/cinematch/cinematch-backend/internal/clients/tmdb"
	"github.com/cinematch/cinematch-backend/internal/db"
	"github.com/cinematch/cinematch-backend/internal/handlers"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/middleware"
	"github.com/cinematch/cinematch-backend/internal/repos"
	"github.com/cinematch/cinematch-backend/internal/server"
	"github.com/cinematch/cinematch-backend/internal/services"
	"github.com/cinematch/cinematch-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	minUsersForTraining := utils.GetEnvAsInt("MIN_USERS_FOR_TRAINING", 10, log)
	minRatingsForTraining := utils.GetEnvAsInt("MIN_RATINGS_FOR_TRAINING", 100, log)
	popularMovieThreshold := utils.GetEnvAsInt("POPULAR_MOVIE_THRESHOLD", 5, log)
	stalenessDays := utils.GetEnvAsInt("TRAINING_STALENESS_DAYS", 7, log)
	serverPort := utils.GetEnv("SERVER_PORT", "8080", log)
	allowedOrigins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	movieRepo := repos.NewMovieRepo(thePG, log)
	ratingRepo := repos.NewRatingRepo(thePG, log)
	recRepo := repos.NewRecommendationRepo(thePG, log)
	metricsRepo := repos.NewDatasetMetricsRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	mlClient := mlservice.NewClient(log)
	scraperClient := letterboxd.NewClient(log)
	tmdbClient := tmdb.NewClient(log)
	recCache, err := redisclient.NewRecommendationCache(log)
	if err != nil {
		log.Warn("Redis cache unavailable, running without recommendation cache", "error", err)
		recCache = nil
	} else {
		defer recCache.Close()
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(
		thePG, log, userRepo, userTokenRepo, jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second,
	)
	userService := services.NewUserService(thePG, log, userRepo, scraperClient)
	movieService := services.NewMovieService(thePG, log, movieRepo, tmdbClient)
	ratingService := services.NewRatingService(thePG, log, userRepo, movieRepo, ratingRepo)
	metricsService := services.NewMetricsService(thePG, log, userRepo, movieRepo, ratingRepo, metricsRepo, int64(popularMovieThreshold))
	recService := services.NewRecommendationService(thePG, log, userRepo, recRepo, mlClient, recCache)
	syncService := services.NewSyncService(thePG, log, userRepo, movieRepo, ratingRepo, scraperClient, tmdbClient)
	datasetService := services.NewDatasetService(
		thePG, log, metricsService, metricsRepo, recRepo, mlClient,
		int64(minUsersForTraining), int64(minRatingsForTraining),
		time.Duration(stalenessDays)*24*time.Hour,
	)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	movieHandler := handlers.NewMovieHandler(movieService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	recHandler := handlers.NewRecommendationHandler(recService)
	datasetHandler := handlers.NewDatasetHandler(datasetService, metricsService, recService, syncService)
	letterboxdHandler := handlers.NewLetterboxdHandler(syncService)
	healthcheckHandler := handlers.NewHealthcheckHandler(thePG, mlClient)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:           authHandler,
		AuthMiddleware:        authMiddleware,
		UserHandler:           userHandler,
		MovieHandler:          movieHandler,
		RatingHandler:         ratingHandler,
		RecommendationHandler: recHandler,
		DatasetHandler:        datasetHandler,
		LetterboxdHandler:     letterboxdHandler,
		HealthcheckHandler:    healthcheckHandler,
		AllowedOrigins:        origins,
	})

	log.Info("Starting server", "port", serverPort)
	if err := router.Run(":" + serverPort); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
