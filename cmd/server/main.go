package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/ris-study-browser/internal/adapters"
	"github.com/otcheredev/ris-study-browser/internal/browse"
	"github.com/otcheredev/ris-study-browser/internal/cache"
	"github.com/otcheredev/ris-study-browser/internal/config"
	"github.com/otcheredev/ris-study-browser/internal/database"
	"github.com/otcheredev/ris-study-browser/internal/federation"
	"github.com/otcheredev/ris-study-browser/internal/handlers"
	"github.com/otcheredev/ris-study-browser/internal/middleware"
	"github.com/otcheredev/ris-study-browser/internal/repository"
	"github.com/otcheredev/ris-study-browser/internal/services"
	"github.com/otcheredev/ris-study-browser/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting Study Browser")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize the federation round cache
	var roundCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Type == "redis" {
			addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			roundCache, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			log.Info().Msg("Redis round cache initialized")
		} else {
			roundCache = cache.NewMemoryCache()
			log.Info().Msg("Memory round cache initialized")
		}
	}

	// Initialize repositories
	archiveRepo := repository.NewArchiveRepository()
	regRepo := repository.NewRegistrationRepository()

	// Initialize adapter factory and federation coordinator
	adapterFactory := adapters.NewAdapterFactory(cfg.Federation.ServerTimeout)
	defer adapterFactory.CloseAll()

	coordinator := federation.NewCoordinator(adapterFactory, cfg.Federation.ServerTimeout)

	// Initialize browse sessions
	sessions := browse.NewSessionManager(cfg.Session.TTL)
	defer sessions.Close()

	// Initialize services
	studyService := services.NewStudyService(
		archiveRepo, regRepo, coordinator, sessions,
		roundCache, cfg.Cache.TTL, cfg.Federation.DefaultLimit,
	)
	importService := services.NewImportService(regRepo)
	archiveService := services.NewArchiveService(archiveRepo, adapterFactory, roundCache, cfg.Federation.ServerTimeout)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	sessionHandler := handlers.NewSessionHandler(studyService, importService)
	archiveHandler := handlers.NewArchiveHandler(archiveService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))

		// Archive server directory
		r.Route("/archives", func(r chi.Router) {
			r.Post("/", archiveHandler.CreateArchive)
			r.Get("/", archiveHandler.ListArchives)
			r.Post("/test", archiveHandler.TestConnection)
			r.Get("/{id}", archiveHandler.GetArchive)
			r.Put("/{id}", archiveHandler.UpdateArchive)
			r.Delete("/{id}", archiveHandler.DeactivateArchive)
		})

		// Browse sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)
			r.Post("/{sessionID}/search", sessionHandler.Search)
			r.Get("/{sessionID}/studies", sessionHandler.GetStudies)
			r.Put("/{sessionID}/filters", sessionHandler.SetFilters)
			r.Get("/{sessionID}/facets", sessionHandler.GetFacets)
			r.Post("/{sessionID}/import", sessionHandler.ImportStudy)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
