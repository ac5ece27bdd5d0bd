package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"santa-tracker-backend/internal/config"
	"santa-tracker-backend/internal/handlers"
	"santa-tracker-backend/internal/middleware"
	"santa-tracker-backend/internal/repository"
	"santa-tracker-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Run() {
	configPath := flag.String("config", envOr("SANTA_CONFIG", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.File)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	guideRepo := repository.NewGuideRepository(db)
	tourRepo := repository.NewTourRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	visitRepo := repository.NewVisitRepository(db)

	// Outbound integrations
	awsCfg, err := services.LoadAWSConfig(context.Background(), cfg.AWS.Region, cfg.AWS.AccessKey, cfg.AWS.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS configuration")
	}

	smsGateway := services.NewDisabledSMSGateway()
	if cfg.SMS.Enabled {
		smsGateway = services.NewSMSGateway(awsCfg, cfg.AWS.Endpoint, cfg.SMS.SenderID)
	}

	archive := services.NewS3Archive(awsCfg, cfg.AWS.S3Bucket, cfg.AWS.Endpoint)
	if cfg.AWS.S3Bucket == "" {
		log.Info().Msg("Tour export disabled: aws.s3_bucket is empty")
	}

	pushService, err := services.NewPushService(
		cfg.APNs.KeyPath,
		cfg.APNs.KeyID,
		cfg.APNs.TeamID,
		cfg.APNs.Topic,
		cfg.APNs.Production,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create push service")
	}

	geocoder := services.NewNominatimGeocoder(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent)

	// Initialize services
	hub := services.NewTourHub()
	notifier := services.NewNotifier(familyRepo, smsGateway, cfg.Server.FrontendURL)
	guideService := services.NewGuideService(guideRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresHours)*time.Hour)
	visitService := services.NewVisitService(tourRepo, familyRepo, visitRepo, hub, notifier)
	tourService := services.NewTourService(tourRepo, familyRepo, visitRepo, hub, geocoder, archive)
	familyService := services.NewFamilyService(tourRepo, familyRepo, hub, geocoder)
	inboundService := services.NewInboundService(visitService, guideRepo, pushService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(guideService)
	tourHandler := handlers.NewTourHandler(tourService, visitService)
	familyHandler := handlers.NewFamilyHandler(familyService)
	visitHandler := handlers.NewVisitHandler(visitService)
	smsHandler := handlers.NewSMSHandler(inboundService)
	jokeHandler := handlers.NewJokeHandler(services.NewJokeRotator())
	healthHandler := handlers.NewHealthHandler(db)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	requireGuide := middleware.AuthMiddleware(guideService)

	// Routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(requireGuide).Put("/push-token", authHandler.UpdatePushToken)
		})

		r.Route("/tours", func(r chi.Router) {
			r.Get("/invite/{code}", tourHandler.GetTourByInvite)

			r.Group(func(r chi.Router) {
				r.Use(requireGuide)
				r.Post("/", tourHandler.CreateTour)
				r.Get("/", tourHandler.ListTours)
				r.Get("/{id}", tourHandler.GetTour)
				r.Patch("/{id}/status", tourHandler.UpdateStatus)
				r.Delete("/{id}", tourHandler.DeleteTour)
				r.Patch("/{id}/families/order", tourHandler.ReorderFamilies)
				r.Post("/{id}/geocode", tourHandler.GeocodeFamilies)
				r.Get("/{id}/export", tourHandler.ExportTour)
			})
		})

		r.Route("/families", func(r chi.Router) {
			r.Post("/invite/{code}", familyHandler.SignUp)
			r.Get("/{id}", familyHandler.GetFamily)
			r.Put("/{id}", familyHandler.UpdateFamily)
			r.Delete("/{id}", familyHandler.DeleteFamily)
		})

		r.Route("/visits", func(r chi.Router) {
			r.Get("/tour/{tourId}/current", visitHandler.CurrentVisit)

			r.Group(func(r chi.Router) {
				r.Use(requireGuide)
				r.Post("/{id}/start", visitHandler.StartTour)
				r.Patch("/{id}/status", visitHandler.UpdateStatus)
				r.Post("/{id}/requeue", visitHandler.Requeue)
				r.Post("/{id}/location", visitHandler.PostLocation)
			})
		})

		r.Post("/sms/webhook", smsHandler.Webhook)
		r.Post("/sms/status", smsHandler.DeliveryStatus)

		r.Get("/jokes/random", jokeHandler.Random)
		r.Get("/jokes/next", jokeHandler.Next)
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Bool("sms", smsGateway.IsEnabled()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown and close with the process
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures the global zerolog logger. With a log file the
// console output is mirrored as JSON into a rotating file.
func setupLogger(level, file string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 7,
			MaxAge:     7, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotator)
	}
	log.Logger = log.Output(out)

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
