package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/outlet_survey/backend/internal/config"
	"github.com/outlet_survey/backend/internal/db"
	httpapi "github.com/outlet_survey/backend/internal/http"
	"github.com/outlet_survey/backend/internal/http/handlers"
	"github.com/outlet_survey/backend/internal/navigation"
	"github.com/outlet_survey/backend/internal/outlets"
	"github.com/outlet_survey/backend/internal/routing"
	"github.com/outlet_survey/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "outlet-survey-backend").Logger()

	ctx := context.Background()
	store, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectWait, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate db")
	}

	var router routing.Router = routing.Disabled{}
	if cfg.RoutingURL != "" {
		router = routing.NewOSRMClient(cfg.RoutingURL, cfg.RoutingProfile, cfg.RoutingTimeout)
	} else {
		logger.Info().Msg("routing disabled, navigation uses straight-line distance")
	}

	var (
		images   outlets.ImageStore
		uploader handlers.ImageUploader
	)
	if cfg.StorageBucket != "" && (cfg.StorageEndpoint != "" || cfg.StorageAccessKey != "") {
		s3, err := storage.New(ctx, storage.Config{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			Bucket:    cfg.StorageBucket,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure image storage")
		}
		images, uploader = s3, s3
	} else {
		logger.Warn().Msg("image storage not configured, uploads disabled")
	}

	svc := outlets.NewService(store, images, logger)
	svc.OutletsTTL = cfg.OutletsTTL
	svc.ProductsTTL = cfg.ProductsTTL

	nav := navigation.NewManager(router, navigation.Config{
		PollInterval:    cfg.NavPollInterval,
		RerouteInterval: cfg.NavRerouteInterval,
		MoveThresholdM:  cfg.NavMoveThresholdM,
		PositionTimeout: cfg.NavPositionTimeout,
		IdleTimeouts:    cfg.NavIdleTimeouts,
	}, logger)
	defer nav.CloseAll()

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET empty, trusting X-User-Id headers")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Router(cfg, store, svc, nav, uploader, logger),
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
