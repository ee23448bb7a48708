package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fmr-portal/annotate"
	"fmr-portal/api"
	"fmr-portal/camera"
	"fmr-portal/config"
	"fmr-portal/location"
	"fmr-portal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongodb := &storage.MongoReportDB{Log: logger}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB)
	cancel()
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongodb.Close(context.Background())

	blobs := &storage.LocalBlobStorage{
		Directory: cfg.UploadDir,
		BaseURL:   cfg.PublicBaseURL,
	}

	annotator, err := annotate.NewAnnotator(cfg.Timezone)
	if err != nil {
		logger.Fatal("failed to load overlay font", zap.Error(err))
	}

	watch := location.DefaultWatchOptions()
	watch.Timeout = cfg.GPSTimeout
	constraints := camera.DefaultConstraints()
	constraints.IdealWidth = cfg.CameraWidth
	constraints.IdealHeight = cfg.CameraHeight

	sessions := api.NewSessionRegistry(api.SessionConfig{
		Annotator:   annotator,
		Constraints: constraints,
		JPEGQuality: cfg.JPEGQuality,
		Watch:       watch,
		Projects:    mongodb,
		Blobs:       blobs,
		Reports:     mongodb,
	}, cfg.SessionTTL, logger)
	defer sessions.Close()

	apiHandlers := &api.Handlers{
		Log:          logger,
		SecretKey:    cfg.JWTSecret,
		PasswordHash: cfg.AdminPasswordHash,
		Sessions:     sessions,
		Projects:     mongodb,
		Reports:      mongodb,
		Photos:       blobs,
	}
	mux := http.NewServeMux()
	apiHandlers.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
