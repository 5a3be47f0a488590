package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pronounce-go/internal/config"
	"pronounce-go/internal/httpapi"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/observe"
	"pronounce-go/internal/pipeline"
)

var version = "dev"

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("version", version).Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, "pronounce-go", version)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise telemetry")
	}
	metrics := observe.DefaultMetrics()

	svc := config.FromEnv()
	log.WithFields(logrus.Fields{
		"language":      svc.Language,
		"reference_dir": svc.ReferenceDir,
		"mock_speech":   svc.MockSpeech,
	}).Info("configuration loaded")

	p, err := pipeline.Build(svc, log, metrics)
	if err != nil {
		log.WithError(err).Fatal("failed to build assessment pipeline")
	}
	log.WithField("references", p.Store.Len()).Info("assessment pipeline ready")

	mux := http.NewServeMux()
	httpapi.New(p.Engine, p.Remote.Ready, log).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%s", svc.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      observe.Middleware(metrics, log.Component("http"))(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server terminated")
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.WithError(err).Warn("telemetry shutdown")
	}
	log.Info("stopped")
}
