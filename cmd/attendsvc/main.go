// attendsvc is the attendance risk-analysis service. It serves the analysis
// HTTP API, exposes Prometheus metrics on a separate port, and optionally
// ingests live capture events from the face-recognition service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
	"github.com/Tharun06102005/smart-attendance-system/internal/cfg"
	"github.com/Tharun06102005/smart-attendance-system/internal/facerec"
	"github.com/Tharun06102005/smart-attendance-system/internal/features"
	"github.com/Tharun06102005/smart-attendance-system/internal/metrics"
	"github.com/Tharun06102005/smart-attendance-system/internal/ml"
	"github.com/Tharun06102005/smart-attendance-system/internal/pipeline"
	"github.com/Tharun06102005/smart-attendance-system/internal/risk"
	"github.com/Tharun06102005/smart-attendance-system/internal/server"
	"github.com/Tharun06102005/smart-attendance-system/internal/storage"
)

func main() {
	// .env is optional; real deployments set variables directly
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	predictor, err := initializePredictor(c, m)
	if err != nil {
		// A broken model contract must never produce silent garbage
		log.Fatal().Err(err).Msg("risk predictor initialization failed")
	}

	orchestrator := pipeline.New(predictor, c.TotalSessionsPlanned, c.Workers, m)

	startMetricsServer(ctx, c)

	var wg sync.WaitGroup
	startCaptureIngest(ctx, &wg, c, store, m)

	face := initializeFaceClient(ctx, c, m)

	api := server.New(orchestrator, face, store, c.HTTPPort)
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown analysis server")
		}
	}()
	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("analysis server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, &wg)
}

// initializeStorage initializes storage if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
			return nil
		}
		return store
	}
	return nil
}

// initializePredictor loads the model manifest and builds the risk predictor.
// The heuristic fallback is used only when the artifact is missing AND the
// config explicitly allows it.
func initializePredictor(c cfg.Settings, m *metrics.Metrics) (*risk.Predictor, error) {
	manifest, err := ml.LoadManifest(c.ManifestPath)
	if err != nil {
		return nil, err
	}
	m.ModelAccuracy.Set(manifest.TestAccuracy)

	modelPath := manifest.ModelPath
	if modelPath == "" {
		modelPath = c.ModelPath
	}

	var classifier ml.Classifier
	classifier, err = ml.NewSubprocessClassifier(modelPath, c.PredictTimeout, m.Tracker())
	if err != nil {
		if !c.AllowFallback || !attendance.IsConfigurationError(err) {
			return nil, err
		}
		log.Warn().Err(err).Msg("classifier unavailable, using heuristic fallback")
		m.FallbackUse.Inc()
		classifier = ml.NewHeuristicClassifier(features.Count)
	}

	return risk.NewPredictor(classifier, manifest)
}

// initializeFaceClient builds the face-service REST client when a base URL is
// configured. An unreachable service is logged but not fatal; captures can
// still be pulled once it comes back.
func initializeFaceClient(ctx context.Context, c cfg.Settings, m *metrics.Metrics) *facerec.Client {
	if c.FaceServiceURL == "" {
		return nil
	}

	face := facerec.NewClient(c.FaceServiceURL, c.RESTTimeout, m)

	healthCtx, healthCancel := context.WithTimeout(ctx, c.RESTTimeout)
	defer healthCancel()
	if err := face.Health(healthCtx); err != nil {
		log.Warn().Err(err).Str("url", c.FaceServiceURL).Msg("face service health check failed")
	}
	return face
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startCaptureIngest starts the capture stream subscriber and ingest loop
// when both a stream URL and persistent storage are configured.
func startCaptureIngest(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, store *storage.Store, m *metrics.Metrics) {
	if c.StreamURL == "" || store == nil {
		log.Info().Msg("capture ingest disabled")
		return
	}

	events := make(chan facerec.CaptureEvent, 64)
	streamErrors := make(chan error, 32)

	ws := facerec.NewWS(c.StreamURL, m)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Stream(ctx, events, streamErrors, c.Ping); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("capture stream ended")
		}
	}()

	ingestor := facerec.NewIngestor(store, m)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ingestor.Run(ctx, events)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-streamErrors:
				log.Error().Err(err).Msg("background error")
				m.ErrorsTotal.WithLabelValues("stream").Inc()
			}
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
