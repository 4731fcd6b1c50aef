package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/wind-alert/internal/accuracy"
	"github.com/kjstillabower/wind-alert/internal/alert"
	"github.com/kjstillabower/wind-alert/internal/conditions"
	"github.com/kjstillabower/wind-alert/internal/config"
	"github.com/kjstillabower/wind-alert/internal/forecast"
	"github.com/kjstillabower/wind-alert/internal/notify"
	"github.com/kjstillabower/wind-alert/internal/observability"
	"github.com/kjstillabower/wind-alert/internal/observations"
	"github.com/kjstillabower/wind-alert/internal/reconcile"
	"github.com/kjstillabower/wind-alert/internal/snapshot"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store, closeStore, err := openStore(ctx, cfg.Snapshot, httpClient, logger)
	if err != nil {
		logger.Error("snapshot store", zap.Error(err))
		flush(logger, cfg.Metrics)
		return 1
	}
	defer closeStore()

	deps := alert.Dependencies{
		Sources:    buildSources(cfg, httpClient, logger),
		Matcher:    conditions.NewMatcher(cfg.Hazard, cfg.Zones),
		Reconciler: reconcile.New(),
		Tracker:    accuracy.NewTracker(store, logger),
		Dispatcher: notify.NewDispatcher(
			notify.NewCallMeBotSender(httpClient, cfg.Notify.URL),
			cfg.Notify.Recipients,
			newLimiter(cfg.Notify.MinInterval),
			logger,
		),
		Logger: logger,
	}
	if cfg.Station.Enabled() {
		deps.Observations = observations.NewStationClient(httpClient, observations.StationConfig{
			BaseURL:        cfg.Station.URL,
			ApplicationKey: cfg.Station.ApplicationKey,
			APIKey:         cfg.Station.APIKey,
			MAC:            cfg.Station.MAC,
			Location:       cfg.Station.Timezone,
		}, logger)
	} else {
		logger.Info("station not configured; accuracy reconciliation disabled")
	}

	agg := alert.NewAggregator(alert.Config{
		Latitude:          cfg.Latitude,
		Longitude:         cfg.Longitude,
		PlaceName:         cfg.PlaceName,
		Horizon:           cfg.Forecast.Horizon,
		ObservationWindow: cfg.Station.Window,
		SourceTimeout:     cfg.Forecast.SourceTimeout,
		Concurrency:       cfg.Forecast.Concurrency,
		Location:          cfg.Timezone,
	}, deps)

	res, err := agg.Run(ctx)
	code := 0
	if err != nil {
		logger.Error("run failed", zap.String("run_id", runID), zap.Error(err))
		code = 1
	} else {
		fmt.Println(res.Message)
	}

	flush(logger, cfg.Metrics)
	return code
}

func buildSources(cfg *config.Config, client *http.Client, logger *zap.Logger) []forecast.Source {
	breaker := forecast.NewHostBreaker("open-meteo", cfg.Forecast.BreakerFailures, logger)
	sources := make([]forecast.Source, 0, len(cfg.Forecast.OpenMeteoModels)+1)
	for _, model := range cfg.Forecast.OpenMeteoModels {
		sources = append(sources, forecast.NewOpenMeteoSource(
			client, cfg.Forecast.OpenMeteoURL, model, cfg.Forecast.ForecastDays, breaker, logger,
		))
	}
	if cfg.Forecast.OpenWeatherAPIKey != "" {
		sources = append(sources, forecast.NewOpenWeatherSource(client, cfg.Forecast.OpenWeatherAPIKey, cfg.Forecast.OpenWeatherURL))
	} else {
		logger.Info("OPENWEATHER_API_KEY not set; openweather source disabled")
	}
	return sources
}

func openStore(ctx context.Context, cfg config.SnapshotConfig, client *http.Client, logger *zap.Logger) (snapshot.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Info("snapshot backend: memory")
		return snapshot.NewMemoryStore(), noop, nil
	case config.BackendFile:
		logger.Info("snapshot backend: file", zap.String("path", cfg.FilePath))
		return snapshot.NewFileStore(cfg.FilePath), noop, nil
	case config.BackendGitHub:
		logger.Info("snapshot backend: github", zap.String("repository", cfg.GitHubRepository), zap.String("path", cfg.GitHubPath))
		return snapshot.NewGitHubStore(client, snapshot.GitHubConfig{
			BaseURL:    cfg.GitHubAPIURL,
			Token:      cfg.GitHubToken,
			Repository: cfg.GitHubRepository,
			Path:       cfg.GitHubPath,
			Branch:     cfg.GitHubBranch,
		}), noop, nil
	case config.BackendMemcached:
		mc := snapshot.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedKey, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err := mc.Ping(); err != nil {
			_ = mc.Close()
			return nil, nil, fmt.Errorf("memcached ping: %w", err)
		}
		logger.Info("snapshot backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, func() {
			if err := mc.Close(); err != nil {
				logger.Error("memcached close", zap.Error(err))
			}
		}, nil
	case config.BackendS3:
		s3Client, err := snapshot.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("snapshot backend: s3", zap.String("bucket", cfg.S3Bucket), zap.String("key", cfg.S3Key))
		return snapshot.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3Key), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

// newLimiter paces deliveries; zero interval means no pacing.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func flush(logger *zap.Logger, cfg config.MetricsConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := observability.FlushTelemetry(ctx, logger, cfg.PushgatewayURL, cfg.Job); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
