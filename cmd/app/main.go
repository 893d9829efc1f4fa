// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"contentforge/internal/config"
	"contentforge/internal/domain/ports/adapter"
	aiAdapters "contentforge/internal/infra/adapters/ai"
	"contentforge/internal/infra/broadcast"
	pg "contentforge/internal/infra/db/postgres"
	"contentforge/internal/infra/logging"
	"contentforge/internal/infra/metrics"
	red "contentforge/internal/infra/redis"
	"contentforge/internal/infra/web"
	"contentforge/internal/infra/worker"
	"contentforge/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers, header auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	accountRepo := pg.NewAccountRepoCacheDecorator(pg.NewPostgresAccountRepo(pool), redisClient, cfg.Redis.TTL)
	jobRepo := pg.NewPostgresBatchJobRepo(pool)
	activityRepo := pg.NewPostgresActivityRepo(pool)
	artifactRepo := pg.NewPostgresArtifactRepo(pool)

	// ---- Providers (OpenAI primary, Gemini research, Anthropic tertiary) ----
	primary, research, tertiary := buildProviders(ctx, cfg, logger)

	// ---- Core services ----
	hub := broadcast.NewHub(logger)
	governor := usecase.NewQuotaGovernor()
	orchestrator := usecase.NewGenerationOrchestrator(
		primary, research, tertiary, activityRepo, hub, cfg.AI.CallTimeout, logger)

	pool2 := worker.NewPool(cfg.Batch.Workers, 256, logger)
	processor := worker.NewBatchProcessor(
		jobRepo, accountRepo, artifactRepo, txm, governor, orchestrator, locker, hub,
		cfg.Batch.ItemDelay, cfg.Quota.LockTTL, logger)

	chatUC := usecase.NewChatService(
		accountRepo, artifactRepo, txm, governor, orchestrator, locker, hub, pool2,
		cfg.Quota.LockTTL, logger)
	batchUC := usecase.NewBatchService(jobRepo, processor, pool2, logger)

	// ---- HTTP API ----
	apiSrv := web.NewServer(chatUC, batchUC, artifactRepo, hub, cfg.Auth.JWTSecret, cfg.Runtime.Dev, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiSrv.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	// ---- Metrics ----
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info().Int("port", cfg.Metrics.Port).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	if err := pool2.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("worker pool did not drain in time")
	}
	cancel()
}

// buildProviders wires the three-provider chain, substituting noops for any
// provider without credentials so a partial config still boots.
func buildProviders(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (primary, research, tertiary adapter.ProviderClient) {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("using noop providers")
		return aiAdapters.NewNoopProvider("openai"),
			aiAdapters.NewNoopProvider("gemini"),
			aiAdapters.NewNoopProvider("anthropic")
	}

	var err error
	primary, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("openai adapter")
	}
	research, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.GeminiModel, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini adapter")
	}
	tertiary, err = aiAdapters.NewAnthropicAdapter(cfg.AI.AnthropicKey, cfg.AI.AnthropicModel, cfg.AI.AnthropicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("anthropic adapter")
	}

	primary = aiAdapters.NewLimitedProvider(primary, cfg.AI.ConcurrentLimit)
	research = aiAdapters.NewLimitedProvider(research, cfg.AI.ConcurrentLimit)
	tertiary = aiAdapters.NewLimitedProvider(tertiary, cfg.AI.ConcurrentLimit)
	return primary, research, tertiary
}
