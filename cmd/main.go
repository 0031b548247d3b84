package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"translator-bot/handler"
	"translator-bot/internal/cache"
	"translator-bot/internal/dedup"
	"translator-bot/internal/integrations/dingtalk"
	"translator-bot/internal/integrations/openai"
	"translator-bot/internal/integrations/paramstore"
	"translator-bot/internal/langdetect"
	"translator-bot/internal/ratelimit"
	"translator-bot/internal/repository"
	"translator-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: envLevel("LOG_LEVEL", slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	paramPrefix := mustEnv("PARAM_PREFIX")
	stateTable := os.Getenv("STATE_TABLE")
	redisAddr := os.Getenv("REDIS_ADDR")
	providerBaseURL := envString("PROVIDER_BASE_URL", openai.DefaultBaseURL)
	providerModel := envString("PROVIDER_MODEL", usecase.DefaultModel)
	providerTimeout := envDuration("PROVIDER_TIMEOUT", usecase.DefaultProviderTimeout)
	maxInflight := envInt("MAX_INFLIGHT", usecase.DefaultMaxInflight)
	rateLimit := envInt("RATE_LIMIT", ratelimit.DefaultLimit)
	rateWindow := envDuration("RATE_WINDOW", ratelimit.DefaultWindow)
	cacheSize := envInt("CACHE_SIZE", cache.DefaultCapacity)
	cacheTTL := time.Duration(envInt("CACHE_TTL", int(cache.DefaultTTL/time.Second))) * time.Second
	dedupCapacity := envInt("DEDUP_CAPACITY", dedup.DefaultCapacity)
	mention := envString("BOT_MENTION", usecase.DefaultMention)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	providerClient, err := openai.NewClient(ssmClient, paramPrefix, openai.WithBaseURL(providerBaseURL))
	if err != nil {
		logger.Error("failed to create provider client", "err", err)
		os.Exit(1)
	}
	guarded, err := openai.NewGuardedClient(providerClient, openai.WithBreakerLogger(logger))
	if err != nil {
		logger.Error("failed to create circuit breaker", "err", err)
		os.Exit(1)
	}

	deps := usecase.Deps{
		Dedup:    dedup.New(dedupCapacity),
		Detector: langdetect.New(logger),
		Cache:    cache.New(cacheSize, cacheTTL),
		LLM:      guarded,
		Replier:  dingtalk.NewClient(),
		Logger:   logger,
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter, err := ratelimit.NewRedisSlidingWindow(rdb, rateLimit, rateWindow)
		if err != nil {
			logger.Error("failed to create redis rate limiter", "err", err)
			os.Exit(1)
		}
		deps.Limiter = limiter
		logger.Info("using shared rate limiter", "addr", redisAddr)
	} else {
		deps.Limiter = ratelimit.NewSlidingWindow(rateLimit, rateWindow)
	}

	if stateTable != "" {
		stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
		if err != nil {
			logger.Error("failed to create state client", "err", err)
			os.Exit(1)
		}
		deps.Claims = stateClient
		deps.Recorder = stateClient
	}

	// ---- Handler ----
	translateService, err := usecase.NewTranslateService(deps, usecase.Config{
		Model:           providerModel,
		Mention:         mention,
		CacheTTL:        cacheTTL,
		ProviderTimeout: providerTimeout,
		MaxInflight:     int64(maxInflight),
	})
	if err != nil {
		logger.Error("failed to create translate service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(translateService, handler.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envDuration accepts Go duration syntax or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envLevel(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return level
}
