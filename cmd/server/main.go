package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"mooddiary/internal/app"
	"mooddiary/internal/config"
	"mooddiary/internal/ratelimit"
	"mooddiary/internal/server"
	"mooddiary/internal/usertoken"
	"mooddiary/internal/util"
	"mooddiary/pkg/ai"
	"mooddiary/pkg/analysis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	jwtTTL, err := config.ParseJWTTTL(cfg.JWTTTL)
	if err != nil {
		log.Fatalf("failed to parse jwt TTL: %v", err)
	}
	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokens, err := usertoken.NewManager(usertoken.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    jwtTTL,
		Leeway: jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	generator, err := ai.NewGenerator(ai.Config{
		Provider:    cfg.LLMProvider,
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
	})
	if err != nil {
		log.Fatalf("failed to init text generator: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabasePath: cfg.DatabasePath,
		Analyzer:     analysis.NewAnalyzer(generator, cfg.LLMMaxConcurrent),
		Tokens:       tokens,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	newLimiter := func(name string, limit int) *ratelimit.FixedWindowLimiter {
		if limit <= 0 {
			return nil
		}
		prefix := "mooddiary:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init %s rate limiter: %v", name, err)
		}
		return limiter
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		Tokens:          tokens,
		RegisterLimiter: newLimiter("register", cfg.RegisterRateLimitPerMinute),
		LoginLimiter:    newLimiter("login", cfg.LoginRateLimitPerMinute),
		TrustedProxies:  trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// model calls can take minutes on cold starts
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("mooddiary server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
