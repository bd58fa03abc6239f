package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/handlers"
	"github.com/Random121/nwhacks-2026/models"
	"github.com/Random121/nwhacks-2026/utils"
)

// Load environment variables from .env file before anything reads them.
func init() {
	if err := godotenv.Load(); err != nil {
		// Not fatal; real env vars may already be set.
		os.Stderr.WriteString("warning: no .env file loaded\n")
	}
}

func main() {
	cfg, err := models.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogFile)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("FocusGuard monitoring engine starting",
		zap.String("vision_model", cfg.VisionModel),
		zap.String("port", cfg.HTTPPort))

	// The criteria cache is optional; monitoring runs fine without it.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          0,
			DialTimeout: 20 * time.Second,
		})

		redisCtx, cancelRedis := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := redisClient.Ping(redisCtx).Result(); err != nil {
			logger.Warn("Redis unreachable, criteria caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Successfully connected to Redis")
		}
		cancelRedis()
	}

	http.HandleFunc("/focus", func(w http.ResponseWriter, r *http.Request) {
		handlers.HandleFocusSession(w, r, redisClient, cfg)
	})
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverExit := make(chan struct{})
	go func() {
		defer close(serverExit)
		addr := ":" + cfg.HTTPPort
		logger.Info("Listening for focus sessions", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error("HTTP server exited", zap.Error(err))
		}
	}()

	select {
	case <-stop:
		logger.Info("Shutting down...")
	case <-serverExit:
		logger.Info("Server exited unexpectedly...")
	}

	logger.Info("Shut down gracefully")
}
