package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/christopherjohns/roomchat/internal/config"
	"github.com/christopherjohns/roomchat/internal/filter"
	"github.com/christopherjohns/roomchat/internal/logging"
	"github.com/christopherjohns/roomchat/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closer := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	words, err := loadFilter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load profanity filter", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, words, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// loadFilter builds the profanity filter from the embedded list plus the
// optional word file and Redis set.
func loadFilter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*filter.Filter, error) {
	f, err := filter.Default()
	if err != nil {
		return nil, err
	}

	if cfg.ProfanityWordsFile != "" {
		words, err := filter.LoadFile(cfg.ProfanityWordsFile)
		if err != nil {
			return nil, err
		}
		f.Add(words...)
		logger.Info("loaded profanity word file", "path", cfg.ProfanityWordsFile, "words", len(words))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, err
		}
		src := filter.NewRedisSource(rdb, cfg.ProfanityRedisKey)
		defaults, err := filter.DefaultWords()
		if err != nil {
			rdb.Close()
			return nil, err
		}
		if seeded, err := src.Seed(ctx, defaults...); err != nil {
			rdb.Close()
			return nil, err
		} else if seeded {
			logger.Info("seeded profanity set in redis", "key", cfg.ProfanityRedisKey, "words", len(defaults))
		}
		n, err := src.Load(ctx, f)
		rdb.Close()
		if err != nil {
			return nil, err
		}
		logger.Info("loaded profanity words from redis", "addr", cfg.RedisAddr, "key", cfg.ProfanityRedisKey, "words", n)
	}

	logger.Info("profanity filter ready", "words", f.Len())
	return f, nil
}
