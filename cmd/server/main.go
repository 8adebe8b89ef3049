package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpay/config"
	"marketpay/internal/database"
	"marketpay/internal/middleware"
	"marketpay/internal/router"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	engine := router.Setup(cfg, db, newLimiter(cfg))
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}

// newLimiter shares rate-limit counters through Redis when REDIS_URL is set.
func newLimiter(cfg *config.Config) middleware.Limiter {
	if cfg.Redis.URL == "" {
		return middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Printf("[redis] invalid REDIS_URL, using in-memory rate limiter: %v", err)
		return middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	}
	log.Printf("[redis] rate limiting through %s", opt.Addr)
	return middleware.NewRedisRateLimiter(redis.NewClient(opt), cfg.Server.RateLimit, cfg.Server.RateWindow)
}
