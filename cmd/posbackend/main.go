package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"

	"posbackend/internal/cache"
	"posbackend/internal/config"
	"posbackend/internal/events"
	"posbackend/internal/http/handlers"
	applog "posbackend/internal/log"
	"posbackend/internal/repos"
)

func main() {
	cfg := config.Load()

	closer, err := applog.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
	}
	defer closer.Close()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DSN(), cfg.DBSeed)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Shared limiter counters when Redis is reachable, per-process otherwise
	var storage fiber.Storage
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "pos:limiter")
		if err != nil {
			log.Printf("[warn] redis unavailable, using in-memory rate limits: %v", err)
		} else {
			storage = rs
			defer rs.Close()
		}
	}

	pub := events.NewPublisher(cfg.AMQPURL)

	engine := html.New(cfg.TemplateDir, ".html")

	deps := handlers.NewDeps(db, cfg, pub)
	app := handlers.NewApp(handlers.AppOptions{
		Views:          engine,
		Origins:        cfg.Origins(),
		RateLimitMax:   cfg.RateLimitMax,
		LimiterStorage: storage,
		AccessLog:      true,
	}, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Printf("[server] shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
