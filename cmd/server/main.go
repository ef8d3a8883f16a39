package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/communitypulse/server/internal/config"
	"github.com/communitypulse/server/internal/database"
	"github.com/communitypulse/server/internal/handler"
	"github.com/communitypulse/server/internal/middleware"
	"github.com/communitypulse/server/internal/queue"
	"github.com/communitypulse/server/internal/registration"
	"github.com/communitypulse/server/internal/repository"
	"github.com/communitypulse/server/internal/router"
	"github.com/communitypulse/server/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis backs the rate limiter and the response cache; both degrade
	// to pass-through middleware when the client is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	regs := repository.NewRegistrationRepo(db)
	notes := repository.NewNotificationRepo(db)

	manager := registration.NewManager(regs, notes)
	publisher := service.NewRegistrationPublisher()

	authH := handler.NewAuthHandler(cfg, users, tokens)
	eventH := handler.NewEventHandler(cfg, users, events, regs, notes)
	regH := handler.NewRegistrationHandler(manager, users, events, regs, publisher)
	noteH := handler.NewNotificationHandler(notes)
	adminH := handler.NewAdminHandler(cfg, users, events, notes)

	e := echo.New()
	e.HideBanner = true

	// The limiter is attached per route group rather than globally so
	// the health check stays exempt and authenticated groups can key
	// buckets by user id (the token bucket runs after JWTAuth there).
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, cfg.UploadDir)
	router.RegisterAuth(e, authH, cfg.JWTSecret, limit)
	router.RegisterEvents(e, eventH, cfg.JWTSecret, cache, limit)
	router.RegisterRegistrations(e, regH, noteH, cfg.JWTSecret, limit)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret, limit)

	// Drains registration.confirmed into logs/registrations.log; runs its
	// own reconnect loop for the life of the process.
	go func() {
		if err := queue.StartRegistrationConsumer(); err != nil {
			log.Printf("registration consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
