package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/config"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/database"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/handler"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/middleware"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/queue"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/router"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/security"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("database migrate failed: %v", err)
	}

	// Redis is optional; without it rate limiting and caching are no-ops.
	rdb := config.NewRedisClient()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	cylinders := repository.NewCylinderRepo(db)
	scans := repository.NewScanRepo(db)
	history := repository.NewHistoryRepo(db)
	orders := repository.NewOrderRepo(db)
	deliveries := repository.NewDeliveryRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	tracking := repository.NewTrackingRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	cylinderH := handler.NewCylinderHandler(cylinders, scans, history, orders, users, security.NewDetector())
	orderH := handler.NewOrderHandler(orders, deliveries, vehicles, users)
	vehicleH := handler.NewVehicleHandler(vehicles, users)
	trackingH := handler.NewTrackingHandler(tracking, deliveries, orders)

	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, limiter)
	router.RegisterCylinders(e, cylinderH, cfg.JWTSecret, limiter, cache)
	router.RegisterFleet(e, orderH, vehicleH, trackingH, cfg.JWTSecret)

	// Background consumer turning security alerts into the audit log
	// file; it reconnects on its own and never takes the server down.
	go func() {
		if err := queue.StartSecurityAlertConsumer(); err != nil {
			log.Printf("security alert consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
