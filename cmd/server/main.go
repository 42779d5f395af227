package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"admin-console/internal/auth"
	"admin-console/internal/config"
	"admin-console/internal/engine"
	"admin-console/internal/metadata"
	"admin-console/internal/seed"
	"admin-console/internal/store"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s)", cfg.Server.Port, cfg.Database.Path)

	// 2. Open the datastore directory
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	log.Println("Datastore ready")

	// 3. Seed system tables on first run
	if err := seed.Run(db); err != nil {
		log.Fatalf("Failed to seed datastore: %v", err)
	}

	// 4. Create registry and load entity metadata
	reg := metadata.NewRegistry()
	reg.Load(metadata.Builtin())

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Auth routes (login/logout open, /me behind the session middleware)
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	sessionMW := auth.SessionMiddleware(cfg.JWTSecret)
	authHandler := auth.NewAuthHandler(db, cfg.JWTSecret, sessionTTL)
	auth.RegisterAuthRoutes(app, authHandler, sessionMW)

	// 8. Generic resource routes, session + permission gated
	resolver := auth.NewResolver(db)
	permMW := auth.RequirePermission(reg, resolver)
	handler := engine.NewHandler(db, reg)
	engine.RegisterResourceRoutes(app, handler, sessionMW, permMW)

	// 9. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
