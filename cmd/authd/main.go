package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/campustrack/authcore"
	"github.com/campustrack/authcore/directory"
	"github.com/campustrack/authcore/httpapi"
	"github.com/campustrack/authcore/internal/config"
)

func main() {
	cfg := config.Load()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("pgx pool: %v", err)
	}
	defer pool.Close()

	dir := directory.NewPG(pool)

	engineCfg := authcore.Config{
		Token: authcore.TokenConfig{
			Secret: []byte(cfg.TokenSecret),
			TTL:    cfg.SessionTTL,
		},
	}
	engineCfg.Challenge.EchoCode = cfg.EchoOTP

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithDirectory(dir).
		WithAuditSink(authcore.NewJSONWriterSink(log.Writer())).
		Build()
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	app := fiber.New(fiber.Config{AppName: "campus-auth"})
	httpapi.NewModule(engine, dir).Register(app)

	log.Printf("listening on %s", cfg.HTTPAddr)
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
