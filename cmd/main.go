package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"swipedine/backend/internal/api/handler"
	"swipedine/backend/internal/config"
	"swipedine/backend/internal/models"
	"swipedine/backend/internal/sessionhub"
	"swipedine/backend/internal/storage"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// TranslateError maps the unique-constraint violation on votes to
	// gorm.ErrDuplicatedKey, which the storage layer depends on.
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	if err := db.AutoMigrate(&models.Vote{}); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("database and Redis connections established, migrations complete")
	return db, rdb
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	coord := sessionhub.NewCoordinator(s)
	hub := sessionhub.NewHub(coord, s, cfg.InstanceID)
	hub.StartBusListener(s)
	go hub.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, coord, cfg)

	r.POST("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)

	// Polling fallback for the outer API layer.
	r.POST("/sessions/:id/join", h.JoinSession)
	r.POST("/sessions/:id/items", h.PresentItem)
	r.POST("/sessions/:id/votes", h.SubmitVote)
	r.GET("/sessions/:id", h.GetSessionState)
	r.GET("/sessions/:id/matches", h.GetSessionMatches)
	r.GET("/sessions/:id/progress", h.GetVotingProgress)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info().Str("addr", cfg.ListenAddr).Str("instance", cfg.InstanceID).Msg("starting server")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
