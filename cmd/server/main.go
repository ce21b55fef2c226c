package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/party-rooms/internal/config"
	"github.com/iliyamo/party-rooms/internal/database"
	"github.com/iliyamo/party-rooms/internal/handler"
	"github.com/iliyamo/party-rooms/internal/middleware"
	"github.com/iliyamo/party-rooms/internal/queue"
	"github.com/iliyamo/party-rooms/internal/registry"
	"github.com/iliyamo/party-rooms/internal/repository"
	"github.com/iliyamo/party-rooms/internal/router"
	"github.com/iliyamo/party-rooms/internal/service"
	"github.com/iliyamo/party-rooms/internal/spotify"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	// Durable credential store (the only persistent state).
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	// Live room and session state.
	rooms := registry.NewRoomStore(registry.NewCodeGenerator(cfg.RoomCodeAlphabet, cfg.RoomCodeLength))
	sessions := registry.NewSessionStore(rooms)

	// Provider adapter and vote engine.
	client := spotify.NewClient(spotify.ClientConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifySecret,
		RedirectURI:  cfg.SpotifyRedirectURI,
	})
	tokens := repository.NewProviderTokenRepo(db)
	player := spotify.NewProxy(client, tokens, rooms, cfg.PlaybackCacheTTL)
	votes := service.NewVoteEngine(rooms, player)

	// Background audit-log consumer for room events.
	go func() {
		if err := queue.StartRoomEventConsumer(); err != nil {
			log.Printf("room event consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.Session(cfg.JWTSecret, cfg.SessionTTLDays))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient()))

	router.RegisterRoutes(e)
	router.RegisterRooms(e, handler.NewRoomHandler(rooms, sessions, votes, player))
	router.RegisterSpotify(e, handler.NewSpotifyHandler(rooms, sessions, votes, player, cfg.FrontendURL))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
