package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"github.com/delinked/delinked/adapters/events"
	"github.com/delinked/delinked/adapters/store"
	"github.com/delinked/delinked/adapters/tokenizer"
	"github.com/delinked/delinked/config"
	"github.com/delinked/delinked/obs"
	"github.com/delinked/delinked/ports"
	"github.com/delinked/delinked/service"
	"github.com/delinked/delinked/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Error("no JWT secret configured; set auth.jwt_secret or DELINKED_JWT_SECRET")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Store.Driver == "redis" || cfg.Events.Driver == "redisstream" {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
	}

	userStore, err := buildStore(cfg, redisClient)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	eventPub, err := buildPublisher(cfg, redisClient)
	if err != nil {
		logger.Error("failed to create event publisher", "driver", cfg.Events.Driver, "error", err)
		os.Exit(1)
	}

	tok := tokenizer.NewJWTTokenizer([]byte(cfg.Auth.JWTSecret))
	authService := service.NewAuthService(userStore, tok, eventPub).WithSessionTTL(cfg.Auth.TokenTTL)
	profileService := service.NewProfileService(userStore)

	obs.Init()
	router := http.SetupRouter(authService, profileService, tok)

	logger.Info("starting server", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "events", cfg.Events.Driver)
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func buildStore(cfg *config.Config, redisClient *redis.Client) (ports.UserStore, error) {
	switch cfg.Store.Driver {
	case "redis":
		return store.NewRedisStore(redisClient), nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildPublisher(cfg *config.Config, redisClient *redis.Client) (ports.EventPublisher, error) {
	switch cfg.Events.Driver {
	case "redisstream":
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewSlogLogger(slog.Default()),
		)
		if err != nil {
			return nil, err
		}
		return events.NewWatermillPublisher(publisher), nil
	case "gochannel":
		pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(slog.Default()))
		return events.NewWatermillPublisher(pubsub), nil
	default:
		return nil, nil
	}
}
