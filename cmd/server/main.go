package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"google.golang.org/api/option"

	sharedauth "github.com/KingsCreatives/Evently/shared/auth"
	"github.com/KingsCreatives/Evently/shared/logging"
	sharedserver "github.com/KingsCreatives/Evently/shared/server"

	"github.com/KingsCreatives/Evently/internal/config"
	"github.com/KingsCreatives/Evently/internal/httpapi"
	"github.com/KingsCreatives/Evently/internal/identity"
	"github.com/KingsCreatives/Evently/internal/user"
	"github.com/KingsCreatives/Evently/internal/webhook"
)

const serviceName = "webhook-service"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	verifier, err := webhook.NewVerifier(cfg.Webhook.Secret)
	if err != nil {
		panic(fmt.Errorf("webhook verifier error: %w", err))
	}

	repo, cleanup, err := newRepository(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer cleanup()

	linker, err := newLinker(cfg, logger)
	if err != nil {
		panic(fmt.Errorf("identity client error: %w", err))
	}

	userService, err := user.NewService(repo, linker, user.NewSystemClock(), user.NewUUIDGenerator())
	if err != nil {
		panic(fmt.Errorf("user service init error: %w", err))
	}

	sessions, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}
	defer sharedauth.Close(sessions)

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		httpapi.RegisterRoutes(r, httpapi.Dependencies{
			Users:            userService,
			WebhookVerifier:  verifier,
			SessionVerifier:  sessions,
			Logger:           logger,
			LinkFailureFatal: cfg.Clerk.LinkFailureFatal,
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newLinker(cfg config.Config, logger *slog.Logger) (user.Linker, error) {
	if cfg.Clerk.SecretKey == "" {
		logger.Warn("CLERK_SECRET_KEY not set, local user ids will not be written back to Clerk")
		return nil, nil
	}
	linker, err := identity.NewLinker(identity.Config{
		SecretKey: cfg.Clerk.SecretKey,
		APIURL:    cfg.Clerk.APIURL,
		Timeout:   cfg.Clerk.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return linker, nil
}

func newRepository(ctx context.Context, cfg config.Config) (user.Repository, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClient(ctx, cfg.GCPProjectID, option.WithUserAgent(serviceName))
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		repo := user.NewFirestoreRepository(client, cfg.Firestore.Collection)
		cleanup := func() {
			_ = client.Close()
		}
		return repo, cleanup, nil
	case config.DataStoreMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI).SetAppName(serviceName))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo client: %w", err)
		}
		cleanup := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(shutdownCtx)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}

		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		if err := user.EnsureMongoIndexes(pingCtx, coll); err != nil {
			cleanup()
			return nil, nil, err
		}
		return user.NewMongoRepository(coll), cleanup, nil
	default:
		return user.NewMemoryRepository(), func() {}, nil
	}
}
