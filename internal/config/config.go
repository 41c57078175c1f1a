package config

import (
	"fmt"
	"strings"
	"time"

	sharedauth "github.com/KingsCreatives/Evently/shared/auth"
	"github.com/KingsCreatives/Evently/shared/envconfig"
)

// Config encapsulates the runtime configuration for the webhook service.
type Config struct {
	Port         string `validate:"required"`
	GCPProjectID string
	DataStore    DataStore
	Webhook      WebhookConfig
	Clerk        ClerkConfig
	Auth         AuthConfig
	Firestore    FirestoreConfig
	Mongo        MongoConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps users in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores users in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
	// DataStoreMongo stores users in MongoDB.
	DataStoreMongo DataStore = "mongo"
)

// WebhookConfig holds the Svix signing secret Clerk issues per endpoint.
type WebhookConfig struct {
	Secret string `validate:"required"`
}

// ClerkConfig configures the Backend API client used for the metadata write-back.
type ClerkConfig struct {
	APIURL    string
	SecretKey string
	Timeout   time.Duration
	// LinkFailureFatal turns a failed write-back into a 500 so Clerk redelivers the event.
	LinkFailureFatal bool
}

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     sharedauth.Mode
	JWKSURL  string
	Audience string
	Issuer   string
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
	Collection   string
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	timeout, err := envconfig.Duration("CLERK_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	linkFatal, err := envconfig.Bool("CLERK_LINK_FAILURE_FATAL", true)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Webhook: WebhookConfig{
			Secret: envconfig.Get("CLERK_WEBHOOK_SECRET", envconfig.Get("WEBHOOK_SECRET", "")),
		},
		Clerk: ClerkConfig{
			APIURL:           envconfig.Get("CLERK_API_URL", "https://api.clerk.com"),
			SecretKey:        envconfig.Get("CLERK_SECRET_KEY", ""),
			Timeout:          timeout,
			LinkFailureFatal: linkFatal,
		},
		Auth: AuthConfig{
			Mode:     sharedauth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(sharedauth.ModeNoop)))),
			JWKSURL:  envconfig.Get("CLERK_JWKS_URL", ""),
			Audience: envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:   envconfig.Get("CLERK_ISSUER", ""),
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
			Collection:   envconfig.Get("FIRESTORE_USERS_COLLECTION", "users"),
		},
		Mongo: MongoConfig{
			URI:        envconfig.Get("MONGO_URI", ""),
			Database:   envconfig.Get("MONGO_DATABASE", "evently"),
			Collection: envconfig.Get("MONGO_USERS_COLLECTION", "users"),
		},
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Webhook.Secret) == "" {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET is required")
	}

	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	case DataStoreMongo:
		if cfg.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required when datastore=mongo")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Auth.Mode {
	case sharedauth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case sharedauth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	return nil
}
