package config

import (
	"testing"
	"time"

	sharedauth "github.com/KingsCreatives/Evently/shared/auth"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "GCP_PROJECT_ID", "DATASTORE", "CLERK_WEBHOOK_SECRET", "WEBHOOK_SECRET", "CLERK_API_TIMEOUT",
		"CLERK_API_URL", "CLERK_SECRET_KEY", "CLERK_LINK_FAILURE_FATAL", "AUTH_MODE", "CLERK_JWKS_URL",
		"CLERK_AUDIENCE", "CLERK_ISSUER", "FIRESTORE_EMULATOR_HOST", "FIRESTORE_USERS_COLLECTION",
		"MONGO_URI", "MONGO_DATABASE", "MONGO_USERS_COLLECTION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.DataStore != DataStoreMemory || cfg.Auth.Mode != sharedauth.ModeNoop {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Webhook.Secret != "whsec_abc" || cfg.Clerk.Timeout != 10*time.Second {
		t.Fatalf("unexpected webhook config: %+v %+v", cfg.Webhook, cfg.Clerk)
	}
	if !cfg.Clerk.LinkFailureFatal {
		t.Fatal("expected link failures to be fatal by default")
	}
}

func TestLoad_RequiresWebhookSecret(t *testing.T) {
	setBaseEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestLoad_PrefersClerkWebhookSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEBHOOK_SECRET", "whsec_old")
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_new")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Webhook.Secret != "whsec_new" {
		t.Fatalf("expected CLERK_WEBHOOK_SECRET to win, got %s", cfg.Webhook.Secret)
	}
}

func TestLoad_ValidatesBackends(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"firestore without project", map[string]string{"DATASTORE": "firestore"}},
		{"mongo without uri", map[string]string{"DATASTORE": "mongo"}},
		{"unknown datastore", map[string]string{"DATASTORE": "redis"}},
		{"clerk auth without jwks", map[string]string{"AUTH_MODE": "clerk"}},
		{"unknown auth mode", map[string]string{"AUTH_MODE": "basic"}},
		{"bad clerk timeout", map[string]string{"CLERK_API_TIMEOUT": "soon"}},
		{"bad link flag", map[string]string{"CLERK_LINK_FAILURE_FATAL": "maybe"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("WEBHOOK_SECRET", "whsec_abc")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_MongoBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("DATASTORE", "MONGO")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CLERK_LINK_FAILURE_FATAL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataStore != DataStoreMongo || cfg.Mongo.Database != "evently" || cfg.Mongo.Collection != "users" {
		t.Fatalf("unexpected mongo config: %+v", cfg)
	}
	if cfg.Clerk.LinkFailureFatal {
		t.Fatal("expected link failures to be non-fatal")
	}
}
