package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
)

// DefaultBaseURL is the Clerk Backend API host. The SDK appends the API version.
const DefaultBaseURL = clerk.APIURL

const apiVersionSuffix = "/v1"

// MetadataKeyUserID is the public metadata key holding the local user id.
const MetadataKeyUserID = "userId"

const defaultTimeout = 10 * time.Second

// Config configures the Backend API client.
type Config struct {
	SecretKey  string
	APIURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Linker records local user ids in Clerk public metadata.
type Linker struct {
	users *clerkuser.Client
}

// NewLinker builds a Linker authenticated with the instance secret key.
func NewLinker(cfg Config) (*Linker, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("clerk secret key is required")
	}
	baseURL := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"), apiVersionSuffix)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	config := &clerk.ClientConfig{}
	config.Key = clerk.String(key)
	config.URL = clerk.String(baseURL)
	config.HTTPClient = httpClient
	return &Linker{users: clerkuser.NewClient(config)}, nil
}

// LinkUser writes public_metadata.userId = localID on the Clerk user externalID.
// Clerk deep-merges the update into any existing public metadata.
func (l *Linker) LinkUser(ctx context.Context, externalID, localID string) error {
	if strings.TrimSpace(externalID) == "" {
		return errors.New("clerk user id is required")
	}

	raw, err := json.Marshal(map[string]string{MetadataKeyUserID: localID})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	metadata := json.RawMessage(raw)

	if _, err := l.users.UpdateMetadata(ctx, externalID, &clerkuser.UpdateMetadataParams{
		PublicMetadata: &metadata,
	}); err != nil {
		return fmt.Errorf("update clerk metadata: %w", err)
	}
	return nil
}
