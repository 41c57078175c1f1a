package envconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Get returns the value of the requested environment variable or the supplied fallback when empty.
func Get(name string, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

// MustGet returns the value of the requested environment variable or panics if it's empty.
func MustGet(name string) string {
	value := os.Getenv(name)
	if value == "" {
		panic(fmt.Sprintf("expected env %s to be set", name))
	}
	return value
}

// Bool parses a boolean environment variable, returning fallback when unset.
func Bool(name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Duration parses a Go duration environment variable, returning fallback when unset.
func Duration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Validate validates a struct using validator tags.
func Validate(v any) error {
	return validate.Struct(v)
}
