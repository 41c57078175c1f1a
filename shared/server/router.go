package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KingsCreatives/Evently/shared/dto"
)

// Version is reported by the health endpoint.
var Version = "v0.1.0"

// NewRouter returns a chi router pre-configured with default middleware and a health endpoint.
func NewRouter(service string, register func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Service: service, Version: Version})
	})

	if register != nil {
		register(r)
	}

	return r
}

// WriteJSON encodes payload as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
