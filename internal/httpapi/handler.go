package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sharedauth "github.com/KingsCreatives/Evently/shared/auth"
	"github.com/KingsCreatives/Evently/shared/dto"
	sharederrors "github.com/KingsCreatives/Evently/shared/errors"
	"github.com/KingsCreatives/Evently/shared/logging"
	sharedserver "github.com/KingsCreatives/Evently/shared/server"

	"github.com/KingsCreatives/Evently/internal/user"
	"github.com/KingsCreatives/Evently/internal/webhook"
)

// WebhookPath is where Clerk delivers user lifecycle events.
const WebhookPath = "/api/webhook/clerk"

// UserSyncer applies user lifecycle events to the local store.
type UserSyncer interface {
	Create(ctx context.Context, externalID string, profile user.Profile) (user.User, error)
	Update(ctx context.Context, externalID string, profile user.Profile) (user.User, error)
	Delete(ctx context.Context, externalID string) (user.User, error)
}

// Dependencies groups the collaborators of the HTTP layer.
type Dependencies struct {
	Users            UserSyncer
	WebhookVerifier  *webhook.Verifier
	SessionVerifier  sharedauth.Verifier
	Logger           *slog.Logger
	LinkFailureFatal bool
}

// RegisterRoutes registers the webhook receiver and the session endpoint.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	r.Post(WebhookPath, NewWebhookHandler(deps.WebhookVerifier, deps.Users, logger, deps.LinkFailureFatal).ServeHTTP)

	r.Route("/v1/session", func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Use(sharedauth.Middleware(deps.SessionVerifier))
		r.Get("/", getSession)
	})
}

func getSession(w http.ResponseWriter, r *http.Request) {
	authUser, ok := sharedauth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, sharederrors.CodeUnauthorized, "not authenticated")
		return
	}
	sharedserver.WriteJSON(w, http.StatusOK, dto.SessionResponse{
		Authenticated: true,
		UserID:        authUser.UserID,
		SessionID:     authUser.SessionID,
		ExpiresAt:     authUser.ExpiresAt,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	sharedserver.WriteJSON(w, sharederrors.ToStatusCode(code), sharederrors.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
