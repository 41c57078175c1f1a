package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/KingsCreatives/Evently/shared/logging"
	sharedserver "github.com/KingsCreatives/Evently/shared/server"

	"github.com/KingsCreatives/Evently/internal/user"
	"github.com/KingsCreatives/Evently/internal/webhook"
)

const maxWebhookBodyBytes = 1 << 20

// Response texts returned to the webhook sender.
const (
	msgUserCreated        = "User created"
	msgUserUpdated        = "User updated"
	msgUserDeleted        = "User deleted"
	msgUserAlreadyDeleted = "User already deleted"
	msgMissingHeaders     = "Missing required Svix headers"
	msgVerificationFailed = "Webhook verification failed"
	msgInvalidPayload     = "Invalid webhook payload"
	msgMissingUserID      = "Missing user id"
	msgUnhandledEvent     = "Unhandled event type"
	msgPayloadTooLarge    = "Payload too large"
	msgInternalError      = "Internal Server Error"
	msgNotConfigured      = "Webhook secret is not configured"
)

// SyncResponse is the 200 body of the webhook endpoint.
type SyncResponse struct {
	Message string     `json:"message"`
	User    *user.User `json:"user"`
}

// WebhookHandler receives Clerk user lifecycle webhooks.
type WebhookHandler struct {
	verifier         *webhook.Verifier
	users            UserSyncer
	logger           *slog.Logger
	linkFailureFatal bool
}

// NewWebhookHandler builds the receiver. A nil verifier makes every request fail with 500.
func NewWebhookHandler(verifier *webhook.Verifier, users UserSyncer, logger *slog.Logger, linkFailureFatal bool) *WebhookHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &WebhookHandler{verifier: verifier, users: users, logger: logger, linkFailureFatal: linkFailureFatal}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithRequestID(r.Context(), h.logger)

	if h.verifier == nil || h.users == nil {
		logger.Error("webhook receiver is not configured")
		http.Error(w, msgNotConfigured, http.StatusInternalServerError)
		return
	}

	sc, err := webhook.HeadersFrom(r.Header)
	if err != nil {
		http.Error(w, msgMissingHeaders, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, msgPayloadTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, msgInvalidPayload, http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(sc, body); err != nil {
		logger.Warn("webhook verification failed", slog.String("svixId", sc.MessageID), slog.Any("error", err))
		http.Error(w, msgVerificationFailed, http.StatusBadRequest)
		return
	}

	event, err := webhook.DecodeEvent(body)
	switch {
	case errors.Is(err, webhook.ErrMissingUserID):
		http.Error(w, msgMissingUserID, http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, msgInvalidPayload, http.StatusBadRequest)
		return
	}

	logger = logger.With(
		slog.String("svixId", sc.MessageID),
		slog.String("eventType", event.Type),
		slog.String("externalId", event.Data.ID),
	)
	h.dispatch(w, r, logger, event)
}

func (h *WebhookHandler) dispatch(w http.ResponseWriter, r *http.Request, logger *slog.Logger, event webhook.Event) {
	ctx := r.Context()
	externalID := event.Data.ID

	var (
		u       user.User
		err     error
		message string
	)
	switch event.Kind() {
	case webhook.KindUserCreated:
		message = msgUserCreated
		u, err = h.users.Create(ctx, externalID, profileFrom(event.Data))
		if errors.Is(err, user.ErrLinkFailed) {
			logger.Error("failed to write local id back to identity provider",
				slog.String("userId", u.ID), slog.Any("error", err))
			if !h.linkFailureFatal {
				err = nil
			}
		}
	case webhook.KindUserUpdated:
		message = msgUserUpdated
		u, err = h.users.Update(ctx, externalID, profileFrom(event.Data))
	case webhook.KindUserDeleted:
		message = msgUserDeleted
		u, err = h.users.Delete(ctx, externalID)
	default:
		http.Error(w, msgUnhandledEvent, http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, user.ErrDeleted):
		logger.Info("ignoring event for deleted user")
		sharedserver.WriteJSON(w, http.StatusOK, SyncResponse{Message: msgUserAlreadyDeleted})
	case err != nil:
		logger.Error("failed to handle webhook event", slog.Any("error", err))
		http.Error(w, msgInternalError, http.StatusInternalServerError)
	default:
		logger.Info("webhook event applied", slog.String("userId", u.ID))
		sharedserver.WriteJSON(w, http.StatusOK, SyncResponse{Message: message, User: &u})
	}
}

// profileFrom maps every field explicitly; absent values become the nil sentinel.
func profileFrom(d webhook.UserData) user.Profile {
	return user.Profile{
		Email:     user.Field(d.PrimaryEmail()),
		Username:  user.Field(d.Username),
		FirstName: user.Field(d.FirstName),
		LastName:  user.Field(d.LastName),
		Photo:     user.Field(d.ImageURL),
	}
}
