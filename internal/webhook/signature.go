package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Header names defined by the Svix delivery protocol Clerk uses.
const (
	HeaderMessageID = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

const secretPrefix = "whsec_"

var (
	// ErrMissingHeaders indicates one of the three Svix headers was absent or blank.
	ErrMissingHeaders = errors.New("missing required svix headers")
	// ErrInvalidSignature covers signature mismatch, malformed signatures and stale timestamps.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMissingSecret is returned when a verifier is built without a signing secret.
	ErrMissingSecret = errors.New("webhook secret is required")
)

// SignatureContext is the (message id, timestamp, signature) triple taken from the transport headers.
type SignatureContext struct {
	MessageID string
	Timestamp string
	Signature string
}

// HeadersFrom extracts the SignatureContext from h.
func HeadersFrom(h http.Header) (SignatureContext, error) {
	sc := SignatureContext{
		MessageID: strings.TrimSpace(h.Get(HeaderMessageID)),
		Timestamp: strings.TrimSpace(h.Get(HeaderTimestamp)),
		Signature: strings.TrimSpace(h.Get(HeaderSignature)),
	}
	if sc.MessageID == "" || sc.Timestamp == "" || sc.Signature == "" {
		return SignatureContext{}, ErrMissingHeaders
	}
	return sc, nil
}

func (sc SignatureContext) header() http.Header {
	h := http.Header{}
	h.Set(HeaderMessageID, sc.MessageID)
	h.Set(HeaderTimestamp, sc.Timestamp)
	h.Set(HeaderSignature, sc.Signature)
	return h
}

// Verifier checks Svix signatures against a shared secret. Timestamps outside
// the Svix replay window (five minutes either way) are rejected.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier builds a Verifier from a Clerk/Svix signing secret ("whsec_<base64>").
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if strings.TrimPrefix(secret, secretPrefix) == "" {
		return nil, ErrMissingSecret
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// Verify authenticates body against sc. body must be the exact bytes received on the wire.
func (v *Verifier) Verify(sc SignatureContext, body []byte) error {
	if v == nil || v.wh == nil {
		return ErrMissingSecret
	}
	if err := v.wh.Verify(body, sc.header()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Sign returns the "v1,<base64>" signature for a message. Used by tests and tooling.
func (v *Verifier) Sign(msgID string, timestamp time.Time, body []byte) (string, error) {
	if v == nil || v.wh == nil {
		return "", ErrMissingSecret
	}
	return v.wh.Sign(msgID, timestamp, body)
}
