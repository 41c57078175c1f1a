package dto

// HealthResponse describes the payload returned by standard /healthz endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// SessionResponse reports whether the caller holds an authenticated session.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"`
}
