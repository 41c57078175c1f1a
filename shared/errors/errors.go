package errors

import "net/http"

// ErrorResponse represents the canonical error envelope returned by Evently APIs.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// CodeUnauthorized marks requests without a valid session.
const CodeUnauthorized = "unauthorized"

// ToStatusCode maps a domain specific error code to an HTTP status for default responses.
func ToStatusCode(code string) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
