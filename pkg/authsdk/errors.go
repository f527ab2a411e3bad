package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

// ============================================================================
// Wire Error Codes
// ============================================================================

const (
	ErrorCodeMissingToken       = "missing_token"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeTokenExpired       = "token_expired"
	ErrorCodeTokenRevoked       = "token_revoked"
	ErrorCodeRefreshReplayed    = "refresh_replayed"
	ErrorCodeSessionNotFound    = "session_not_found"
	ErrorCodeStoreUnavailable   = "store_unavailable"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeBadGateway         = "bad_gateway"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body written by both the gateway and the identity
// service. Servers write it with WriteError; the client returns it from
// failed calls. Two APIErrors match under errors.Is when their codes match.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"status"`

	// Code is the machine readable error code (e.g. "token_revoked")
	Code string `json:"error"`

	// Message is a human readable description
	Message string `json:"message"`

	// Path is the request path that failed
	Path string `json:"path,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an APIError with the same code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this error for r, adding a bearer challenge to 401s.
func (e *APIError) WriteError(w http.ResponseWriter, r *http.Request) {
	if e.StatusCode == http.StatusUnauthorized {
		httpx.SetBearerChallenge(w, e.Code, e.Message)
	}
	httpx.WriteError(w, r, e.StatusCode, e.Code, e.Message)
}

// NewAPIError creates an APIError with a custom message.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrMissingToken: no bearer credential was presented.
	ErrMissingToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeMissingToken,
		Message:    "missing or malformed bearer token",
	}

	// ErrInvalidToken: the credential is malformed or its signature is wrong.
	ErrInvalidToken = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidToken,
		Message:    "invalid token",
	}

	// ErrTokenExpired: the credential's lifetime has passed.
	ErrTokenExpired = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeTokenExpired,
		Message:    "token has expired",
	}

	// ErrTokenRevoked: the access credential was revoked by logout.
	ErrTokenRevoked = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeTokenRevoked,
		Message:    "token has been revoked",
	}

	// ErrRefreshReplayed: a renewal credential was presented after rotation.
	// The session has been revoked.
	ErrRefreshReplayed = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeRefreshReplayed,
		Message:    "refresh token reuse detected, session revoked",
	}

	// ErrSessionNotFound: the session was logged out or its renewal expired.
	ErrSessionNotFound = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeSessionNotFound,
		Message:    "session not found or expired",
	}

	// ErrStoreUnavailable: the credential store could not be reached.
	ErrStoreUnavailable = &APIError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       ErrorCodeStoreUnavailable,
		Message:    "credential store unavailable",
	}

	// ErrInvalidCredentials: login failed. Deliberately unspecific.
	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCredentials,
		Message:    "invalid username or password",
	}

	// ErrInvalidRequest: the request body is malformed or incomplete.
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeInvalidRequest,
		Message:    "the request is malformed or missing required fields",
	}

	// ErrServerError: an unexpected failure.
	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeServerError,
		Message:    "internal server error",
	}

	// ErrNotFound: no gateway route matches the path.
	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
		Message:    "no route for path",
	}

	// ErrBadGateway: the upstream could not be reached.
	ErrBadGateway = &APIError{
		StatusCode: http.StatusBadGateway,
		Code:       ErrorCodeBadGateway,
		Message:    "upstream unavailable",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = resp.StatusCode
		}
		return &apiErr
	}

	fallback := &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
	if resp.Request != nil {
		fallback.Path = resp.Request.URL.Path
	}
	return fallback
}
