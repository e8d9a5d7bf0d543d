package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AuthenticationError means the provider rejected the credentials.
// Retrying cannot help.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("language model authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransientError is any other failed completion call.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("language model call failed: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err carries an *AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

var authPhrases = []string{"invalid token", "invalid api key", "incorrect api key", "invalid_api_key", "unauthorized"}

// Classify wraps err as *AuthenticationError or *TransientError. Errors
// that are already classified are returned unchanged.
func Classify(err error) error {
	if err == nil || IsAuthentication(err) || IsTransient(err) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.HTTPStatusCode) {
		return &AuthenticationError{Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isAuthStatus(reqErr.HTTPStatusCode) {
		return &AuthenticationError{Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range authPhrases {
		if strings.Contains(msg, p) {
			return &AuthenticationError{Err: err}
		}
	}
	return &TransientError{Err: err}
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
