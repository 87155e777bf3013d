package commerce

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError carries the upstream status code and body message so failures can
// be classified by the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("commerce API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("commerce API returned status %d: %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether the failure requires re-authentication. Auth
// failures must not be papered over with demo data.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "Unauthorized") ||
		strings.Contains(msg, "Invalid token")
}

// IsNotFoundError reports whether the failure means the upstream is absent or
// unreachable, which triggers the demo-data fallback.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "404") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "API request failed")
}
