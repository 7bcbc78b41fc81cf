package validators

import (
	"net/http"
	"strings"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// RequireQuery returns the trimmed value of a query parameter or a
// validation error when it is absent.
func RequireQuery(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return "", apperrors.New(apperrors.CodeValidation, "query parameter required").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// OptionalQuery returns the trimmed value of a query parameter, or the
// fallback when it is absent.
func OptionalQuery(r *http.Request, key, fallback string) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	return value
}
