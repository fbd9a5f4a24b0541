package client

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response decoded from the error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coursedex: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Error codes returned by the API.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeProviderError    = "embedding_provider_error"
	CodeInternalError    = "internal_error"
)

// IsNotFound reports whether err is an API not-found error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsRateLimited reports whether err signals a rate limit or spent quota.
func IsRateLimited(err error) bool { return hasCode(err, CodeRateLimited) }

// IsValidation reports whether the request was rejected as invalid.
func IsValidation(err error) bool {
	return hasCode(err, CodeBadRequest) || hasCode(err, CodeValidationFailed)
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
