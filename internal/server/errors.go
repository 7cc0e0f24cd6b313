package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
	"github.com/jonathan/roadmap-agent/internal/profile"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var profileErr *profile.ValidationError
	var fieldErrs validator.ValidationErrors
	var rateErr *llm.RateLimitError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &profileErr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.Is(err, postsearch.ErrSemanticUnavailable), errors.As(err, &rateErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
