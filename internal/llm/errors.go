package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RateLimitError reports that the generation service rejected a call for quota reasons.
// RetryAfter is only meaningful when HasRetryAfter is true.
type RateLimitError struct {
	RetryAfter    time.Duration
	HasRetryAfter bool
	Cause         error
}

func (e *RateLimitError) Error() string {
	if e.HasRetryAfter {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Cause)
	}
	return fmt.Sprintf("rate limited: %v", e.Cause)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// InvokeError is a terminal failure of a structured generation call.
type InvokeError struct {
	Name     string
	Message  string
	Attempts int
	Cause    error
}

func (e *InvokeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Name, e.Message, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("%s: %s after %d attempt(s)", e.Name, e.Message, e.Attempts)
}

func (e *InvokeError) Unwrap() error {
	return e.Cause
}

const resourceExhaustedMarker = "RESOURCE_EXHAUSTED"

var retryInPattern = regexp.MustCompile(`(?i)retry in (\d+\.?\d*)s`)

// classifyError converts provider errors into *RateLimitError where the
// failure is a quota rejection. Other errors are wrapped unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	limited := false
	var retryAfter time.Duration
	hasRetryAfter := false

	if apiErr, ok := apierror.FromError(err); ok {
		if apiErr.GRPCStatus().Code() == codes.ResourceExhausted || apiErr.HTTPCode() == http.StatusTooManyRequests {
			limited = true
		}
		if ri := apiErr.Details().RetryInfo; ri != nil && ri.GetRetryDelay() != nil {
			retryAfter = ri.GetRetryDelay().AsDuration()
			hasRetryAfter = true
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		limited = true
	}

	if status.Code(err) == codes.ResourceExhausted {
		limited = true
	}

	msg := err.Error()
	if strings.Contains(msg, resourceExhaustedMarker) {
		limited = true
	}

	if !limited {
		return fmt.Errorf("failed to generate content: %w", err)
	}

	if !hasRetryAfter {
		retryAfter, hasRetryAfter = parseRetryIn(msg)
	}
	return &RateLimitError{RetryAfter: retryAfter, HasRetryAfter: hasRetryAfter, Cause: err}
}

// parseRetryIn reads a "retry in 12.5s" hint from a provider message.
func parseRetryIn(msg string) (time.Duration, bool) {
	m := retryInPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
