package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
)

// Retry policy for rate-limited generation calls.
const (
	DefaultMaxRetries = 10
	DefaultRetryWait  = 20 * time.Second
	RetryMargin       = 5 * time.Second
)

// Request describes one structured generation call.
type Request struct {
	// Name labels the call in logs and errors. Defaults to Prompt.
	Name string
	// Prompt is the key of the template in prompts.RoadmapFile.
	Prompt string
	Values map[string]string
	// Schema is the embedded JSON schema the output must satisfy. Empty skips validation.
	Schema string
	Tier   ModelTier
}

// Invoker performs one structured generation call. *RetryingInvoker is the
// production implementation.
type Invoker interface {
	Invoke(ctx context.Context, req Request, out any) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryingInvoker wraps every structured generation call with rate-limit backoff.
// It is the only place generation calls are retried.
type RetryingInvoker struct {
	client     Client
	log        *logger.Logger
	maxRetries int
	sleep      SleepFunc
}

// InvokerOption configures a RetryingInvoker.
type InvokerOption func(*RetryingInvoker)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *logger.Logger) InvokerOption {
	return func(r *RetryingInvoker) { r.log = logger.OrNop(l) }
}

// WithMaxRetries overrides the number of retries after the first attempt.
func WithMaxRetries(n int) InvokerOption {
	return func(r *RetryingInvoker) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(fn SleepFunc) InvokerOption {
	return func(r *RetryingInvoker) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// NewRetryingInvoker creates an invoker around client.
func NewRetryingInvoker(client Client, opts ...InvokerOption) *RetryingInvoker {
	r := &RetryingInvoker{
		client:     client,
		log:        logger.NewNop(),
		maxRetries: DefaultMaxRetries,
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff returns how long to wait before retrying after err.
func Backoff(err *RateLimitError) time.Duration {
	if err != nil && err.HasRetryAfter {
		return err.RetryAfter + RetryMargin
	}
	return DefaultRetryWait + RetryMargin
}

// SleepContext blocks for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invoke renders the prompt, generates JSON, validates it and decodes it into out.
func (r *RetryingInvoker) Invoke(ctx context.Context, req Request, out any) error {
	name := req.Name
	if name == "" {
		name = req.Prompt
	}

	prompt, err := prompts.Render(req.Prompt, req.Values)
	if err != nil {
		return &InvokeError{Name: name, Message: "failed to render prompt", Cause: err}
	}

	raw, attempts, err := r.generate(ctx, name, prompt, req.Tier)
	if err != nil {
		return err
	}

	cleaned := CleanJSONBlock(raw)
	if req.Schema != "" {
		if err := schemas.Validate(req.Schema, cleaned); err != nil {
			return &InvokeError{Name: name, Message: "output failed schema validation", Attempts: attempts, Cause: err}
		}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &InvokeError{Name: name, Message: "failed to decode output", Attempts: attempts, Cause: err}
	}
	return nil
}

func (r *RetryingInvoker) generate(ctx context.Context, name, prompt string, tier ModelTier) (string, int, error) {
	for attempt := 1; ; attempt++ {
		raw, err := r.client.GenerateJSON(ctx, prompt, tier)
		if err == nil {
			return raw, attempt, nil
		}

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			return "", attempt, &InvokeError{Name: name, Message: "generation failed", Attempts: attempt, Cause: err}
		}
		if attempt > r.maxRetries {
			return "", attempt, &InvokeError{Name: name, Message: "rate limit retries exhausted", Attempts: attempt, Cause: err}
		}

		wait := Backoff(rateErr)
		r.log.Warn("rate limited, backing off",
			"call", name,
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"wait", wait.String(),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return "", attempt, &InvokeError{Name: name, Message: "cancelled during backoff", Attempts: attempt, Cause: fmt.Errorf("backoff interrupted: %w", err)}
		}
	}
}
