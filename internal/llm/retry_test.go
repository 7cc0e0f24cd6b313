package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
)

// scriptedClient returns errs in order, then resp.
type scriptedClient struct {
	mu      sync.Mutex
	errs    []error
	resp    string
	calls   int
	prompts []string
}

func (c *scriptedClient) GenerateJSON(_ context.Context, prompt string, _ ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return "", err
	}
	return c.resp, nil
}

func (c *scriptedClient) Close() error { return nil }

// A client only needs JSON generation and Close to back the invoker.
var (
	_ Client   = (*scriptedClient)(nil)
	_ Client   = (*GeminiClient)(nil)
	_ Embedder = (*GeminiClient)(nil)
)

type recordedSleep struct {
	waits []time.Duration
}

func (s *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func rateLimited(n int, after time.Duration, has bool) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = &RateLimitError{RetryAfter: after, HasRetryAfter: has, Cause: errors.New("RESOURCE_EXHAUSTED")}
	}
	return errs
}

func queriesRequest() Request {
	return Request{
		Prompt: prompts.KeyGenerateQueries,
		Values: map[string]string{"Profile": `{"background":"student"}`},
		Schema: schemas.SearchQueries,
		Tier:   TierLite,
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 25*time.Second, Backoff(&RateLimitError{}))
	assert.Equal(t, 25*time.Second, Backoff(nil))
	assert.Equal(t, 12*time.Second, Backoff(&RateLimitError{RetryAfter: 7 * time.Second, HasRetryAfter: true}))
	assert.Equal(t, 5*time.Second, Backoff(&RateLimitError{RetryAfter: 0, HasRetryAfter: true}))
}

func TestInvoke_Success(t *testing.T) {
	client := &scriptedClient{resp: "```json\n{\"queries\": [\"a\", \"b\", \"c\"]}\n```"}
	inv := NewRetryingInvoker(client)

	var out struct {
		Queries []string `json:"queries"`
	}
	require.NoError(t, inv.Invoke(context.Background(), queriesRequest(), &out))

	assert.Equal(t, []string{"a", "b", "c"}, out.Queries)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.prompts[0], `{"background":"student"}`)
}

func TestInvoke_RetriesRateLimitThenSucceeds(t *testing.T) {
	client := &scriptedClient{
		errs: rateLimited(2, 7*time.Second, true),
		resp: `{"queries": ["a"]}`,
	}
	s := &recordedSleep{}
	inv := NewRetryingInvoker(client, WithSleep(s.sleep))

	var out map[string]any
	require.NoError(t, inv.Invoke(context.Background(), queriesRequest(), &out))

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, s.waits)
}

func TestInvoke_DefaultWaitWithoutHint(t *testing.T) {
	client := &scriptedClient{
		errs: rateLimited(1, 0, false),
		resp: `{"queries": ["a"]}`,
	}
	s := &recordedSleep{}
	inv := NewRetryingInvoker(client, WithSleep(s.sleep))

	var out map[string]any
	require.NoError(t, inv.Invoke(context.Background(), queriesRequest(), &out))
	assert.Equal(t, []time.Duration{25 * time.Second}, s.waits)
}

func TestInvoke_ExhaustsAfterElevenAttempts(t *testing.T) {
	client := &scriptedClient{errs: rateLimited(11, 0, false), resp: `{"queries": ["a"]}`}
	s := &recordedSleep{}
	inv := NewRetryingInvoker(client, WithSleep(s.sleep))

	var out map[string]any
	err := inv.Invoke(context.Background(), queriesRequest(), &out)
	require.Error(t, err)

	var invokeErr *InvokeError
	require.True(t, errors.As(err, &invokeErr))
	assert.Equal(t, 11, invokeErr.Attempts)
	assert.Equal(t, "rate limit retries exhausted", invokeErr.Message)
	assert.Equal(t, 11, client.calls)
	assert.Len(t, s.waits, 10)

	var rateErr *RateLimitError
	assert.True(t, errors.As(err, &rateErr))
}

func TestInvoke_TenthRetrySucceeds(t *testing.T) {
	client := &scriptedClient{errs: rateLimited(10, 0, false), resp: `{"queries": ["a"]}`}
	inv := NewRetryingInvoker(client, WithSleep((&recordedSleep{}).sleep))

	var out map[string]any
	require.NoError(t, inv.Invoke(context.Background(), queriesRequest(), &out))
	assert.Equal(t, 11, client.calls)
}

func TestInvoke_NonRateLimitErrorIsTerminal(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("invalid argument")}, resp: `{"queries": ["a"]}`}
	s := &recordedSleep{}
	inv := NewRetryingInvoker(client, WithSleep(s.sleep))

	var out map[string]any
	err := inv.Invoke(context.Background(), queriesRequest(), &out)
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, s.waits)
}

func TestInvoke_SchemaViolation(t *testing.T) {
	client := &scriptedClient{resp: `{"queries": []}`}
	inv := NewRetryingInvoker(client)

	var out map[string]any
	err := inv.Invoke(context.Background(), queriesRequest(), &out)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestInvoke_MalformedJSON(t *testing.T) {
	client := &scriptedClient{resp: `not json at all`}
	inv := NewRetryingInvoker(client)

	req := queriesRequest()
	req.Schema = ""
	var out map[string]any
	err := inv.Invoke(context.Background(), req, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode output")
}

func TestInvoke_UnknownPrompt(t *testing.T) {
	client := &scriptedClient{resp: `{}`}
	inv := NewRetryingInvoker(client)

	var out map[string]any
	err := inv.Invoke(context.Background(), Request{Prompt: "missing"}, &out)
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
}

func TestInvoke_CancelledDuringBackoff(t *testing.T) {
	client := &scriptedClient{errs: rateLimited(3, 0, false), resp: `{"queries": ["a"]}`}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := NewRetryingInvoker(client)
	var out map[string]any
	err := inv.Invoke(ctx, queriesRequest(), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.calls)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
