// Package llmtest provides an in-memory llm.Invoker for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/schemas"
)

// FakeInvoker answers Invoke calls with canned JSON keyed by prompt.
// Canned output is validated against the request schema like the real invoker.
type FakeInvoker struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	requests  []llm.Request

	// Func, when set, takes precedence over canned responses.
	Func func(req llm.Request) (string, error)
}

// NewFakeInvoker returns an empty fake.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{
		responses: make(map[string][]string),
		errs:      make(map[string]error),
	}
}

// On queues a JSON response for prompt. Queued responses are consumed in
// order and the last one repeats.
func (f *FakeInvoker) On(prompt, response string) *FakeInvoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prompt] = append(f.responses[prompt], response)
	return f
}

// Fail makes every call for prompt return err.
func (f *FakeInvoker) Fail(prompt string, err error) *FakeInvoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[prompt] = err
	return f
}

// Requests returns a copy of every request seen so far.
func (f *FakeInvoker) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls counts requests for prompt.
func (f *FakeInvoker) Calls(prompt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Prompt == prompt {
			n++
		}
	}
	return n
}

// Invoke implements llm.Invoker.
func (f *FakeInvoker) Invoke(ctx context.Context, req llm.Request, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := f.next(req)
	if err != nil {
		return err
	}

	if req.Schema != "" {
		if err := schemas.Validate(req.Schema, raw); err != nil {
			return &llm.InvokeError{Name: req.Prompt, Message: "output failed schema validation", Attempts: 1, Cause: err}
		}
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *FakeInvoker) next(req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.Func
	if err, ok := f.errs[req.Prompt]; ok {
		f.mu.Unlock()
		return "", err
	}
	queue := f.responses[req.Prompt]
	var raw string
	found := len(queue) > 0
	if found {
		raw = queue[0]
		if len(queue) > 1 {
			f.responses[req.Prompt] = queue[1:]
		}
	}
	f.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if !found {
		return "", fmt.Errorf("llmtest: no response configured for prompt %q", req.Prompt)
	}
	return raw, nil
}
