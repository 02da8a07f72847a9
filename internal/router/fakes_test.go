// ABOUTME: Test doubles for router channels, completer, and recorder
// ABOUTME: Records every call so tests can assert on reply and backend traffic

package router

import (
	"context"
	"errors"
	"sync"

	"github.com/2389/coven-relay/internal/completion"
	"github.com/2389/coven-relay/internal/store"
)

type fakeChannel struct {
	mu       sync.Mutex
	replies  []Reply
	replyErr error
}

func (c *fakeChannel) Reply(ctx context.Context, reply Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply)
	return c.replyErr
}

func (c *fakeChannel) Replies() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reply(nil), c.replies...)
}

type fakePlaceholder struct {
	deleted   bool
	deleteErr error
}

func (p *fakePlaceholder) Delete(ctx context.Context) error {
	p.deleted = true
	return p.deleteErr
}

type fakeProgressChannel struct {
	fakeChannel
	placeholders []string
	placeholder  *fakePlaceholder
	sendErr      error
}

func (c *fakeProgressChannel) SendPlaceholder(ctx context.Context, text string) (Placeholder, error) {
	c.placeholders = append(c.placeholders, text)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.placeholder = &fakePlaceholder{}
	return c.placeholder, nil
}

type fakeInteraction struct {
	fakeChannel
	deferred bool
	deferErr error
}

func (c *fakeInteraction) Defer(ctx context.Context) error {
	c.deferred = true
	return c.deferErr
}

type completerCall struct {
	Model  string
	Prompt string
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []completerCall
	reply func(prompt string) (*completion.Result, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, model, prompt string) (*completion.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, completerCall{Model: model, Prompt: prompt})
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return &completion.Result{Text: " ok"}, nil
	}
	return reply(prompt)
}

func (f *fakeCompleter) Calls() []completerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completerCall(nil), f.calls...)
}

func replyWith(text string) func(string) (*completion.Result, error) {
	return func(string) (*completion.Result, error) {
		return &completion.Result{Text: text, Usage: completion.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}}, nil
	}
}

func failWith(err error) func(string) (*completion.Result, error) {
	return func(string) (*completion.Result, error) {
		return nil, err
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*store.CompletionRecord
	err     error
}

func (r *fakeRecorder) SaveCompletion(ctx context.Context, rec *store.CompletionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

var errBoom = errors.New("boom")
