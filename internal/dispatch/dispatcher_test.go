// ABOUTME: Tests for the event dispatcher
// ABOUTME: Covers routing, concurrency, schema registration, dedupe, panics, and timing lines

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/router"
)

type fakeHandler struct {
	mu       sync.Mutex
	messages []*router.Message
	commands []*router.Command
	onMsg    func(msg *router.Message) error
}

func (h *fakeHandler) HandleMessage(ctx context.Context, msg *router.Message) error {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	onMsg := h.onMsg
	h.mu.Unlock()
	if onMsg != nil {
		return onMsg(msg)
	}
	return nil
}

func (h *fakeHandler) HandleCommand(ctx context.Context, cmd *router.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
	return nil
}

func (h *fakeHandler) Schema() []router.CommandSpec {
	return router.DefaultModels.Schema()
}

func (h *fakeHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages), len(h.commands)
}

type fakeRegistry struct {
	mu    sync.Mutex
	calls [][]router.CommandSpec
	err   error
}

func (r *fakeRegistry) RegisterCommands(ctx context.Context, specs []router.CommandSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, specs)
	return r.err
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func newTestDispatcher(handler Handler, deduper Deduper) (*Dispatcher, *syncBuffer) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(handler, deduper, logger), logs
}

func messageEvent(id, body string) Event {
	return Event{
		Kind:     KindMessage,
		Frontend: "discord",
		ID:       id,
		Message:  &router.Message{ID: id, Frontend: "discord", UserID: "u", DisplayName: "alice", Content: body},
	}
}

func TestDispatch_RoutesMessagesAndCommands(t *testing.T) {
	handler := &fakeHandler{}
	d, _ := newTestDispatcher(handler, nil)

	d.Dispatch(messageEvent("m1", "-clear"))
	d.Dispatch(Event{Kind: KindCommand, Frontend: "discord", ID: "i1", Command: &router.Command{ID: "i1", Name: "clear"}})
	d.Wait()

	messages, commands := handler.counts()
	assert.Equal(t, 1, messages)
	assert.Equal(t, 1, commands)
}

func TestDispatch_HandlersDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	secondDone := make(chan struct{})

	handler := &fakeHandler{}
	handler.onMsg = func(msg *router.Message) error {
		if msg.ID == "slow" {
			<-release
			return nil
		}
		close(secondDone)
		return nil
	}
	d, _ := newTestDispatcher(handler, nil)

	d.Dispatch(messageEvent("slow", "-chat davinci hi"))
	d.Dispatch(messageEvent("fast", "-chat davinci hi"))

	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler blocked behind the first")
	}
	close(release)
	d.Wait()
}

func TestDispatch_ReadyRegistersSchema(t *testing.T) {
	registry := &fakeRegistry{}
	d, _ := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(Event{Kind: KindReady, Frontend: "discord", ID: "session-1", Registry: registry})
	d.Dispatch(Event{Kind: KindReady, Frontend: "discord", ID: "session-2", Registry: registry})
	d.Wait()

	require.Len(t, registry.calls, 2)
	assert.Equal(t, router.DefaultModels.Schema(), registry.calls[0])

	select {
	case err := <-d.Fatal():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestDispatch_ReadyRegistrationFailureIsFatal(t *testing.T) {
	registry := &fakeRegistry{err: errors.New("forbidden")}
	d, _ := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(Event{Kind: KindReady, Frontend: "discord", ID: "s", Registry: registry})
	d.Wait()

	select {
	case err := <-d.Fatal():
		assert.ErrorContains(t, err, "forbidden")
	default:
		t.Fatal("expected a fatal error")
	}
}

func TestDispatch_ReadyWithoutRegistry(t *testing.T) {
	d, _ := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(Event{Kind: KindReady, Frontend: "matrix"})
	d.Wait()

	select {
	case err := <-d.Fatal():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestDispatch_AcknowledgesAutocompleteAndComponents(t *testing.T) {
	d, _ := newTestDispatcher(&fakeHandler{}, nil)

	var mu sync.Mutex
	acked := map[string]bool{}
	ack := func(id string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			acked[id] = true
			return nil
		}
	}

	d.Dispatch(Event{Kind: KindAutocomplete, Frontend: "discord", ID: "a1", Ack: ack("a1")})
	d.Dispatch(Event{Kind: KindComponent, Frontend: "discord", ID: "c1", Ack: ack("c1")})
	d.Dispatch(Event{Kind: KindComponent, Frontend: "discord", ID: "c2", Ack: func(context.Context) error { return errors.New("gone") }})
	d.Dispatch(Event{Kind: KindPing, Frontend: "discord", ID: "0"})
	d.Dispatch(Event{Kind: KindModalSubmit, Frontend: "discord", ID: "m1"})
	d.Wait()

	assert.Equal(t, map[string]bool{"a1": true, "c1": true}, acked)
}

func TestDispatch_DropsDuplicates(t *testing.T) {
	handler := &fakeHandler{}
	cache := dedupe.New(time.Minute, 100)
	d, _ := newTestDispatcher(handler, cache)

	d.Dispatch(messageEvent("m1", "hi"))
	d.Dispatch(messageEvent("m1", "hi"))
	other := messageEvent("m1", "hi")
	other.Frontend = "matrix"
	d.Dispatch(other)
	d.Wait()

	messages, _ := handler.counts()
	assert.Equal(t, 2, messages)
}

func TestDispatch_UnknownKindIgnored(t *testing.T) {
	handler := &fakeHandler{}
	d, logs := newTestDispatcher(handler, nil)

	d.Dispatch(Event{Kind: "typing", Frontend: "discord", ID: "x"})
	d.Wait()

	messages, commands := handler.counts()
	assert.Zero(t, messages)
	assert.Zero(t, commands)
	assert.Empty(t, logs.lines(t, "TIMING"))
}

func TestDispatch_RecoversPanics(t *testing.T) {
	handler := &fakeHandler{onMsg: func(*router.Message) error { panic("kaboom") }}
	d, logs := newTestDispatcher(handler, nil)

	d.Dispatch(messageEvent("m1", "-clear"))
	d.Wait()

	assert.Len(t, logs.lines(t, "handler panicked"), 1)
	assert.Len(t, logs.lines(t, "TIMING"), 1)
}

func TestDispatch_MissingPayloadIsHandled(t *testing.T) {
	d, logs := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(Event{Kind: KindMessage, Frontend: "discord", ID: "m1"})
	d.Dispatch(Event{Kind: KindCommand, Frontend: "discord", ID: "i1"})
	d.Wait()

	assert.Len(t, logs.lines(t, "TIMING"), 2)
}

func TestDispatch_TimingLine(t *testing.T) {
	d, logs := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(messageEvent("m42", "hello"))
	d.Dispatch(Event{Kind: KindCommand, Frontend: "discord", ID: "i7", Command: &router.Command{ID: "i7"}})
	d.Wait()

	lines := logs.lines(t, "TIMING")
	require.Len(t, lines, 2)

	byUI := map[string]map[string]any{}
	for _, line := range lines {
		byUI[line["ui"].(string)] = line
		assert.NotEmpty(t, line["request_id"])
		assert.Contains(t, line, "duration_ns")
		assert.Contains(t, line, "duration_ms")
	}
	assert.Equal(t, "m42", byUI["discord_classic"]["message"])
	assert.Equal(t, "i7", byUI["discord_appcomm"]["interaction"])
}

func TestLogTiming_LongDurationsOmitMilliseconds(t *testing.T) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	logTiming(logger, "message", "m1", 1500*time.Millisecond)
	logTiming(logger, "message", "m2", time.Second)

	lines := logs.lines(t, "TIMING")
	require.Len(t, lines, 2)
	assert.Equal(t, float64(1500*time.Millisecond), lines[0]["duration_ns"])
	assert.NotContains(t, lines[0], "duration_ms")
	assert.Equal(t, float64(1000), lines[1]["duration_ms"])
}

func TestDispatch_WaitContextGivesUpOnStuckHandler(t *testing.T) {
	release := make(chan struct{})
	handler := &fakeHandler{onMsg: func(*router.Message) error {
		<-release
		return nil
	}}
	d, _ := newTestDispatcher(handler, nil)

	d.Dispatch(messageEvent("stuck", "-chat davinci hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.WaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	close(release)
	require.NoError(t, d.WaitContext(context.Background()))
}

func TestDispatch_WaitContextReturnsWhenIdle(t *testing.T) {
	d, _ := newTestDispatcher(&fakeHandler{}, nil)

	d.Dispatch(messageEvent("m1", "hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, d.WaitContext(ctx))
}
