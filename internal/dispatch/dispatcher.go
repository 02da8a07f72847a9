// ABOUTME: Event dispatcher that classifies gateway events and runs each handler concurrently
// ABOUTME: Timing and outcome logging wrap every handler once, around the kind lookup

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-relay/internal/router"
)

// Handler is what the dispatcher needs from the command router.
type Handler interface {
	HandleMessage(ctx context.Context, msg *router.Message) error
	HandleCommand(ctx context.Context, cmd *router.Command) error
	Schema() []router.CommandSpec
}

// Deduper reports whether an event key was already dispatched.
type Deduper interface {
	Seen(key string) bool
}

// route is one row of the dispatch table.
type route struct {
	// ui suffix for the log tag, e.g. "appcomm" becomes "discord_appcomm".
	ui string
	// entity names the identifier attribute in the timing line.
	entity string
	handle func(ctx context.Context, ev *Event) error
}

// Dispatcher runs one goroutine per inbound event.
type Dispatcher struct {
	handler Handler
	dedupe  Deduper
	logger  *slog.Logger
	routes  map[Kind]route

	wg    sync.WaitGroup
	fatal chan error
}

// New creates a dispatcher. dedupe may be nil.
func New(handler Handler, dedupe Deduper, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		handler: handler,
		dedupe:  dedupe,
		logger:  logger.With("component", "dispatch"),
		fatal:   make(chan error, 1),
	}
	d.routes = map[Kind]route{
		KindReady:        {ui: "ready", entity: "session", handle: d.ready},
		KindMessage:      {ui: "classic", entity: "message", handle: d.message},
		KindPing:         {ui: "ping", entity: "interaction", handle: ignore},
		KindModalSubmit:  {ui: "modalsub", entity: "interaction", handle: ignore},
		KindAutocomplete: {ui: "autocomp", entity: "interaction", handle: acknowledge},
		KindComponent:    {ui: "msgcomp", entity: "interaction", handle: acknowledge},
		KindCommand:      {ui: "appcomm", entity: "interaction", handle: d.command},
	}
	return d
}

// Fatal delivers the first error that must stop the process, such as a failed
// command registration.
func (d *Dispatcher) Fatal() <-chan error {
	return d.fatal
}

// Wait blocks until every dispatched handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx's error if handlers are
// still running when ctx is done; those handlers are left running.
func (d *Dispatcher) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch classifies ev and runs its handler in a new goroutine. It never blocks
// on the handler.
func (d *Dispatcher) Dispatch(ev Event) {
	r, ok := d.routes[ev.Kind]
	if !ok {
		d.logger.Warn("unknown event kind", "kind", ev.Kind, "frontend", ev.Frontend, "id", ev.ID)
		return
	}

	if d.dedupe != nil && ev.ID != "" && d.dedupe.Seen(ev.Frontend+":"+ev.ID) {
		d.logger.Debug("duplicate event dropped", "kind", ev.Kind, "frontend", ev.Frontend, "id", ev.ID)
		return
	}

	ui := ev.Frontend + "_" + r.ui
	logger := d.logger.With("request_id", uuid.New().String(), "ui", ui)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx := router.WithLogger(context.Background(), logger)
		logger.Debug("BEGIN", r.entity, ev.ID)

		start := time.Now()
		err := d.run(ctx, r, &ev)
		elapsed := time.Since(start)

		if err != nil {
			logger.Debug("handler finished with error", r.entity, ev.ID, "error", err)
		}
		logTiming(logger, r.entity, ev.ID, elapsed)
	}()
}

// run invokes the route's handler, turning a panic into an error.
func (d *Dispatcher) run(ctx context.Context, r route, ev *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &router.Failure{Kind: router.FailureTransport, Cause: fmt.Errorf("handler panic: %v", p)}
			router.LoggerFrom(ctx).Error("handler panicked", r.entity, ev.ID, "panic", p)
		}
	}()
	return r.handle(ctx, ev)
}

// logTiming emits the per-event timing line; logger already carries the ui tag.
// Durations over one second carry only the nanosecond value.
func logTiming(logger *slog.Logger, entity, id string, elapsed time.Duration) {
	attrs := []any{entity, id, "duration_ns", elapsed.Nanoseconds()}
	if elapsed <= time.Second {
		attrs = append(attrs, "duration_ms", elapsed.Milliseconds())
	}
	logger.Info("TIMING", attrs...)
}

func (d *Dispatcher) ready(ctx context.Context, ev *Event) error {
	logger := router.LoggerFrom(ctx)
	if ev.Registry == nil {
		logger.Info("frontend has no command registry, skipping schema registration", "frontend", ev.Frontend)
		return nil
	}

	logger.Info("registering global commands", "frontend", ev.Frontend)
	if err := ev.Registry.RegisterCommands(ctx, d.handler.Schema()); err != nil {
		err = fmt.Errorf("registering %s commands: %w", ev.Frontend, err)
		logger.Error("command registration failed", "error", err)
		select {
		case d.fatal <- err:
		default:
		}
		return err
	}
	logger.Info("global commands registered", "frontend", ev.Frontend)
	return nil
}

func (d *Dispatcher) message(ctx context.Context, ev *Event) error {
	if ev.Message == nil {
		return errors.New("message event without payload")
	}
	return d.handler.HandleMessage(ctx, ev.Message)
}

func (d *Dispatcher) command(ctx context.Context, ev *Event) error {
	if ev.Command == nil {
		return errors.New("command event without payload")
	}
	return d.handler.HandleCommand(ctx, ev.Command)
}

func acknowledge(ctx context.Context, ev *Event) error {
	if ev.Ack == nil {
		return nil
	}
	if err := ev.Ack(ctx); err != nil {
		router.LoggerFrom(ctx).Error("COMPLETE", "interaction", ev.ID, "outcome", "error", "error", err, "user_error", false)
		return err
	}
	router.LoggerFrom(ctx).Info("COMPLETE", "interaction", ev.ID, "outcome", "success")
	return nil
}

func ignore(context.Context, *Event) error {
	return nil
}
