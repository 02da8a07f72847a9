// ABOUTME: Gateway-neutral inbound event types for the dispatcher
// ABOUTME: Adapters translate native gateway events into Event values

package dispatch

import (
	"context"

	"github.com/2389/coven-relay/internal/router"
)

// Kind classifies an inbound event.
type Kind string

const (
	KindReady        Kind = "ready"
	KindMessage      Kind = "message"
	KindPing         Kind = "ping"
	KindModalSubmit  Kind = "modal_submit"
	KindAutocomplete Kind = "autocomplete"
	KindComponent    Kind = "component"
	KindCommand      Kind = "command"
)

// CommandRegistry installs the structured command schema on a gateway.
// Registering the same schema twice must be harmless.
type CommandRegistry interface {
	RegisterCommands(ctx context.Context, specs []router.CommandSpec) error
}

// Event is one inbound gateway event. Which payload field is set depends on Kind.
type Event struct {
	Kind     Kind
	Frontend string
	ID       string

	// Registry is set for KindReady.
	Registry CommandRegistry
	// Message is set for KindMessage.
	Message *router.Message
	// Command is set for KindCommand.
	Command *router.Command
	// Ack is set for KindAutocomplete and KindComponent. It sends the empty or
	// deferred acknowledgement the gateway expects.
	Ack func(ctx context.Context) error
}
