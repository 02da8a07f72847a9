// ABOUTME: Reply surfaces and request shapes the gateway adapters hand to the router
// ABOUTME: Adapters implement Channel and optionally the progress or interaction extensions

package router

import "context"

// Reply is one outbound message back to the requester.
type Reply struct {
	Content string
	// SuppressMentions blocks mass and role mentions; only the replied-to user is pinged.
	SuppressMentions bool
}

// Channel delivers replies to wherever a request came from.
type Channel interface {
	Reply(ctx context.Context, reply Reply) error
}

// Placeholder is a transient message that can be removed later.
type Placeholder interface {
	Delete(ctx context.Context) error
}

// ProgressChannel can show a placeholder while a legacy command is in flight.
type ProgressChannel interface {
	Channel
	SendPlaceholder(ctx context.Context, text string) (Placeholder, error)
}

// InteractionChannel is the reply surface of a structured command.
// Defer acknowledges the interaction; replies after it are followups.
type InteractionChannel interface {
	Channel
	Defer(ctx context.Context) error
}

// Message is a plain text message that may contain a legacy command.
type Message struct {
	ID          string
	Frontend    string
	UserID      string
	DisplayName string
	Content     string
	Channel     Channel
}

// Command is a schema-validated structured command interaction.
type Command struct {
	ID          string
	Frontend    string
	Name        string
	Options     map[string]string
	UserID      string
	DisplayName string
	Channel     InteractionChannel
}
