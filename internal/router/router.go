// ABOUTME: Command router converging legacy and structured commands on chat and clear
// ABOUTME: Orchestrates the session store, prompt assembly, and the completion client

package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-relay/internal/completion"
	"github.com/2389/coven-relay/internal/prompt"
	"github.com/2389/coven-relay/internal/session"
	"github.com/2389/coven-relay/internal/store"
)

// Fixed reply texts.
const (
	ClearedMessage  = "Chat history cleared."
	ThinkingMessage = "Thinking..."
)

// Completer is what the router needs from the completion backend.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (*completion.Result, error)
}

// Recorder receives one record per completion attempt.
type Recorder interface {
	SaveCompletion(ctx context.Context, rec *store.CompletionRecord) error
}

// Config wires a Router's collaborators.
type Config struct {
	Sessions  *session.Store
	Completer Completer
	// Recorder is optional.
	Recorder Recorder
	Models   Models
}

// Router validates requests and runs chat and clear.
type Router struct {
	sessions  *session.Store
	completer Completer
	recorder  Recorder
	models    Models
	logger    *slog.Logger
}

// New creates a Router. Empty model settings fall back to DefaultModels.
func New(cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	models := cfg.Models
	if len(models.Allowed) == 0 {
		models.Allowed = DefaultModels.Allowed
	}
	if models.Enabled == "" {
		models.Enabled = DefaultModels.Enabled
	}
	if models.Backend == "" {
		models.Backend = DefaultModels.Backend
	}
	return &Router{
		sessions:  cfg.Sessions,
		completer: cfg.Completer,
		recorder:  cfg.Recorder,
		models:    models,
		logger:    logger.With("component", "router"),
	}
}

// Schema returns the structured command set for registration.
func (r *Router) Schema() []CommandSpec {
	return r.models.Schema()
}

// Clear drops the user's session.
func (r *Router) Clear(userID string) {
	r.sessions.Clear(userID)
	r.logger.Debug("session cleared", "user", userID)
}

// Chat runs one completion turn for inv and returns the reply text.
// The exchange is appended to the user's transcript only on success.
func (r *Router) Chat(ctx context.Context, inv *Invocation) (string, error) {
	logger := loggerFrom(ctx, r.logger)
	logger.Info("command parsed", "model", inv.Model, "prompt", inv.Prompt)

	sess := r.sessions.GetOrCreate(inv.UserID)
	assembled := prompt.Assemble(sess.Transcript(), inv.DisplayName, inv.Prompt)

	start := time.Now()
	result, err := r.completer.Complete(ctx, r.models.Backend, assembled)
	r.record(ctx, inv, len(assembled), time.Since(start), result, err)
	if err != nil {
		return "", backendFailure(err)
	}

	r.sessions.Append(sess, prompt.Exchange(inv.DisplayName, inv.Prompt, inv.Model, result.Text))
	return result.Text, nil
}

func (r *Router) record(ctx context.Context, inv *Invocation, promptBytes int, latency time.Duration, result *completion.Result, err error) {
	if r.recorder == nil {
		return
	}

	rec := &store.CompletionRecord{
		ID:           uuid.New().String(),
		Frontend:     inv.Frontend,
		UserID:       inv.UserID,
		Model:        inv.Model,
		BackendModel: r.models.Backend,
		PromptBytes:  promptBytes,
		LatencyMS:    latency.Milliseconds(),
		Outcome:      store.OutcomeSuccess,
		CreatedAt:    time.Now().UTC(),
	}
	switch {
	case errors.Is(err, completion.ErrProtocol):
		rec.Outcome = store.OutcomeProtocol
	case err != nil:
		rec.Outcome = store.OutcomeTransport
	default:
		rec.PromptTokens = result.Usage.PromptTokens
		rec.CompletionTokens = result.Usage.CompletionTokens
		rec.TotalTokens = result.Usage.TotalTokens
	}

	// The ledger is best-effort; the request never fails because of it.
	if saveErr := r.recorder.SaveCompletion(context.WithoutCancel(ctx), rec); saveErr != nil {
		loggerFrom(ctx, r.logger).Warn("failed to record completion", "error", saveErr)
	}
}

// HandleMessage runs a legacy text command end to end, including failure replies.
// Messages that are not commands succeed without side effects.
func (r *Router) HandleMessage(ctx context.Context, msg *Message) error {
	logger := loggerFrom(ctx, r.logger).With("frontend", msg.Frontend, "path", "legacy", "message", msg.ID)
	ctx = WithLogger(ctx, logger)

	err := r.handleMessage(ctx, msg)
	return r.complete(ctx, logger, msg.Channel, err)
}

func (r *Router) handleMessage(ctx context.Context, msg *Message) error {
	inv, err := ParseLegacy(msg.Content, r.models)
	if err != nil {
		return err
	}
	if inv == nil {
		return nil
	}
	inv.Frontend = msg.Frontend
	inv.UserID = msg.UserID
	inv.DisplayName = msg.DisplayName

	logger := loggerFrom(ctx, r.logger)

	if inv.Kind == KindClear {
		r.Clear(inv.UserID)
		if err := msg.Channel.Reply(ctx, Reply{Content: ClearedMessage}); err != nil {
			return undelivered(err)
		}
		return nil
	}

	if progress, ok := msg.Channel.(ProgressChannel); ok {
		placeholder, err := progress.SendPlaceholder(ctx, ThinkingMessage)
		if err != nil {
			logger.Error("failed to send in progress message, continuing", "error", err)
		} else {
			defer func() {
				if err := placeholder.Delete(context.WithoutCancel(ctx)); err != nil {
					logger.Error("failed to delete in progress message, continuing", "error", err)
				}
			}()
		}
	}

	text, err := r.Chat(ctx, inv)
	if err != nil {
		return err
	}

	if err := msg.Channel.Reply(ctx, Reply{Content: inv.Prompt + text, SuppressMentions: true}); err != nil {
		return undelivered(err)
	}
	return nil
}

// HandleCommand runs a structured command end to end, including failure replies.
func (r *Router) HandleCommand(ctx context.Context, cmd *Command) error {
	logger := loggerFrom(ctx, r.logger).With("frontend", cmd.Frontend, "path", "structured", "interaction", cmd.ID)
	ctx = WithLogger(ctx, logger)

	err := r.handleCommand(ctx, cmd)
	return r.complete(ctx, logger, cmd.Channel, err)
}

func (r *Router) handleCommand(ctx context.Context, cmd *Command) error {
	if err := cmd.Channel.Defer(ctx); err != nil {
		loggerFrom(ctx, r.logger).Error("structured command failed to be deferred", "error", err)
		return undelivered(err)
	}

	switch cmd.Name {
	case CommandClear:
		r.Clear(cmd.UserID)
		if err := cmd.Channel.Reply(ctx, Reply{Content: ClearedMessage}); err != nil {
			return undelivered(err)
		}
		return nil
	case CommandChat:
	default:
		return nil
	}

	model, ok := cmd.Options[OptionModel]
	if !ok {
		return &Failure{Kind: FailureValidation, Cause: errors.New("model option missing")}
	}
	text, ok := cmd.Options[OptionPrompt]
	if !ok {
		return &Failure{Kind: FailureValidation, Cause: errors.New("prompt option missing")}
	}
	if err := r.models.Validate(model); err != nil {
		return err
	}

	reply, err := r.Chat(ctx, &Invocation{
		Kind:        KindChat,
		Model:       model,
		Prompt:      text,
		Frontend:    cmd.Frontend,
		UserID:      cmd.UserID,
		DisplayName: cmd.DisplayName,
	})
	if err != nil {
		return err
	}

	if err := cmd.Channel.Reply(ctx, Reply{Content: text + reply, SuppressMentions: true}); err != nil {
		return undelivered(err)
	}
	return nil
}

// complete logs the outcome and, on failure, tries to tell the requester.
func (r *Router) complete(ctx context.Context, logger *slog.Logger, ch Channel, err error) error {
	if err == nil {
		logger.Info("COMPLETE", "outcome", "success")
		return nil
	}

	failure := AsFailure(err)
	if deliverErr := ch.Reply(ctx, Reply{Content: failure.Message(), SuppressMentions: true}); deliverErr != nil {
		logger.Error("COMPLETE",
			"outcome", "error",
			"kind", failure.Kind,
			"primary_error", failure,
			"secondary_error", deliverErr,
			"user_error", failure.UserError(),
		)
		return failure
	}

	level := slog.LevelError
	if failure.UserError() {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "COMPLETE",
		"outcome", "error",
		"kind", failure.Kind,
		"error", failure,
		"user_error", failure.UserError(),
	)
	return failure
}
