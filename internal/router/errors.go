// ABOUTME: Uniform handler outcome for the command router
// ABOUTME: Failure carries an optional user-facing message plus a cause kept for logs

package router

import (
	"errors"
	"fmt"

	"github.com/2389/coven-relay/internal/completion"
)

// GenericMessage is shown when a failure carries no user-facing message.
const GenericMessage = "An error occurred"

// FailureKind classifies why a handler failed.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureTransport  FailureKind = "transport"
	FailureProtocol   FailureKind = "protocol"
	FailureDelivery   FailureKind = "delivery"
)

// Failure is the error every handler returns when it does not succeed.
type Failure struct {
	Kind FailureKind
	// UserMessage is shown to the requester. Empty means GenericMessage.
	UserMessage string
	// Cause is logged but never shown.
	Cause error
}

func (f *Failure) Error() string {
	switch {
	case f.UserMessage != "" && f.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.UserMessage, f.Cause)
	case f.UserMessage != "":
		return fmt.Sprintf("%s: %s", f.Kind, f.UserMessage)
	case f.Cause != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	default:
		return string(f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Message returns the text to deliver back to the requester.
func (f *Failure) Message() string {
	if f.UserMessage == "" {
		return GenericMessage
	}
	return f.UserMessage
}

// UserError reports whether the requester caused the failure.
func (f *Failure) UserError() bool {
	return f.Kind == FailureValidation
}

func invalid(format string, args ...any) *Failure {
	return &Failure{Kind: FailureValidation, UserMessage: fmt.Sprintf(format, args...)}
}

func undelivered(err error) *Failure {
	return &Failure{Kind: FailureDelivery, Cause: err}
}

// backendFailure maps a completion error to a failure with no user message.
func backendFailure(err error) *Failure {
	if errors.Is(err, completion.ErrProtocol) {
		return &Failure{Kind: FailureProtocol, Cause: err}
	}
	return &Failure{Kind: FailureTransport, Cause: err}
}

// AsFailure returns err as a *Failure, wrapping foreign errors as transport failures.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureTransport, Cause: err}
}
