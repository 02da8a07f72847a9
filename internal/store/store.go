// ABOUTME: Completion ledger types for coven-relay persistence
// ABOUTME: Defines CompletionRecord, usage filters, and the stats aggregate

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Outcome values for a completion attempt
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport"
	OutcomeProtocol  = "protocol"
)

// CompletionRecord is one completion attempt. It never carries transcript text.
type CompletionRecord struct {
	ID               string
	Frontend         string
	UserID           string
	Model            string // user-facing identifier, e.g. "davinci"
	BackendModel     string // identifier sent to the backend
	PromptBytes      int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMS        int64
	Outcome          string
	CreatedAt        time.Time
}

// UsageFilter narrows UsageStats. Nil fields are not applied.
type UsageFilter struct {
	Frontend *string
	UserID   *string
	Since    *time.Time
	Until    *time.Time
}

// UsageStats aggregates completion records
type UsageStats struct {
	Requests         int64
	Failures         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	AvgLatencyMS     float64
}

// LedgerStore is the completion ledger
type LedgerStore interface {
	SaveCompletion(ctx context.Context, rec *CompletionRecord) error
	GetCompletion(ctx context.Context, id string) (*CompletionRecord, error)
	GetUsageStats(ctx context.Context, filter UsageFilter) (*UsageStats, error)
	Close() error
}
