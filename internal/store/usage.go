// ABOUTME: SQLite implementation for completion ledger writes and usage statistics
// ABOUTME: Stores one row per completion attempt and aggregates token consumption

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveCompletion stores a completion record.
func (s *SQLiteStore) SaveCompletion(ctx context.Context, rec *CompletionRecord) error {
	query := `
		INSERT INTO completions (
			id, frontend, user_id, model, backend_model,
			prompt_bytes, prompt_tokens, completion_tokens, total_tokens,
			latency_ms, outcome, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Frontend,
		rec.UserID,
		rec.Model,
		rec.BackendModel,
		rec.PromptBytes,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.LatencyMS,
		rec.Outcome,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting completion: %w", err)
	}

	s.logger.Debug("saved completion",
		"id", rec.ID,
		"user_id", rec.UserID,
		"outcome", rec.Outcome,
		"total_tokens", rec.TotalTokens,
	)
	return nil
}

// GetCompletion retrieves one record by ID.
func (s *SQLiteStore) GetCompletion(ctx context.Context, id string) (*CompletionRecord, error) {
	query := `
		SELECT id, frontend, user_id, model, backend_model,
		       prompt_bytes, prompt_tokens, completion_tokens, total_tokens,
		       latency_ms, outcome, created_at
		FROM completions
		WHERE id = ?
	`

	var rec CompletionRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Frontend,
		&rec.UserID,
		&rec.Model,
		&rec.BackendModel,
		&rec.PromptBytes,
		&rec.PromptTokens,
		&rec.CompletionTokens,
		&rec.TotalTokens,
		&rec.LatencyMS,
		&rec.Outcome,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying completion: %w", err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

// GetUsageStats returns aggregated usage statistics with optional filters.
func (s *SQLiteStore) GetUsageStats(ctx context.Context, filter UsageFilter) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as requests,
			COALESCE(SUM(CASE WHEN outcome != 'success' THEN 1 ELSE 0 END), 0) as failures,
			COALESCE(SUM(prompt_tokens), 0) as prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) as completion_tokens,
			COALESCE(SUM(total_tokens), 0) as total_tokens,
			COALESCE(AVG(latency_ms), 0.0) as avg_latency
		FROM completions
		WHERE 1=1
	`
	args := []any{}

	if filter.Frontend != nil {
		query += " AND frontend = ?"
		args = append(args, *filter.Frontend)
	}
	if filter.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *filter.UserID)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Until != nil {
		query += " AND created_at < ?"
		args = append(args, filter.Until.UTC().Format(time.RFC3339))
	}

	var stats UsageStats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Requests,
		&stats.Failures,
		&stats.PromptTokens,
		&stats.CompletionTokens,
		&stats.TotalTokens,
		&stats.AvgLatencyMS,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage stats: %w", err)
	}

	return &stats, nil
}
