// Package store provides the completion ledger for coven-relay using SQLite.
//
// # Overview
//
// Every completion attempt the router makes is recorded as a CompletionRecord:
// who asked, which model, how many bytes and tokens, how long the backend took,
// and whether it succeeded. Transcript text is never stored; conversation
// history lives only in memory.
//
// The ledger is optional. When database.path is empty the router runs without
// a recorder.
//
// # Schema
//
// A single table, completions, keyed by a UUID. created_at is stored as RFC
// 3339 text in UTC so string comparison orders it correctly. outcome is
// constrained to success, transport, or protocol.
//
// # Concurrency
//
// The pool is limited to one connection and the database runs in WAL mode
// with a busy timeout, so concurrent handlers can record without
// SQLITE_BUSY errors.
//
// # Usage
//
//	ledger, err := store.NewSQLiteStore(path)
//	if err != nil {
//	    return err
//	}
//	defer ledger.Close()
//
//	stats, err := ledger.GetUsageStats(ctx, store.UsageFilter{})
package store
