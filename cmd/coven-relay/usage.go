// ABOUTME: usage subcommand summarizing the completion ledger
// ABOUTME: Filters by frontend, user, and time window

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-relay/internal/config"
	"github.com/2389/coven-relay/internal/store"
)

// usageFlags are the parsed arguments of the usage subcommand.
type usageFlags struct {
	dbPath string
	filter store.UsageFilter
}

func parseUsageFlags(args []string, now time.Time) (*usageFlags, error) {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	dbPath := fs.String("db", "", "ledger path (defaults to database.path from the config)")
	frontend := fs.String("frontend", "", "only count this frontend (discord or matrix)")
	user := fs.String("user", "", "only count this user id")
	since := fs.Duration("since", 0, "only count completions newer than this, e.g. 24h")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if *since < 0 {
		return nil, fmt.Errorf("-since must not be negative")
	}

	f := &usageFlags{dbPath: *dbPath}
	if *frontend != "" {
		f.filter.Frontend = frontend
	}
	if *user != "" {
		f.filter.UserID = user
	}
	if *since > 0 {
		t := now.Add(-*since)
		f.filter.Since = &t
	}
	return f, nil
}

func runUsage(ctx context.Context, args []string) error {
	flags, err := parseUsageFlags(args, time.Now())
	if err != nil {
		return err
	}

	if flags.dbPath == "" {
		cfg, err := config.Decode(config.DefaultPath())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		flags.dbPath = cfg.Database.Path
	}
	if flags.dbPath == "" {
		return fmt.Errorf("no ledger configured: set database.path or pass -db")
	}
	if _, err := os.Stat(flags.dbPath); err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	ledger, err := store.NewSQLiteStore(flags.dbPath)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	stats, err := ledger.GetUsageStats(ctx, flags.filter)
	if err != nil {
		return fmt.Errorf("reading usage: %w", err)
	}

	printUsage(os.Stdout, flags.dbPath, stats)
	return nil
}

func printUsage(w io.Writer, path string, stats *store.UsageStats) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Fprintf(w, "Ledger: %s\n\n", path)
	green.Fprint(w, "  Requests:          ")
	fmt.Fprintf(w, "%d\n", stats.Requests)
	red.Fprint(w, "  Failures:          ")
	fmt.Fprintf(w, "%d\n", stats.Failures)
	fmt.Fprintf(w, "  Prompt tokens:     %d\n", stats.PromptTokens)
	fmt.Fprintf(w, "  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Fprintf(w, "  Total tokens:      %d\n", stats.TotalTokens)
	fmt.Fprintf(w, "  Avg latency:       %.0fms\n", stats.AvgLatencyMS)
}
