// ABOUTME: Entry point for coven-relay
// ABOUTME: Relays Discord and Matrix chat commands to a text completion backend

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-relay/internal/completion"
	"github.com/2389/coven-relay/internal/config"
	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/discord"
	"github.com/2389/coven-relay/internal/dispatch"
	"github.com/2389/coven-relay/internal/matrix"
	"github.com/2389/coven-relay/internal/router"
	"github.com/2389/coven-relay/internal/session"
	"github.com/2389/coven-relay/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                 _
  ___ _____   _____ _ __        _ __ ___| | __ _ _   _
 / __/ _ \ \ / / _ \ '_ \ _____| '__/ _ \ |/ _' | | | |
| (_| (_) \ V /  __/ | | |_____| | |  __/ | (_| | |_| |
 \___\___/ \_/ \___|_| |_|     |_|  \___|_|\__,_|\__, |
                                                 |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: coven-relay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Connect the enabled frontends and relay commands")
		fmt.Println("  init       Create a new config file interactively")
		fmt.Println("  usage      Summarize recorded completion usage")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	// A missing .env file is fine; credentials may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: loading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, cancel)
	case "init":
		err = runInit()
	case "usage":
		err = runUsage(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// frontend is a connected chat network.
type frontend interface {
	Run(ctx context.Context) error
}

// shutdownTimeout bounds how long serve waits for in-flight requests.
const shutdownTimeout = 30 * time.Second

// runServe runs until ctx is cancelled. stop releases the signal handler so a
// second signal terminates the process while requests drain.
func runServe(ctx context.Context, stop context.CancelFunc) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	printStartup(configPath, cfg)

	deps := router.Config{
		Sessions: session.NewStore(),
		Completer: completion.New(completion.Config{
			Endpoint:     cfg.Completion.Endpoint,
			APIKey:       cfg.Completion.APIKey,
			Organization: cfg.Completion.Organization,
		}, nil, logger),
		Models: router.Models{
			Allowed: cfg.Models.Allowed,
			Enabled: cfg.Models.Enabled,
			Backend: cfg.Completion.BackendModel,
		},
	}

	if cfg.Database.Path != "" {
		ledger, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening completion ledger: %w", err)
		}
		defer ledger.Close()
		deps.Recorder = ledger
	}

	rt := router.New(deps, logger)
	dispatcher := dispatch.New(rt, dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize), logger)

	frontends, err := buildFrontends(cfg, dispatcher, logger)
	if err != nil {
		return err
	}

	logger.Info("starting coven-relay",
		"config", configPath,
		"frontends", len(frontends),
		"model", cfg.Models.Enabled,
		"backend_model", cfg.Completion.BackendModel,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range frontends {
		g.Go(func() error {
			return f.Run(gctx)
		})
	}
	g.Go(func() error {
		select {
		case err := <-dispatcher.Fatal():
			return err
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	stop()

	if drainErr := drain(dispatcher, shutdownTimeout, logger); drainErr != nil && err == nil {
		err = drainErr
	}
	return err
}

// waiter is the part of the dispatcher used during shutdown.
type waiter interface {
	WaitContext(ctx context.Context) error
}

// drain waits up to timeout for in-flight handlers.
func drain(w waiter, timeout time.Duration, logger *slog.Logger) error {
	logger.Info("waiting for in-flight requests", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := w.WaitContext(ctx); err != nil {
		logger.Warn("in-flight requests did not finish before shutdown", "error", err)
		return fmt.Errorf("draining in-flight requests: %w", err)
	}
	logger.Info("all requests finished")
	return nil
}

func buildFrontends(cfg *config.Config, dispatcher *dispatch.Dispatcher, logger *slog.Logger) ([]frontend, error) {
	var frontends []frontend
	if cfg.Discord.Enabled {
		f, err := discord.New(cfg.Discord.Token, dispatcher, logger)
		if err != nil {
			return nil, fmt.Errorf("creating discord frontend: %w", err)
		}
		frontends = append(frontends, f)
	}
	if cfg.Matrix.Enabled {
		f, err := matrix.New(matrix.Config{
			Homeserver:   cfg.Matrix.Homeserver,
			UserID:       cfg.Matrix.UserID,
			AccessToken:  cfg.Matrix.AccessToken,
			AllowedRooms: cfg.Matrix.AllowedRooms,
		}, dispatcher, logger)
		if err != nil {
			return nil, fmt.Errorf("creating matrix frontend: %w", err)
		}
		frontends = append(frontends, f)
	}
	return frontends, nil
}

func printStartup(configPath string, cfg *config.Config) {
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	if cfg.Discord.Enabled {
		green.Print("    ▶ ")
		fmt.Println("Discord:   enabled")
	}
	if cfg.Matrix.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Matrix:    %s (%s)\n", cfg.Matrix.UserID, cfg.Matrix.Homeserver)
	}
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Completion.Endpoint)
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s ", cfg.Models.Enabled)
	gray.Printf("(%s)\n", cfg.Completion.BackendModel)
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:    %s\n", cfg.Database.Path)
	}
	fmt.Println()
}
