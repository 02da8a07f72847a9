// ABOUTME: Interactive config file generator for coven-relay
// ABOUTME: Writes a TOML config with credentials referenced through environment variables

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/coven-relay/internal/config"
)

// initAnswers are the values gathered by runInit.
type initAnswers struct {
	DiscordEnabled bool
	MatrixEnabled  bool
	Homeserver     string
	MatrixUserID   string
	Endpoint       string
	DatabasePath   string
	LogLevel       string
	LogFormat      string
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Discord ---")
	a.DiscordEnabled = isYes(prompt(reader, "Enable Discord?", "yes"))

	fmt.Println("\n--- Matrix ---")
	a.MatrixEnabled = isYes(prompt(reader, "Enable Matrix?", "no"))
	if a.MatrixEnabled {
		a.Homeserver = prompt(reader, "Homeserver URL", "https://matrix.org")
		a.MatrixUserID = prompt(reader, "Bot user ID", "@relay:matrix.org")
	}

	fmt.Println("\n--- Completion backend ---")
	a.Endpoint = prompt(reader, "Endpoint", config.DefaultEndpoint)

	fmt.Println("\n--- Completion ledger ---")
	a.DatabasePath = prompt(reader, "SQLite path (empty to disable)", "")

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := writeConfig(f, a); err != nil {
		f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", outputFile)
	fmt.Println()
	fmt.Println("    Next steps:")
	step := 1
	if a.DiscordEnabled {
		fmt.Printf("    %d. export DISCORD_TOKEN=...\n", step)
		step++
	}
	if a.MatrixEnabled {
		fmt.Printf("    %d. export MATRIX_ACCESS_TOKEN=...\n", step)
		step++
	}
	fmt.Printf("    %d. export OPENAI_API_KEY=...\n", step)
	fmt.Printf("    %d. Run: coven-relay serve\n", step+1)
	fmt.Println()

	return nil
}

// writeConfig renders the answers as TOML. Secrets stay in the environment.
func writeConfig(w io.Writer, a initAnswers) error {
	var b strings.Builder
	b.WriteString("# coven-relay configuration\n")
	b.WriteString("# Generated by coven-relay init\n\n")

	b.WriteString("[discord]\n")
	fmt.Fprintf(&b, "enabled = %t\n", a.DiscordEnabled)
	b.WriteString("token = \"${DISCORD_TOKEN}\"\n\n")

	b.WriteString("[matrix]\n")
	fmt.Fprintf(&b, "enabled = %t\n", a.MatrixEnabled)
	if a.MatrixEnabled {
		fmt.Fprintf(&b, "homeserver = %q\n", a.Homeserver)
		fmt.Fprintf(&b, "user_id = %q\n", a.MatrixUserID)
		b.WriteString("access_token = \"${MATRIX_ACCESS_TOKEN}\"\n")
		b.WriteString("# Only respond in these rooms (empty = all joined rooms)\n")
		b.WriteString("allowed_rooms = []\n")
	}
	b.WriteString("\n")

	b.WriteString("[completion]\n")
	fmt.Fprintf(&b, "endpoint = %q\n", a.Endpoint)
	b.WriteString("api_key = \"${OPENAI_API_KEY}\"\n")
	fmt.Fprintf(&b, "backend_model = %q\n\n", config.DefaultBackendModel)

	b.WriteString("[models]\n")
	fmt.Fprintf(&b, "allowed = [%s]\n", quoteList(config.DefaultAllowedModels))
	fmt.Fprintf(&b, "enabled = %q\n\n", config.DefaultEnabledModel)

	b.WriteString("[dedupe]\n")
	fmt.Fprintf(&b, "ttl = %q\n", config.DefaultDedupeTTL.String())
	fmt.Fprintf(&b, "max_size = %d\n\n", config.DefaultDedupeSize)

	b.WriteString("[database]\n")
	fmt.Fprintf(&b, "path = %q\n\n", a.DatabasePath)

	b.WriteString("[logging]\n")
	fmt.Fprintf(&b, "level = %q\n", a.LogLevel)
	fmt.Fprintf(&b, "format = %q\n", a.LogFormat)

	_, err := io.WriteString(w, b.String())
	return err
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
