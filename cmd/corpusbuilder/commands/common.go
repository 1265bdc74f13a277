package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"corpusbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the documentation corpus from configured projects"`
	Fetch   FetchCmd   `cmd:"" help:"Run a secondary corpus fetcher"`
	History HistoryCmd `cmd:"" help:"Show past corpus runs from the run ledger"`
	Daemon  DaemonCmd  `cmd:"" help:"Run continuously: scheduled refresh, config watch, metrics endpoint"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel resolves the log level from the verbose flag and the
// CORPUSBUILDER_LOG_LEVEL environment variable; the env var wins.
func parseLogLevel(verbose bool) slog.Level {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("CORPUSBUILDER_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return level
}
