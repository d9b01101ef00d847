// Package main is the entry point for the Scribe CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scribe-dev/scribe/internal/buildinfo"
	clierrors "github.com/scribe-dev/scribe/internal/errors"
	"github.com/scribe-dev/scribe/internal/observability"
	"github.com/scribe-dev/scribe/internal/output"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Set version from build-time ldflags
	buildinfo.Version = version
	buildinfo.Commit = commit

	out := output.Default()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return handleError(out, err)
	}

	return 0
}

// exitCodeError carries the wrapped program's exit status through Cobra
// unchanged. The child already wrote its own output, so nothing is
// printed for it.
type exitCodeError int

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// handleError formats and displays a CLI error, returning the appropriate exit code.
// For CLIError types, it displays the message and hint with styled output.
// For Cobra errors (unknown command, flags), it prints them with suggestions.
func handleError(out *output.Writer, err error) int {
	var codeErr exitCodeError
	if errors.As(err, &codeErr) {
		return int(codeErr)
	}

	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		out.Failure("%s", cliErr.Message)

		if cliErr.Hint != "" {
			out.Info("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	errStr := err.Error()

	// Handle Cobra's unknown command errors with suggestions
	if strings.HasPrefix(errStr, "unknown command") {
		out.Failure("%s", errStr)

		if !strings.Contains(errStr, "--help") {
			out.Info("Run 'scribe --help' for usage")
		}

		return clierrors.ExitUsage
	}

	// Handle other Cobra errors (safety net — flag errors are normally
	// wrapped as CLIError by SetFlagErrorFunc, but standalone commands
	// without a parent may still reach here).
	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "required flag") {
		out.Failure("%s", errStr)
		out.Info("Run 'scribe --help' for usage")

		return clierrors.ExitUsage
	}

	out.Failure("%s", errStr)

	return clierrors.ExitGeneral
}

func newRootCmd() *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
		noColor    bool
		logLevel   string
		logFormat  string
		logFile    string
		logStderr  string
	)

	out := output.Default()

	rootCmd := &cobra.Command{
		Use:   "scribe",
		Short: "Scribe - Transparent session capture for terminal programs",
		Long: `Scribe wraps an interactive terminal program in a pseudo-terminal and
records the conversation flowing through it. The wrapped program behaves
exactly as if it were running directly: full TUI, colors, and key
handling. Scribe watches the byte stream on the side, reconstructs the
user/program exchanges, masks secrets, and stores a durable session
record.

Get started:
  scribe run -- claude       Capture a session of the claude CLI
  scribe sessions list       List recorded sessions
  scribe sessions show <id>  Replay a recorded session
  scribe patterns list       Show the active masking patterns`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out.JSON = pickBoolFlagOrEnv(jsonOutput, "SCRIBE_JSON")
			out.Quiet = pickBoolFlagOrEnv(quiet, "SCRIBE_QUIET")

			if noColor {
				out.SetNoColor(true)

				color.NoColor = true
			}

			logCfg := observability.Config{
				Level:          pickFlagOrEnv(logLevel, "SCRIBE_LOG_LEVEL", "info"),
				Format:         pickFlagOrEnv(logFormat, "SCRIBE_LOG_FORMAT", "json"),
				LogFile:        pickFlagOrEnv(logFile, "SCRIBE_LOG_FILE", ""),
				StderrMode:     pickFlagOrEnv(logStderr, "SCRIBE_LOG_STDERR", "auto"),
				InteractiveTTY: out.Terminal().IsTTY && isInteractiveCommand(cmd.CommandPath()),
				SessionID:      uuid.NewString(),
				CommandPath:    cmd.CommandPath(),
				Version:        version,
				Commit:         commit,
			}

			logger, cleanup, err := observability.NewLogger(&logCfg)
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			// Store writer in context for subcommands
			ctx := out.WithContext(cmd.Context())
			ctx = observability.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cleanup != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, cleanup)
			}

			// Initialize OpenTelemetry tracing (opt-in via OTEL_ENABLED).
			telemetryCfg := &observability.TelemetryConfig{
				Enabled: observability.IsTelemetryEnabled(),
				Version: version,
				Commit:  commit,
			}

			telemetryShutdown, telemetryErr := observability.SetupTelemetry(ctx, telemetryCfg)
			if telemetryErr != nil {
				logger.Warn("telemetry initialization failed", slog.String("error", telemetryErr.Error()))
			}

			if telemetryShutdown != nil {
				cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					return telemetryShutdown(shutdownCtx)
				})
			}

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Minimal output (for CI)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, text")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Optional structured log file path")
	rootCmd.PersistentFlags().StringVar(&logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")

	// Enable typo suggestions for unknown commands
	rootCmd.SuggestionsMinimumDistance = 2

	// Wrap Cobra's raw flag errors in CLIError so they get styled output
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.CLIError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newPatternsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func wrapPostRunCleanup(postRun func(*cobra.Command, []string) error, cleanup func() error) func(*cobra.Command, []string) error {
	return wrapNamedPostRunCleanup(postRun, "logger resources", cleanup)
}

func wrapNamedPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))

	return v == "1" || v == "true" || v == "yes"
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	trimmed := strings.TrimSpace(flagValue)
	if trimmed != "" {
		return trimmed
	}

	if envValue := strings.TrimSpace(os.Getenv(envKey)); envValue != "" {
		return envValue
	}

	return fallback
}

// isInteractiveCommand reports whether the command owns the real
// terminal for its lifetime; stderr logging stays off for those.
func isInteractiveCommand(path string) bool {
	return path == "scribe run" || strings.HasPrefix(path, "scribe run ")
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// noArgs returns a Cobra positional-arg validator that rejects any arguments
// with a clear, user-friendly message (unlike cobra.NoArgs which says "unknown command").
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &clierrors.CLIError{
			Message: fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath()),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the scribe binary version, git commit, and build date.`,
		Example: `  scribe version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if out.JSON {
				return out.PrintJSON(VersionInfo{
					Version: version,
					Commit:  commit,
					Date:    date,
				})
			}

			out.Print("scribe %s\n", version)
			out.Print("  commit: %s\n", commit)
			out.Print("  built:  %s\n", date)

			return nil
		},
	}
}
