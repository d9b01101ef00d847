// Package errors provides structured CLI error types for Scribe.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes for CLI errors. Codes from a wrapped program pass through
// unchanged; these apply only to Scribe's own failures.
const (
	ExitSuccess = 0  // Successful execution
	ExitGeneral = 1  // General error
	ExitSpawn   = 2  // Could not start the wrapped program
	ExitConfig  = 4  // Configuration error
	ExitStorage = 5  // Session storage error
	ExitUsage   = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// CommandNotFound returns an error when the wrapped program is not on PATH.
func CommandNotFound(command string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Command not found: %s", command),
		Hint:    "Check the spelling or install the program and ensure it is on your PATH",
		Code:    ExitSpawn,
	}
}

// SpawnFailed returns an error when the wrapped program could not be started.
func SpawnFailed(command string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to start %s", command),
		Hint:    "Run with --log-level=debug for more details",
		Cause:   cause,
		Code:    ExitSpawn,
	}
}

// SessionNotFound returns an error for an unknown session ID.
func SessionNotFound(id string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Session not found: %s", id),
		Hint:    "Run 'scribe sessions list' to see recorded sessions",
		Code:    ExitGeneral,
	}
}

// StorageFailed returns an error for session persistence failures.
func StorageFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your Scribe sessions directory",
		Cause:   cause,
		Code:    ExitStorage,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your Scribe config directory",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// PrivacyRulesInvalid returns an error for an unreadable masking rules file.
func PrivacyRulesInvalid(path string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid privacy rules file: %s", path),
		Hint:    "Fix the YAML syntax or remove the file to use the built-in patterns",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// CommandRequired returns an error when 'scribe run' is invoked with no argv.
func CommandRequired() *CLIError {
	return &CLIError{
		Message: "Command required",
		Hint:    "Usage: scribe run -- <command> [args...]",
		Code:    ExitUsage,
	}
}
