package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/scribe-dev/scribe/internal/config"
	clierrors "github.com/scribe-dev/scribe/internal/errors"
	"github.com/scribe-dev/scribe/internal/output"
	"github.com/scribe-dev/scribe/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify Scribe configuration settings.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display all configuration settings and their current values. Shows available settings with defaults when none are set.`,
		Example: `  scribe config list
  scribe config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()
			settings := cfg.All()

			if out.JSON {
				return out.PrintJSON(settings)
			}

			if len(settings) == 0 {
				out.Muted("No configuration set.")
				out.Println()
				out.Println("Available settings:")

				sessionsDir := "<user state dir>/scribe/sessions"
				if resolved, err := paths.SessionsDir(); err == nil {
					sessionsDir = resolved
				}

				rulesFile := "<user config dir>/scribe/privacy.yaml"
				if resolved, err := paths.PrivacyRulesFile(); err == nil {
					rulesFile = resolved
				}

				out.Print("  sessions.dir                    Session record directory (default: %s)\n", sessionsDir)
				out.Print("  sessions.retain_raw             Keep pre-mask raw logs (default: false)\n")
				out.Print("  capture.stabilize_window_ms     Quiet window before a turn closes (default: 300)\n")
				out.Print("  capture.transient_revisions     Line revisions treated as in-place redraws (default: 3)\n")
				out.Print("  capture.poll_interval_ms        Capture loop tick interval (default: 100)\n")
				out.Print("  capture.prompt_pattern          Override prompt detection regex\n")
				out.Print("  privacy.rules_file              Privacy rules YAML path (default: %s)\n", rulesFile)

				return nil
			}

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				value := settings[key]
				out.Print("%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  scribe config get sessions.dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]
			cfg := config.Load()
			value := cfg.Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Set a configuration value",
		Long:    `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  scribe config set capture.stabilize_window_ms 500`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]
			cfg := config.Load()

			if err := cfg.Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}
