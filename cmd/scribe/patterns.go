package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribe-dev/scribe/internal/config"
	clierrors "github.com/scribe-dev/scribe/internal/errors"
	"github.com/scribe-dev/scribe/internal/output"
	"github.com/scribe-dev/scribe/internal/privacy"
)

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and test privacy masking patterns",
	}

	cmd.AddCommand(newPatternsListCmd())
	cmd.AddCommand(newPatternsAnalyzeCmd())

	return cmd
}

func loadPatternEngine(rulesFlag string) (*privacy.Engine, error) {
	path := rulesFlag
	if path == "" {
		path = config.Load().PrivacyRulesFile()
	}

	rules, err := privacy.LoadRules(path)
	if err != nil {
		return nil, clierrors.PrivacyRulesInvalid(path, err)
	}

	return privacy.NewEngine(rules), nil
}

func newPatternsListCmd() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active masking patterns",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			engine, err := loadPatternEngine(rulesPath)
			if err != nil {
				return err
			}

			infos := engine.Summary()

			if out.JSON {
				return out.PrintJSON(infos)
			}

			for _, info := range infos {
				state := "enabled"
				if !info.Enabled {
					state = "disabled"
				}

				out.Print("%-28s  %-8s  %s\n", info.Name, info.Severity, state)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a privacy rules YAML file")

	return cmd
}

func newPatternsAnalyzeCmd() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze text from stdin for sensitive content",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			engine, err := loadPatternEngine(rulesPath)
			if err != nil {
				return err
			}

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return &clierrors.CLIError{
					Message: "Failed to read text from stdin",
					Cause:   err,
					Code:    clierrors.ExitGeneral,
				}
			}

			analysis := engine.Analyze(string(data))

			if out.JSON {
				return out.PrintJSON(analysis)
			}

			out.Print("Level:    %s\n", analysis.Level)
			out.Print("Score:    %d\n", analysis.Score)
			out.Print("Approval: %t\n", analysis.RequiresApproval)

			if len(analysis.Detected) > 0 {
				out.Print("Detected: %s\n", strings.Join(analysis.Detected, ", "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a privacy rules YAML file")

	return cmd
}
