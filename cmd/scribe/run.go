package main

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/scribe-dev/scribe/internal/config"
	clierrors "github.com/scribe-dev/scribe/internal/errors"
	"github.com/scribe-dev/scribe/internal/observability"
	"github.com/scribe-dev/scribe/internal/output"
	"github.com/scribe-dev/scribe/internal/privacy"
	"github.com/scribe-dev/scribe/internal/relay"
	"github.com/scribe-dev/scribe/internal/segment"
	"github.com/scribe-dev/scribe/internal/session"
	"github.com/scribe-dev/scribe/internal/term"
)

func newRunCmd() *cobra.Command {
	var (
		sessionsDir   string
		rulesFile     string
		retainRaw     bool
		promptPattern string
	)

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a program under transparent session capture",
		Long: `Run starts the given program inside a pseudo-terminal and relays all
input and output unchanged. On exit, the reconstructed conversation is
masked and written to the sessions directory. The program's exit code
passes through.`,
		Example: `  scribe run -- claude
  scribe run -- python3 -i
  scribe run --retain-raw -- bash`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return clierrors.CommandRequired()
			}

			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			cfg := config.Load()

			dir := sessionsDir
			if dir == "" {
				dir = cfg.SessionsDir()
			}

			backend, err := session.NewFSBackend(dir)
			if err != nil {
				return clierrors.StorageFailed("create sessions directory", err)
			}

			rulesPath := rulesFile
			if rulesPath == "" {
				rulesPath = cfg.PrivacyRulesFile()
			}

			rules, err := privacy.LoadRules(rulesPath)
			if err != nil {
				return clierrors.PrivacyRulesInvalid(rulesPath, err)
			}

			engine := privacy.NewEngine(rules)

			cwd, err := os.Getwd()
			if err != nil {
				cwd = ""
			}

			sess := session.New(cwd, args[0])

			var rawLog *session.RawLog

			if retainRaw || cfg.RetainRaw() {
				rawLog, err = session.NewRawLog(dir, sess.ID)
				if err != nil {
					return clierrors.StorageFailed("create raw session log", err)
				}
			}

			store := session.NewStore(sess, session.StoreOptions{
				Engine:  engine,
				Backend: backend,
				RawLog:  rawLog,
				Logger:  logger,
			})

			pattern := promptPattern
			if pattern == "" {
				pattern = cfg.PromptPattern()
			}

			ctrl := relay.New(relay.Spec{
				Command: args[0],
				Args:    args[1:],
			}, store, relay.Config{
				PollInterval: cfg.PollInterval(),
				Normalizer: term.Config{
					StabilizeWindow:    cfg.StabilizeWindow(),
					TransientRevisions: cfg.TransientRevisions(),
				},
				Segment: segment.Config{PromptPattern: pattern},
				Logger:  logger,
			})

			code, err := ctrl.Run(cmd.Context())
			if err != nil {
				var spawnErr *relay.SpawnError
				if errors.As(err, &spawnErr) {
					if errors.Is(spawnErr.Err, exec.ErrNotFound) {
						return clierrors.CommandNotFound(spawnErr.Command)
					}

					return clierrors.SpawnFailed(spawnErr.Command, spawnErr.Err)
				}

				return clierrors.StorageFailed("save session record", err)
			}

			if !out.Quiet {
				out.Muted("Session %s saved (%d interactions)", sess.ID, len(store.Session().Interactions))
			}

			if code != 0 {
				return exitCodeError(code)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "Override the session record directory")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Path to a custom masking rules file")
	cmd.Flags().BoolVar(&retainRaw, "retain-raw", false, "Also keep a compressed pre-mask log of the session")
	cmd.Flags().StringVar(&promptPattern, "prompt-pattern", "", "Regular expression matching the program's idle prompt line")

	return cmd
}
