package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribe-dev/scribe/internal/config"
	clierrors "github.com/scribe-dev/scribe/internal/errors"
	"github.com/scribe-dev/scribe/internal/output"
	"github.com/scribe-dev/scribe/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsPruneCmd())

	return cmd
}

func sessionsBackend(dirFlag string) (*session.FSBackend, error) {
	dir := dirFlag
	if dir == "" {
		dir = config.Load().SessionsDir()
	}

	backend, err := session.NewFSBackend(dir)
	if err != nil {
		return nil, clierrors.StorageFailed("open sessions directory", err)
	}

	return backend, nil
}

func newSessionsListCmd() *cobra.Command {
	var sessionsDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			backend, err := sessionsBackend(sessionsDir)
			if err != nil {
				return err
			}

			summaries, err := backend.List()
			if err != nil {
				return clierrors.StorageFailed("list sessions", err)
			}

			if out.JSON {
				return out.PrintJSON(summaries)
			}

			if len(summaries) == 0 {
				out.Muted("No sessions recorded.")
				return nil
			}

			for _, s := range summaries {
				out.Print("%s  %s  %-11s  %d interaction(s)\n",
					s.ID, s.StartTime.Local().Format(time.RFC3339), s.Status, s.Interactions)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "Override the session record directory")

	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	var (
		sessionsDir string
		raw         bool
	)

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the recorded conversation of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			backend, err := sessionsBackend(sessionsDir)
			if err != nil {
				return err
			}

			sess, err := backend.Load(args[0])
			if err != nil {
				if errors.Is(err, session.ErrNotFound) {
					return clierrors.SessionNotFound(args[0])
				}

				return clierrors.StorageFailed("read session", err)
			}

			if out.JSON {
				return out.PrintJSON(sess)
			}

			if raw {
				return showRawEvents(out, backend.Dir(), sess.ID)
			}

			renderSession(out, sess)

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "Override the session record directory")
	cmd.Flags().BoolVar(&raw, "raw", false, "Show the pre-mask raw log instead (if retained)")

	return cmd
}

func renderSession(out *output.Writer, sess *session.Session) {
	ended := "-"
	if sess.EndTime != nil {
		ended = sess.EndTime.Local().Format(time.RFC3339)
	}

	out.Print("Session  %s\n", sess.ID)
	out.Print("Project  %s\n", sess.ProjectPath)
	out.Print("Status   %s\n", sess.Status)
	out.Print("Started  %s\n", sess.StartTime.Local().Format(time.RFC3339))
	out.Print("Ended    %s\n", ended)

	if cmdName := sess.Metadata["command"]; cmdName != "" {
		out.Print("Command  %s\n", cmdName)
	}

	out.Println()

	for _, in := range sess.Interactions {
		label := "assistant"
		if in.Role == session.RoleUser {
			label = "user"
		}

		out.Print("[%3d] %s  %s\n", in.Seq, in.Timestamp.Local().Format("15:04:05"), label)

		for _, line := range strings.Split(in.Content, "\n") {
			out.Print("      %s\n", line)
		}

		if len(in.DetectedPatterns) > 0 {
			out.Muted("      masked: %s", strings.Join(in.DetectedPatterns, ", "))
		}
	}
}

func showRawEvents(out *output.Writer, dir, sessionID string) error {
	events, err := session.ReadRawEvents(dir, sessionID)
	if err != nil {
		return clierrors.StorageFailed("read raw session log", err).
			WithHint("Raw logs exist only for sessions recorded with --retain-raw")
	}

	for _, ev := range events {
		out.Print("[%3d] %s  %s  %s\n",
			ev.Seq, ev.TS.Local().Format("15:04:05"), ev.Role, ev.Text)
	}

	return nil
}

func newSessionsPruneCmd() *cobra.Command {
	var (
		sessionsDir string
		olderThan   string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than a duration",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			window, err := time.ParseDuration(olderThan)
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid duration for --older-than: %s", olderThan),
					Hint:    "Use a Go duration such as 720h",
					Code:    clierrors.ExitUsage,
				}
			}

			backend, err := sessionsBackend(sessionsDir)
			if err != nil {
				return err
			}

			removed, err := backend.PruneOlderThan(time.Now().Add(-window))
			if err != nil {
				return clierrors.StorageFailed("prune sessions", err)
			}

			out.Success("Removed %d session(s)", removed)

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "Override the session record directory")
	cmd.Flags().StringVar(&olderThan, "older-than", "720h", "Delete sessions older than this duration")

	return cmd
}
