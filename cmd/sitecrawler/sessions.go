package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
)

// NewSessionsCmd creates the sessions command.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List resumable crawl sessions",
		Long: `Sessions lists crawl sessions that were interrupted or stopped unexpectedly
and can be continued with "sitecrawler resume".

Examples:
  # List resumable sessions
  sitecrawler sessions

  # Include completed sessions
  sitecrawler sessions --all`,
		Args: cobra.NoArgs,
		RunE: runSessionsCmd,
	}

	cmd.Flags().BoolP("all", "a", false, "Include completed sessions")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: sitecrawler.yaml in current or XDG config directory)")

	return cmd
}

// runSessionsCmd executes the sessions command.
func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	file, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	dbDir, err := resolveDBDir(cmd, file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dbDir, database.DBFileName)); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	var sessions []model.Session
	if all {
		sessions, err = db.ListSessions(ctx)
	} else {
		sessions, err = db.ListIncompleteSessions(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-11s  %6s  %-19s  %s\n", "SESSION", "STATUS", "PAGES", "STARTED", "START URL")
	for _, s := range sessions {
		pages, err := db.CountPages(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to count pages of %s: %w", s.ID, err)
		}
		fmt.Fprintf(out, "%-36s  %-11s  %6d  %-19s  %s\n",
			s.ID, s.Status, pages, s.StartedAt.Local().Format(time.DateTime), s.StartURL)
	}

	if !all {
		fmt.Fprintln(out, "\nResume a session with: sitecrawler resume <session-id>")
	}
	return nil
}
