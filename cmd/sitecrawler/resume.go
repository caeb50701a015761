package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
)

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Continue an interrupted crawl session",
		Long: `Resume continues a session from its last checkpoint.

The session keeps its start URL, filters and output directory. Limit flags
given here (for example --max-pages or --delay) replace the stored values
for the rest of the crawl; pages already processed are not re-evaluated.

Examples:
  # List resumable sessions
  sitecrawler sessions

  # Continue a session
  sitecrawler resume 3f2b8c1e-5d7a-4c1b-9e0f-2a6b7c8d9e0f

  # Continue with a higher page limit
  sitecrawler resume --max-pages 500 3f2b8c1e-5d7a-4c1b-9e0f-2a6b7c8d9e0f`,
		Args: cobra.ExactArgs(1),
		RunE: runResumeCmd,
	}

	addLimitFlags(cmd)
	addOutputFlags(cmd)

	return cmd
}

// runResumeCmd executes the resume command.
func runResumeCmd(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	file, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	dbDir, err := resolveDBDir(cmd, file)
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	snap, err := db.LoadSnapshot(cmd.Context(), sessionID)
	if errors.Is(err, model.ErrSnapshotNotFound) {
		return fmt.Errorf("session %s not found (run 'sitecrawler sessions' to list resumable sessions)", sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if !snap.Session.Status.IsResumable() {
		return fmt.Errorf("session %s is already %s", sessionID, snap.Session.Status)
	}

	cfg, err := buildResumeConfig(cmd, snap, file)
	if err != nil {
		return err
	}
	cfg.DBDir = dbDir
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // best effort on exit

	fmt.Fprintf(cmd.ErrOrStderr(), "Resuming session %s (%d pages saved, %d queued)\n",
		sessionID, snap.Counters.Downloaded, len(snap.Pending))

	return runSession(cmd, cfg, db, snap, logger)
}

// buildResumeConfig restores the configuration stored with the session and
// applies the flags given on the command line.
func buildResumeConfig(cmd *cobra.Command, snap *model.Snapshot, file *config.File) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(snap.Session.Config) > 0 {
		if err := json.Unmarshal(snap.Session.Config, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode stored configuration: %w", err)
		}
	} else {
		cfg.MaxDepth = snap.Session.MaxDepth
		cfg.MaxPages = snap.Session.MaxPages
		cfg.Workers = snap.Session.Workers
		cfg.Delay = snap.Session.Delay
	}
	cfg.StartURL = snap.Session.StartURL

	// Cookies and log settings are not stored with the session.
	if file != nil {
		cfg.Cookie = file.Request.Cookie
		cfg.LogFile = file.Output.LogFile
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	setDefaultLogFile(cfg)
	return cfg, nil
}
