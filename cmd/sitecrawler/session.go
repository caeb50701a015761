package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/log"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
	"github.com/nao1215/sitecrawler/internal/storage"
)

// setupLogger creates the secure logger for a session and makes it the
// default. The returned function closes the log file.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closeLog, err := log.NewLogger(log.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLogs,
		LogFile: cfg.LogFile,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

// openDatabase opens the session database, creating it if needed.
func openDatabase(dir string) (*database.CrawlDB, error) {
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// runSession runs a new session, or resumes snap when it is not nil, and
// writes the report. An interrupted crawl is not an error.
func runSession(cmd *cobra.Command, cfg *config.Config, db *database.CrawlDB, snap *model.Snapshot, logger *slog.Logger) error {
	ctx, stop := withSignalCancel(cmd.Context(), logger, cmd.ErrOrStderr())
	defer stop()

	files, err := storage.NewFileSink(cfg.OutputDir, storage.WithLogger(logger))
	if err != nil {
		return err
	}

	// Files first: the page index only records pages written to disk.
	engine, err := crawler.New(cfg, db,
		crawler.WithLogger(logger),
		crawler.WithSink(storage.Multi(files, db)),
	)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	stopProgress := func() {}
	if !noProgress(cmd) {
		stopProgress = startProgress(engine, cfg.MaxPages, cmd.ErrOrStderr())
	}

	var result *crawler.Result
	if snap == nil {
		result, err = engine.Run(ctx)
	} else {
		result, err = engine.Resume(ctx, snap)
	}
	stopProgress()
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	logger.Info("crawl finished",
		"session", result.Session.ID,
		"status", result.Session.Status,
		"downloaded", result.Report.Downloaded,
	)

	return outputReport(cmd, cfg, &report.Summary{
		Session:   result.Session,
		Stats:     result.Report,
		OutputDir: files.Dir(),
		DBPath:    db.Path(),
	})
}

// withSignalCancel returns a context cancelled by SIGINT or SIGTERM.
func withSignalCancel(parent context.Context, logger *slog.Logger, w io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal, cancelling...", "signal", sig.String())
			fmt.Fprintln(w, "\nStopping: finishing in-flight pages and saving a checkpoint...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func noProgress(cmd *cobra.Command) bool {
	var disabled bool
	_ = boolFlag(cmd, "no-progress", &disabled) //nolint:errcheck // flag is registered as bool
	return disabled
}

// outputReport writes the summary in the requested format. When a report
// file is given, a plain-text summary is also printed to the terminal.
func outputReport(cmd *cobra.Command, cfg *config.Config, summary *report.Summary) error {
	if cfg.ReportFile == "" {
		_, err := reportWriter(cmd.OutOrStdout(), cfg).Write(summary)
		return err
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(cfg.Verbose)),
		reportWriter(f, cfg),
	)
	_, err = w.Write(summary)
	return err
}

func reportWriter(output io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
