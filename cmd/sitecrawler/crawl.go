package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Start a new crawl session",
		Long: `Crawl starts a new session at the given URL.

Pages are fetched breadth-first up to --max-depth links away from the start
URL until --max-pages pages have been saved. Each saved page is written to
--output-dir as HTML, extracted JSON and a metadata file, and is recorded in
the session database.

Press Ctrl+C to stop. In-flight pages are finished, a checkpoint is saved,
and the command prints how to resume the session.

Examples:
  # Crawl a site with the defaults (depth 2, 50 pages, 1s delay)
  sitecrawler crawl https://example.com

  # Crawl deeper with more workers, staying on one domain
  sitecrawler crawl -d 4 -p 500 -w 8 --allowed-domains example.com https://example.com

  # Only save pages that mention a keyword, and print a Markdown report
  sitecrawler crawl --include-keyword golang --markdown https://example.com/blog/

Configuration file (sitecrawler.yaml) example:
  crawler:
    max_depth: 3
    max_pages: 200
  politeness:
    delay: 2s
  filters:
    allowed_domains: [example.com]
    exclude_patterns: ["/tag/*"]`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	addLimitFlags(cmd)
	addFilterFlags(cmd)
	addOutputFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck // best effort on exit

	db, err := openDatabase(cfg.DBDir)
	if err != nil {
		return err
	}
	defer db.Close()

	return runSession(cmd, cfg, db, nil, logger)
}

// buildCrawlConfig resolves defaults, the configuration file and flags, in
// that order.
func buildCrawlConfig(cmd *cobra.Command, startURL string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.StartURL = startURL

	file, err := loadConfigFile(cmd)
	if err != nil {
		return nil, err
	}
	if file != nil {
		file.Apply(cfg)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	setDefaultLogFile(cfg)
	return cfg, nil
}
