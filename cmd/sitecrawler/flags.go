package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
)

// defaultLogFile is the log file name inside the output directory.
const defaultLogFile = "crawler.log"

// addLimitFlags adds the crawl limit and politeness flags. They are shared by
// crawl and resume; on resume they override the stored session settings.
func addLimitFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the start URL")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Stop after this many pages have been saved")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Minimum interval between requests to the same host")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header, also matched against robots.txt")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")
	cmd.Flags().Int("checkpoint-every", config.DefaultCheckpointEvery,
		"Save a checkpoint after this many saved pages")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: sitecrawler.yaml in current or XDG config directory)")
}

// addFilterFlags adds the URL and content filter flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("allowed-domains", nil,
		"Only crawl these domains and their subdomains")
	cmd.Flags().StringSlice("include-pattern", nil,
		"URL path glob that must match (repeatable)")
	cmd.Flags().StringSlice("exclude-pattern", nil,
		"URL path glob that rejects a URL (repeatable)")
	cmd.Flags().Bool("skip-dynamic-queries", false,
		"Skip URLs with search, paging or API query parameters")
	cmd.Flags().StringSlice("include-keyword", nil,
		"Only save pages containing one of these terms")
	cmd.Flags().StringSlice("exclude-keyword", nil,
		"Do not save pages containing any of these terms")
	cmd.Flags().Int("min-length", 0,
		"Minimum page text length in characters")
	cmd.Flags().Int("max-length", 0,
		"Maximum page text length in characters")
	cmd.Flags().Bool("require-title", false,
		"Do not save pages without a title")
	cmd.Flags().StringSlice("language", nil,
		"Only save pages in these languages (e.g., en,ja)")
}

// addOutputFlags adds the output and report flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", config.DefaultOutputDir,
		"Directory for downloaded pages")
	cmd.Flags().String("log-file", "",
		"Rotating log file (default: <output-dir>/crawler.log)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-progress", false,
		"Disable the progress bar")
}

// applyFlags copies every flag set on the command line into cfg.
// Flags left at their default do not override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	c := &cfg.Criteria
	return errors.Join(
		intFlag(cmd, "max-depth", &cfg.MaxDepth),
		intFlag(cmd, "max-pages", &cfg.MaxPages),
		intFlag(cmd, "workers", &cfg.Workers),
		durationFlag(cmd, "delay", &cfg.Delay),
		durationFlag(cmd, "timeout", &cfg.Timeout),
		stringFlag(cmd, "user-agent", &cfg.UserAgent),
		stringFlag(cmd, "proxy", &cfg.ProxyAddress),
		noRobotsFlag(cmd, cfg),
		intFlag(cmd, "checkpoint-every", &cfg.CheckpointEvery),

		sliceFlag(cmd, "allowed-domains", &c.AllowedDomains),
		sliceFlag(cmd, "include-pattern", &c.IncludePatterns),
		sliceFlag(cmd, "exclude-pattern", &c.ExcludePatterns),
		boolFlag(cmd, "skip-dynamic-queries", &c.SkipDynamicQueries),
		sliceFlag(cmd, "include-keyword", &c.IncludeKeywords),
		sliceFlag(cmd, "exclude-keyword", &c.ExcludeKeywords),
		intFlag(cmd, "min-length", &c.MinLength),
		intFlag(cmd, "max-length", &c.MaxLength),
		boolFlag(cmd, "require-title", &c.RequireTitle),
		sliceFlag(cmd, "language", &c.Languages),

		stringFlag(cmd, "output-dir", &cfg.OutputDir),
		stringFlag(cmd, "log-file", &cfg.LogFile),
		stringFlag(cmd, "db-dir", &cfg.DBDir),
		boolFlag(cmd, "json", &cfg.JSONReport),
		boolFlag(cmd, "markdown", &cfg.MarkdownReport),
		stringFlag(cmd, "output", &cfg.ReportFile),
		boolFlag(cmd, "verbose", &cfg.Verbose),
		boolFlag(cmd, "log-json", &cfg.JSONLogs),
	)
}

func intFlag(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func durationFlag(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func sliceFlag(cmd *cobra.Command, name string, dst *[]string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func noRobotsFlag(cmd *cobra.Command, cfg *config.Config) error {
	ignore := !cfg.RespectRobots
	if err := boolFlag(cmd, "no-robots", &ignore); err != nil {
		return err
	}
	cfg.RespectRobots = !ignore
	return nil
}

// loadConfigFile loads the configuration file named by --config, or the
// first one found in the default locations. It returns nil when no file is
// found and none was requested.
func loadConfigFile(cmd *cobra.Command) (*config.File, error) {
	var explicitPath string
	if cmd.Flags().Lookup("config") != nil {
		var err error
		if explicitPath, err = cmd.Flags().GetString("config"); err != nil {
			return nil, err
		}
	}

	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return nil, nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// setDefaultLogFile places the log file next to the downloaded pages unless
// one was configured.
func setDefaultLogFile(cfg *config.Config) {
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.OutputDir, defaultLogFile)
	}
}

// resolveDBDir returns the database directory: the --db-dir flag, then the
// configuration file, then the XDG data directory.
func resolveDBDir(cmd *cobra.Command, file *config.File) (string, error) {
	dir := config.XDGDataDir()
	if file != nil && file.Output.DBDir != "" {
		dir = file.Output.DBDir
	}
	if err := stringFlag(cmd, "db-dir", &dir); err != nil {
		return "", err
	}
	return dir, nil
}
