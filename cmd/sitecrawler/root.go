package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Polite, resumable web crawler",
		Long: `sitecrawler crawls a website from a start URL, saves the pages it accepts
and extracts their metadata and links.

It respects robots.txt, waits between requests to the same host, and
checkpoints its progress to a local database. Press Ctrl+C to stop a crawl;
it can be continued later with "sitecrawler resume".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write console logs as JSON")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the session database (default: XDG data directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
