package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for newslettercheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newslettercheck",
		Short: "Content-integrity checker for HTML newsletters",
		Long: `newslettercheck fetches a rendered newsletter page and prepares its body
content for email delivery: it normalizes stray Windows-1252 characters,
rewrites relative URLs to absolute ones and inlines CSS.

The sanitized content is then audited for empty tags, broken or empty links,
and images that are unreachable or lack alt text.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewInlineCmd())
	cmd.AddCommand(NewHistoryCmd())
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
