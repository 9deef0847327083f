package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/newslettercheck/internal/fetcher"
	"github.com/nao1215/newslettercheck/internal/inliner"
	applog "github.com/nao1215/newslettercheck/internal/log"
)

// NewInlineCmd creates the inline command.
func NewInlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inline FILE",
		Short: "Inline CSS into a local HTML file",
		Long: `Inline reads a local HTML file or fragment, applies stylesheets as inline
style attributes and prints the resulting body markup.

Stylesheets come from --stylesheet, or from the "defaults" section of the
configuration file when no --stylesheet is given. Absolute links to
stylesheets inside the file are fetched and applied as well. The file's
character set is detected automatically and the output is always UTF-8.

Examples:
  # Inline a saved template with a local stylesheet
  newslettercheck inline -s email.css template.html

  # Use several stylesheets and write the result to a file
  newslettercheck inline -s base.css -s theme.css -o out.html template.html`,
		Args: cobra.ExactArgs(1),
		RunE: runInlineCmd,
	}

	cmd.Flags().StringArrayP("stylesheet", "s", nil,
		"Local CSS file to apply (repeatable)")
	cmd.Flags().StringP("output", "o", "",
		"Write the result to specified file path instead of stdout")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .newslettercheck in current or home directory)")

	return cmd
}

// runInlineCmd executes the inline command.
func runInlineCmd(cmd *cobra.Command, args []string) error {
	stylesheets, err := cmd.Flags().GetStringArray("stylesheet")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	if len(stylesheets) == 0 {
		siteConfigs, err := loadSiteConfigs(configPath)
		if err != nil {
			return err
		}
		stylesheets = siteConfigs.Defaults.Stylesheets
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))

	markup, err := inliner.ReadHTMLFile(args[0])
	if err != nil {
		return err
	}

	i := inliner.New(
		inliner.WithDefaultStylesheets(stylesheets),
		inliner.WithStylesheetSource(fetcher.New(fetcher.WithLogger(logger))),
		inliner.WithLogger(logger),
	)

	inlined, err := i.InlineTag(cmd.Context(), markup)
	if err != nil {
		return fmt.Errorf("failed to inline %s: %w", args[0], err)
	}

	output, closeOutput, err := openReportOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	_, err = io.WriteString(output, inlined+"\n")
	return err
}
