// Package cmd implements the docvista command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dir        string
	recursive  bool
	logLevel   string
}

// NewRootCmd creates the docvista command tree.
func NewRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "docvista",
		Short: "Search a folder of text, Markdown, PDF and DOCX documents",
		Long: `DocVista indexes the documents of a folder and ranks them against
free-text queries with TF-IDF or BM25. Quoted queries match an exact phrase.

Run 'docvista serve' for the HTTP API, or query a folder directly:
  docvista search "retrieval engine" --dir ./docs
  docvista keywords 3 --dir ./docs`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "Document folder (overrides documents.dir)")
	cmd.PersistentFlags().BoolVarP(&opts.recursive, "recursive", "r", false, "Include sub-folders")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides logging.level)")

	cmd.AddCommand(newServeCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newKeywordsCmd(&opts))
	cmd.AddCommand(newDocumentsCmd(&opts))
	cmd.AddCommand(newLoadtestCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// load reads the configuration and applies the persistent flags on top.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.dir != "" {
		cfg.Documents.Dir = o.dir
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Documents.Recursive = o.recursive
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// quietLogging sends logs of one-shot commands to stderr so stdout only
// carries results. Warnings stay visible unless a level was asked for.
func (o *globalOptions) quietLogging(cmd *cobra.Command) {
	level := o.logLevel
	if level == "" {
		level = "warn"
	}
	slog.SetDefault(slog.New(logger.NewHandler(cmd.ErrOrStderr(), level, "text")))
}
