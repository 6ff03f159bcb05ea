package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// app holds the flags shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Search documentation records from the command line",
		Long: `docsearch builds an in-memory index from a search_index.js payload
and answers queries against it. Title matches outrank text matches and
records matching more query terms come first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWriter(cmd.ErrOrStderr(), a.logLevel, "text")
			if a.noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "optional config file for tokenizer and ranking settings")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newSearchCmd(a), newStatsCmd(a), newRefreshCmd(a), newLoadtestCmd())
	return root
}

func (a *app) config() (*config.Config, error) {
	if a.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(a.configPath)
}

// build indexes the payload at path and returns the engine serving it.
func (a *app) build(ctx context.Context, cfg *config.Config, path string) (*indexer.Engine, *index.Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("payload %s: %w", path, err)
	}
	engine := indexer.NewEngine(source.NewFile(path), tokenizer.FromConfig(cfg.Tokenizer))
	idx, err := engine.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return engine, idx, nil
}
