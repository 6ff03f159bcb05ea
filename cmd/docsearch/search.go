package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
)

var (
	colorTitle     = color.New(color.FgHiMagenta, color.Bold)
	colorLocation  = color.New(color.FgCyan)
	colorHighlight = color.New(color.FgYellow, color.Bold)
	colorMuted     = color.New(color.Faint)
)

type searchFlags struct {
	limit      int
	mode       string
	categories []string
	json       bool
}

func newSearchCmd(a *app) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <payload> <query>",
		Short: "Search a documentation payload",
		Long: `Builds the index from <payload> and prints the ranked matches for <query>.
Prefix a term with - or NOT to exclude records containing it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, f, args[0], args[1])
		},
	}
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "maximum number of results (0 for all)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "term matching: exact, prefix or substring (default from config)")
	cmd.Flags().StringSliceVarP(&f.categories, "category", "c", nil, "only return records of these categories")
	cmd.Flags().BoolVar(&f.json, "json", false, "output results as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, a *app, f *searchFlags, path, query string) error {
	if f.limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}
	modeName := f.mode
	if modeName == "" {
		modeName = cfg.Search.MatchMode
	}
	mode, err := index.ParseMatchMode(modeName)
	if err != nil {
		return err
	}

	engine, _, err := a.build(cmd.Context(), cfg, path)
	if err != nil {
		return err
	}
	weights := ranker.WeightsFromConfig(cfg.Search)
	exec := executor.New(engine, executor.Options{
		Weights: &weights,
		Snippet: snippet.Formatter{Radius: cfg.Search.SnippetRadius, Fallback: cfg.Search.SnippetLength},
	})
	opts := executor.Options{Limit: f.limit, Mode: mode}
	for _, c := range f.categories {
		opts.Categories = append(opts.Categories, ingestion.Category(c))
	}
	result, err := exec.Execute(cmd.Context(), query, opts)
	if err != nil {
		return err
	}

	if f.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResults(cmd, result)
	return nil
}

func printResults(cmd *cobra.Command, result *executor.SearchResult) {
	out := cmd.OutOrStdout()
	if len(result.Terms) == 0 {
		fmt.Fprintln(out, "Query has no searchable terms.")
		return
	}
	if len(result.Results) == 0 {
		fmt.Fprintf(out, "No results for %q.\n", result.Query)
		return
	}

	open, closing := highlightMarkers()
	for i, r := range result.Results {
		fmt.Fprintf(out, "%2d. %s  %s\n", i+1, colorTitle.Sprint(r.Title), colorLocation.Sprint(location(r)))
		fmt.Fprintf(out, "    %s\n", colorMuted.Sprintf("%s · %d/%d terms · score %.4f",
			r.Category, r.MatchedTerms, len(result.Terms), r.Score))
		if r.Snippet.Text != "" {
			text := strings.Join(strings.Fields(r.Snippet.Highlight(open, closing)), " ")
			fmt.Fprintf(out, "    %s\n", text)
		}
	}
	fmt.Fprintf(out, "\n%d of %d matching records (%s match)\n", len(result.Results), result.TotalHits, result.Mode)
}

// highlightMarkers returns the strings placed around matched terms: the
// highlight color's escape codes, or brackets when color is off.
func highlightMarkers() (string, string) {
	if color.NoColor {
		return "[", "]"
	}
	open, closing, _ := strings.Cut(colorHighlight.Sprint("\x00"), "\x00")
	return open, closing
}

func location(r executor.Result) string {
	if r.Location == "" {
		return r.Page
	}
	return r.Page + r.Location
}
