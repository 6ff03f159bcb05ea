package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

type categoryCount struct {
	Category ingestion.Category `json:"category"`
	Records  int                `json:"records"`
}

type statsOutput struct {
	index.Stats
	Categories []categoryCount `json:"categories"`
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <payload>",
		Short: "Print index statistics for a documentation payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			_, idx, err := a.build(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			st := statsOutput{Stats: idx.Stats(), Categories: categories(idx.Store())}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStats(cmd, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output statistics as JSON")
	return cmd
}

// categories counts records per category, most common first.
func categories(store *ingestion.Store) []categoryCount {
	counts := make(map[ingestion.Category]int)
	for _, rec := range store.All() {
		counts[rec.Category]++
	}
	out := make([]categoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, categoryCount{Category: c, Records: n})
	}
	slices.SortFunc(out, func(a, b categoryCount) int {
		if c := cmp.Compare(b.Records, a.Records); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

func printStats(cmd *cobra.Command, st statsOutput) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d\n", colorTitle.Sprint("records:     "), st.Records)
	fmt.Fprintf(out, "%s %d\n", colorTitle.Sprint("duplicates:  "), st.Duplicates)
	fmt.Fprintf(out, "%s %d\n", colorTitle.Sprint("terms:       "), st.Terms)
	fmt.Fprintf(out, "%s %d\n", colorTitle.Sprint("postings:    "), st.Postings)
	fmt.Fprintf(out, "%s %d title, %d text\n", colorTitle.Sprint("tokens:      "), st.TitleTokens, st.TextTokens)
	fmt.Fprintf(out, "%s %s\n", colorTitle.Sprint("build time:  "), st.BuildDuration)
	for _, c := range st.Categories {
		fmt.Fprintf(out, "  %-14s %d\n", c.Category, c.Records)
	}
}
