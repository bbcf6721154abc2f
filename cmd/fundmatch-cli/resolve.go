package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"indiafinance/fundmatch/fundmatch"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var topN int
	var asJSON bool
	var suggestions int
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Resolve a fund name to its scheme code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top") {
				topN = cfg.TopN
			}
			matcher, err := fundmatch.Open(cfg, root.logger())
			if err != nil {
				return err
			}
			defer matcher.Close()

			query := strings.Join(args, " ")
			results, err := matcher.Resolve(commandContext(cmd), query, topN)
			if err != nil {
				if fundmatch.IsSemanticUnavailable(err) && suggestions > 0 {
					printFallback(root.out, matcher, query, suggestions)
				}
				return err
			}
			if asJSON {
				return writeJSON(root.out, results)
			}
			printResults(root.out, results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "Number of semantic matches to return (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&suggestions, "suggest", 3, "Lexical suggestions to print when the model is unavailable (0 disables)")
	return cmd
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	var n int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "suggest NAME",
		Short: "List lexically similar fund names without loading the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			store, err := fundmatch.LoadStore(cfg.StorePath, root.logger())
			if err != nil {
				return err
			}
			matcher, err := fundmatch.NewMatcher(store, nil, cfg, root.logger())
			if err != nil {
				return err
			}
			out, err := matcher.Suggest(strings.Join(args, " "), n)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(root.out, out)
			}
			for i, s := range out {
				fmt.Fprintf(root.out, "%d. %s (code=%d, similarity=%.3f)\n", i+1, s.FundName, s.FundCode, s.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "top", "n", 5, "Number of suggestions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print suggestions as JSON")
	return cmd
}

func printResults(w io.Writer, results []fundmatch.MatchResult) {
	for i, r := range results {
		kind := "semantic"
		if r.Exact {
			kind = "exact"
		}
		fmt.Fprintf(w, "%d. %s (code=%d, score=%.3f, %s)\n", i+1, r.FundName, r.FundCode, r.Score, kind)
	}
}

func printFallback(w io.Writer, m *fundmatch.Matcher, query string, n int) {
	sugg, err := m.Suggest(query, n)
	if err != nil || len(sugg) == 0 {
		return
	}
	fmt.Fprintln(w, "Embedding model unavailable; closest names by spelling:")
	for _, s := range sugg {
		fmt.Fprintf(w, "  - %s (code=%d, similarity=%.3f)\n", s.FundName, s.FundCode, s.Score)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
