package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
)

type searchOptions struct {
	method string
	limit  int
	format string
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the documents of a folder against a query",
		Long: `Index the document folder and print the best matches for a query.

Wrap the query in double quotes to match an exact phrase:
  docvista search '"machine learning"'
  docvista search neural networks --method bm25 --limit 5
  docvista search retrieval --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, global, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "m", "", "Ranking method: tfidf or bm25 (default from config)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runSearch(cmd *cobra.Command, global *globalOptions, query string, opts searchOptions) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	global.quietLogging(cmd)

	engine, err := loadEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	method := cfg.Search.DefaultMethod
	if opts.method != "" {
		method = opts.method
	}
	limit := cfg.Search.DefaultLimit
	if opts.limit > 0 {
		limit = min(opts.limit, cfg.Search.MaxResults)
	}
	res, err := engine.Search(cmd.Context(), executor.Request{
		Query:  query,
		Method: parser.ParseMethod(method),
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(out, res)
	}
	printResults(out, stylesFor(out), res)
	return nil
}

func printResults(w io.Writer, st styles, res *executor.SearchResult) {
	if len(res.Results) == 0 {
		fmt.Fprintf(w, "No documents match %q.\n", res.Query)
		return
	}
	fmt.Fprintf(w, "%s %s for %q (%s, %s mode)\n\n",
		humanize.Comma(int64(res.TotalHits)),
		pluralize(res.TotalHits, "match", "matches"),
		res.Query, res.Method, res.Mode,
	)
	for i, r := range res.Results {
		fmt.Fprintf(w, "%d. %s %s\n", i+1, st.Title.Render(r.Name), st.Score.Render(fmt.Sprintf("[id %d, score %.4f]", r.ID, r.Score)))
		if r.PhraseMatches > 0 {
			fmt.Fprintf(w, "   %s\n", st.Dim.Render(humanize.Comma(int64(r.PhraseMatches))+" phrase "+pluralize(r.PhraseMatches, "occurrence", "occurrences")))
		}
		fmt.Fprintf(w, "   %s\n\n", st.renderSnippet(r.Snippet))
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
