package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type documentRow struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   uint64 `json:"size_bytes"`
	Tokens int    `json:"tokens"`
}

func newDocumentsCmd(global *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List the indexed documents of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			global.quietLogging(cmd)

			engine, err := loadEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			snap := engine.Current()
			rows := make([]documentRow, 0, snap.Len())
			for _, d := range snap.Corpus.Docs() {
				rows = append(rows, documentRow{
					ID:     d.ID,
					Name:   d.Name,
					Path:   d.Path,
					Size:   uint64(len(d.Text)),
					Tokens: len(d.Tokens),
				})
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No documents indexed from %s.\n", cfg.Documents.Dir)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTEXT\tTOKENS")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, humanize.Bytes(r.Size), humanize.Comma(int64(r.Tokens)))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			stats := engine.Stats()
			fmt.Fprintf(out, "\n%s %s, %s tokens, %s BM25 terms\n",
				humanize.Comma(int64(stats.Documents)),
				pluralize(stats.Documents, "document", "documents"),
				humanize.Comma(int64(stats.TotalTokens)),
				humanize.Comma(int64(stats.BM25Vocabulary)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")

	return cmd
}
