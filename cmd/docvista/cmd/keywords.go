package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newKeywordsCmd(global *globalOptions) *cobra.Command {
	var (
		count  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "keywords <id>",
		Short: "Show the highest-weighted terms of a document",
		Long: `Print the top TF-IDF keywords of one document. Document IDs are the
ones shown by 'docvista documents' for the same folder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("document id must be an integer: %q", args[0])
			}
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			global.quietLogging(cmd)
			if count <= 0 {
				count = cfg.Search.KeywordCount
			}

			engine, err := loadEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			doc, ok := engine.Document(id)
			if !ok {
				return fmt.Errorf("no document with id %d", id)
			}
			keywords := engine.TopKeywords(id, count)

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeJSON(out, map[string]any{"id": id, "name": doc.Name, "keywords": keywords})
			}
			st := stylesFor(out)
			fmt.Fprintln(out, st.Title.Render(doc.Name))
			for _, k := range keywords {
				fmt.Fprintf(out, "  %-24s %s\n", k.Term, st.Score.Render(fmt.Sprintf("%.4f", k.Weight)))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of keywords (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")

	return cmd
}
