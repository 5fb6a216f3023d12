package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/vocab"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a deck from a .csv or .xlsx file",
	Long: `Import vocabulary rows into a deck. Re-importing a file updates
existing words in place and keeps their review history.

By default column A holds the prompt, B the answer and C/D the optional
prompt and answer locales; the first row is a header.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ic := vocab.DefaultImportConfigFor(args[0], "")
		ic.DeckID, _ = cmd.Flags().GetString("deck")
		ic.SheetName, _ = cmd.Flags().GetString("sheet")
		ic.PromptColumn, _ = cmd.Flags().GetString("prompt-col")
		ic.AnswerColumn, _ = cmd.Flags().GetString("answer-col")
		ic.PromptLocaleColumn, _ = cmd.Flags().GetString("prompt-locale-col")
		ic.AnswerLocaleColumn, _ = cmd.Flags().GetString("answer-locale-col")
		ic.StartRow, _ = cmd.Flags().GetInt("start-row")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := vocab.NewImporter(d.items, cfg.Study.Location, log).Import(cmd.Context(), cfg.User, ic)
		if res != nil {
			fmt.Printf("Processed %d rows: %d new, %d updated, %d unchanged\n",
				res.Processed, res.Created, res.Updated, res.Unchanged)
			for _, e := range res.Errors {
				fmt.Println("  skipped", e)
			}
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	def := vocab.DefaultImportConfig()
	f := importCmd.Flags()
	f.String("deck", "", "Deck name (default: the file name)")
	f.String("sheet", "", "Worksheet for .xlsx files (default: the first)")
	f.String("prompt-col", def.PromptColumn, "Column holding the prompt")
	f.String("answer-col", def.AnswerColumn, "Column holding the answer")
	f.String("prompt-locale-col", def.PromptLocaleColumn, "Column holding the prompt locale (empty to skip)")
	f.String("answer-locale-col", def.AnswerLocaleColumn, "Column holding the answer locale (empty to skip)")
	f.Int("start-row", def.StartRow, "First data row, 1-based")
}
