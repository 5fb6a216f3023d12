package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/vocab"
)

var hintCmd = &cobra.Command{
	Use:   "hint <deck> <prompt>",
	Short: "Generate a mnemonic for one word (needs an LLM provider)",
	Long: `Ask the configured LLM provider for a mnemonic, the same way a study
session does for words rated again or hard. Useful for checking hint
quality and provider setup. The request is recorded in the LLM event log.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deck, prompt := args[0], args[1]

		d, err := openDeps(cmd, depsOpts{withHints: true})
		if err != nil {
			return err
		}
		defer d.Close()
		if d.hints == nil {
			return errors.New("no LLM provider configured; set llm.provider or an API key")
		}

		it, err := d.items.Get(cmd.Context(), cfg.User, vocab.ItemID(deck, prompt))
		if err != nil {
			return fmt.Errorf("find %q in %s: %w", prompt, deck, err)
		}

		d.hints.Request(cmd.Context(), it)
		d.hints.Wait()

		hint, ok := d.hints.Lookup(it.ItemID)
		if !ok {
			return errors.New("no hint was generated; see the log for details")
		}
		fmt.Printf("%s → %s\n\n%s\n", it.PromptText, it.AnswerText, hint)
		return nil
	},
}
