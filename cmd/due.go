package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/spacedrep"
)

var dueCmd = &cobra.Command{
	Use:   "due [deck]",
	Short: "List words due for review today",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deck := ""
		if len(args) == 1 {
			deck = args[0]
		}

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		day := today()
		items, err := d.engine.GetDueItems(cmd.Context(), cfg.User, day)
		if err != nil {
			return fmt.Errorf("load due items: %w", err)
		}

		fmt.Printf("%-16s  %-24s  %-24s  %-10s  %-11s  %5s\n",
			"Deck", "Prompt", "Answer", "Due", "Status", "Acc")
		fmt.Println(strings.Repeat("─", 100))

		n := 0
		for _, it := range items {
			if deck != "" && it.DeckID != deck {
				continue
			}
			n++
			acc := "-"
			if it.Attempts() > 0 {
				acc = fmt.Sprintf("%.0f%%", it.Accuracy()*100)
			}
			when := it.DueDate.String()
			if spacedrep.Status(it.DueDate, it.Interval, day) == spacedrep.ReviewOverdue {
				when = fmt.Sprintf("%dd late", spacedrep.OverdueDays(it.DueDate, day))
			}
			fmt.Printf("%-16s  %-24s  %-24s  %-10s  %-11s  %5s\n",
				truncate(it.DeckID, 16), truncate(it.PromptText, 24), truncate(it.AnswerText, 24),
				when, it.Status.Glyph()+" "+it.Status.Label(), acc)
		}

		fmt.Printf("\n%d due\n", n)
		return nil
	},
}
