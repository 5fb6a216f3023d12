package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and clean up study sessions",
}

var sessionsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List sessions left in progress by an exited process",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		open, err := d.engine.Orphans(cmd.Context(), cfg.User)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(open) == 0 {
			fmt.Println("No open sessions.")
			return nil
		}

		fmt.Printf("%-36s  %-16s  %-19s  %7s\n", "ID", "Deck", "Started", "Answers")
		fmt.Println(strings.Repeat("─", 86))
		for _, s := range open {
			fmt.Printf("%-36s  %-16s  %-19s  %7d\n",
				s.SessionID, truncate(s.DeckID, 16),
				s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.TotalAnswers)
		}
		return nil
	},
}

var sessionsAbandonCmd = &cobra.Command{
	Use:   "abandon [id]",
	Short: "Abandon one session, or every open session older than --older-than",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		if len(args) == 1 {
			s, err := d.engine.AbandonSession(ctx, args[0])
			if err != nil {
				return fmt.Errorf("abandon %s: %w", args[0], err)
			}
			fmt.Printf("Abandoned %s after %d answers.\n", s.SessionID, s.TotalAnswers)
			return nil
		}

		n, err := d.engine.AbandonOrphans(ctx, cfg.User, olderThan)
		if err != nil {
			return fmt.Errorf("abandon sessions: %w", err)
		}
		fmt.Printf("Abandoned %d sessions.\n", n)
		return nil
	},
}

func init() {
	sessionsAbandonCmd.Flags().Duration("older-than", time.Hour, "Only abandon sessions started at least this long ago")

	sessionsCmd.AddCommand(sessionsOpenCmd)
	sessionsCmd.AddCommand(sessionsAbandonCmd)
}
