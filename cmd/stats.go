package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/mastery"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deck progress, streak and recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		day := today()

		decks, err := d.items.Decks(ctx, cfg.User, day)
		if err != nil {
			return fmt.Errorf("load decks: %w", err)
		}
		if len(decks) == 0 {
			fmt.Println("No decks yet. Import one with: lexiz import <file>")
			return nil
		}

		fmt.Printf("%-20s  %6s  %6s  %8s  %8s  %8s\n",
			"Deck", "Words", "Due", "New", "Learning", "Mastered")
		fmt.Println(strings.Repeat("─", 68))
		var total, due int
		for _, dk := range decks {
			fmt.Printf("%-20s  %6d  %6d  %8d  %8d  %8d\n",
				truncate(dk.DeckID, 20), dk.Total, dk.Due,
				dk.ByStatus[mastery.StatusNotStarted],
				dk.ByStatus[mastery.StatusLearning],
				dk.ByStatus[mastery.StatusMastered])
			total += dk.Total
			due += dk.Due
		}
		fmt.Println(strings.Repeat("─", 68))
		fmt.Printf("%-20s  %6d  %6d\n", "TOTAL", total, due)

		streak, err := d.activity.Streak(ctx, cfg.User, day)
		if err != nil {
			return fmt.Errorf("load streak: %w", err)
		}
		week, err := d.activity.Range(ctx, cfg.User, day.AddDays(-6), day)
		if err != nil {
			return fmt.Errorf("load activity: %w", err)
		}
		var studied time.Duration
		var practiced int
		for _, a := range week {
			studied += time.Duration(a.TotalStudyTimeMs) * time.Millisecond
			practiced += a.ItemsPracticed
		}
		fmt.Printf("\nStreak: %d days   Last 7 days: %s studied, %d words practiced\n",
			streak, studied.Round(time.Second), practiced)

		sessions, err := d.sessions.Recent(ctx, cfg.User, recent)
		if err != nil {
			return fmt.Errorf("load sessions: %w", err)
		}
		if len(sessions) == 0 {
			return nil
		}
		fmt.Println()
		fmt.Printf("%-19s  %-16s  %-11s  %7s  %8s  %8s\n",
			"Started", "Deck", "Status", "Answers", "Accuracy", "Duration")
		fmt.Println(strings.Repeat("─", 80))
		for _, s := range sessions {
			fmt.Printf("%-19s  %-16s  %-11s  %7d  %7.0f%%  %8s\n",
				s.StartedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(s.DeckID, 16), s.Status, s.TotalAnswers, s.AccuracyPercent,
				(time.Duration(s.DurationMs) * time.Millisecond).Round(time.Second))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntP("recent", "n", 10, "Number of recent sessions to show")
}
