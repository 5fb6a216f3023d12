package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/app"
	"github.com/abhisek/lexiz/internal/ui/layout"
)

var studyCmd = &cobra.Command{
	Use:   "study [deck]",
	Short: "Open the study TUI, optionally straight into a deck",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deck := ""
		if len(args) == 1 {
			deck = args[0]
		}
		return runStudy(cmd, deck)
	},
}

// runStudy wires the core and launches the TUI.
func runStudy(cmd *cobra.Command, deckID string) error {
	d, err := openDeps(cmd, depsOpts{withHints: true})
	if err != nil {
		return err
	}
	defer d.Close()
	defer d.shutdown(cmd.Context())

	user := cfg.User
	status := func(ctx context.Context) (layout.Status, error) {
		day := today()
		due, err := d.items.Due(ctx, user, "", day)
		if err != nil {
			return layout.Status{}, err
		}
		streak, err := d.activity.Streak(ctx, user, day)
		if err != nil {
			return layout.Status{}, err
		}
		return layout.Status{Due: len(due), Streak: streak}, nil
	}

	log.Info("study started", "user", user, "deck", deckID)
	return app.Run(app.Options{
		Engine:   d.engine,
		Decks:    d.items,
		Status:   status,
		UserID:   user,
		Location: cfg.Study.Location,
		DeckID:   deckID,
		Log:      log,
	})
}
