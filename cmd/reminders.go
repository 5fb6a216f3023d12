package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/reminders"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Deliver practice reminders queued after hard ratings",
	Long: `Run the reminder dispatcher until interrupted. Reminders are only
delivered inside the configured notification hours. With --once, deliver
what is due now and exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		disp := reminders.NewDispatcher(d.reminders, nil, reminders.DispatcherConfig{
			Interval:  cfg.Reminders.Interval,
			StartHour: cfg.Reminders.StartHour,
			EndHour:   cfg.Reminders.EndHour,
			Location:  cfg.Study.Location,
		}, log)

		if once {
			n, err := disp.DispatchDue(cmd.Context())
			if err != nil {
				return fmt.Errorf("dispatch reminders: %w", err)
			}
			fmt.Printf("Delivered %d reminders.\n", n)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := disp.Start(ctx); err != nil {
			return err
		}
		defer disp.Stop()

		<-ctx.Done()
		log.Info("shutting down reminder dispatcher")
		return nil
	},
}

func init() {
	remindersCmd.Flags().Bool("once", false, "Deliver due reminders once and exit")
}
