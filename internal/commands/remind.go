package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskmanager/internal/notify"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send reminders for tasks due within the next 24 hours",
	Long: `Scan once for assigned tasks whose deadline falls within the next 24 hours,
queue a reminder for each assignee, and deliver the queue before exiting.
Suitable for running from cron; repeated runs inside the window repeat
the reminders.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		// Workers run during the scan so the queue keeps moving; Close lets
		// them finish what is queued and return.
		workers := make(chan error, 1)
		go func() { workers <- a.dispatcher.Run(ctx) }()

		scanner := notify.NewScanner(a.store, a.dispatcher, time.Now, a.logger)
		queued, scanErr := scanner.Scan(ctx)
		a.dispatcher.Close()
		if err := <-workers; err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "queued %d reminders, sent %d\n", queued, a.dispatcher.Sent())
		if scanErr != nil {
			return scanErr
		}
		if left := a.dispatcher.Pending(); left > 0 {
			return fmt.Errorf("%d reminders were not delivered before the timeout", left)
		}
		return nil
	},
}

func init() {
	remindCmd.Flags().Duration("timeout", 5*time.Minute, "maximum time to spend scanning and sending")
}
