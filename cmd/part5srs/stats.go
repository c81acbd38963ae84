package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show review statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.db.Stats(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			questions, err := a.db.CountQuestions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Questions:  %d\n", questions)
			fmt.Fprintf(out, "Reviewed:   %d\n", stats.Records)
			fmt.Fprintf(out, "Due now:    %d\n", stats.Due)
			fmt.Fprintf(out, "Mature:     %d\n", stats.Mature)
			fmt.Fprintf(out, "Answers:    %d\n", stats.Reviews)
			fmt.Fprintf(out, "Accuracy:   %.0f%%\n", stats.Accuracy*100)
			return nil
		},
	}
}
