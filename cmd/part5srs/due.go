package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newDueCmd(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List questions due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if asOf != "" {
				var err error
				if at, err = time.ParseInLocation("2006-01-02", asOf, time.Local); err != nil {
					return fmt.Errorf("invalid --as-of date %q, want YYYY-MM-DD", asOf)
				}
			}

			due, err := a.db.GetDueRecords(cmd.Context(), at)
			if err != nil {
				return err
			}
			if len(due) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DUE\tREPS\tEASE\tINTERVAL\tQUESTION")
			for _, rec := range due {
				sentence := "(removed from corpus)"
				q, err := a.db.FindQuestion(cmd.Context(), rec.QuestionID)
				if err != nil {
					return err
				}
				if q != nil {
					sentence = truncate(q.Sentence, 60)
				}
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%dd\t%s\n",
					rec.NextReview.Local().Format("2006-01-02"), rec.RepetitionCount, rec.EaseFactor, rec.IntervalDays(), sentence)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "List what is due on this date (YYYY-MM-DD) instead of now")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
