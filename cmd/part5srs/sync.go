package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Load questions from all sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.syncer().SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured. Add one with `part5srs source add <path/or/url.git>`.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tPATH\tFILES\tQUESTIONS\tNEW\tREMOVED\tERRORS")
			for _, r := range results {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
					r.SourceID, r.Path, r.Files, r.Parsed, r.Inserted, r.Orphaned, len(r.Errors))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, r := range results {
				for _, e := range r.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "source %d: %s\n", r.SourceID, e)
				}
			}
			return nil
		},
	}
}
