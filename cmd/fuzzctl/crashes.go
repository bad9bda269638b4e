package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"fuzzctl/core/infodb"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCrashesCmd() *cobra.Command {
	var count int
	crashesCmd := &cobra.Command{
		Use:   "crashes",
		Short: "List saved crashes, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.Errorf("--count must be positive, got %d", count)
			}
			db, err := infodb.New(cfg.CrashesDir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tHITS\tSIZE\tCAUSE")
			for _, c := range db.Crashes(count) {
				fmt.Fprintf(w, "%016x\t%s\t%d\t%d\t%s\n", c.ID, c.Time.Format(time.RFC3339), c.Hits, c.Size, c.Cause)
			}
			return w.Flush()
		},
	}
	crashesCmd.Flags().IntVarP(&count, "count", "n", 20, "How many crashes to show")

	crashesCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Write crashing input to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := infodb.ParseID(args[0])
			if err != nil {
				return err
			}
			db, err := infodb.New(cfg.CrashesDir)
			if err != nil {
				return err
			}
			c, err := db.Get(id)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(c.Input)
			return err
		},
	})
	return crashesCmd
}
