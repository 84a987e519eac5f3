package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsFlags struct {
	ledger string
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs --ledger <file>",
	Short: "Lists recorded prepare runs and their evaluations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(runsFlags.ledger)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("--ledger is required")
		}
		defer store.Close()

		ctx := cmd.Context()
		runs, err := store.Runs(ctx, runsFlags.limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tCREATED\tSEED\tTRAIN\tTEST\tOUT\tACCURACY")
		for _, r := range runs {
			seed := "random"
			if r.Seeded {
				seed = fmt.Sprint(r.Seed)
			}
			evs, err := store.Evaluations(ctx, r.ID)
			if err != nil {
				return err
			}
			acc := "-"
			if len(evs) > 0 {
				acc = fmt.Sprintf("%.4f", evs[len(evs)-1].Accuracy)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), seed, r.TrainRows, r.TestRows, r.OutDir, acc)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.ledger, "ledger", "", "Run ledger path.")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Show at most N runs (0 for all).")
	rootCmd.AddCommand(runsCmd)
}
