package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cutout-forge/internal/config"
	"cutout-forge/internal/pipeline"
)

var prepareFlags struct {
	config     string
	out        string
	ledger     string
	seed       int64
	targetSize int
	workers    int
}

var prepareCmd = &cobra.Command{
	Use:   "prepare --config <file>",
	Short: "Loads, augments and splits the configured classes into train/test shards.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(prepareFlags.config, config.Overrides{
			OutDir:     prepareFlags.out,
			Ledger:     prepareFlags.ledger,
			Seed:       prepareFlags.seed,
			TargetSize: prepareFlags.targetSize,
			Workers:    prepareFlags.workers,
		})
		if err != nil {
			return err
		}
		if cfg.OutDir == "" {
			return fmt.Errorf("out_dir must be set to write shards")
		}

		res, err := pipeline.Prepare(cmd.Context(), prepareOptions(cfg))
		if err != nil {
			return err
		}
		shards, err := pipeline.WriteSplit(cfg.OutDir, res.Split, cfg.ShardSize)
		if err != nil {
			return err
		}
		logger.Info().
			Str("out_dir", cfg.OutDir).
			Int("train_shards", len(shards.Train)).
			Int("test_shards", len(shards.Test)).
			Msg("wrote shards")

		store, err := openLedger(cfg.Ledger)
		if err != nil {
			return err
		}
		if store == nil {
			return nil
		}
		defer store.Close()
		run := ledgerRun(cfg, res)
		if err := store.RecordPrepare(cmd.Context(), run); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), run.ID)
		return nil
	},
}

func init() {
	fl := prepareCmd.Flags()
	fl.StringVar(&prepareFlags.config, "config", "configs/example.yaml", "Path to YAML config.")
	fl.StringVar(&prepareFlags.out, "out", "", "Override out_dir.")
	fl.StringVar(&prepareFlags.ledger, "ledger", "", "Override the run ledger path.")
	fl.Int64Var(&prepareFlags.seed, "seed", 0, "Override the shuffle seed.")
	fl.IntVar(&prepareFlags.targetSize, "target-size", 0, "Override the per-class target size.")
	fl.IntVar(&prepareFlags.workers, "workers", 0, "Override how many classes are processed at once.")
	rootCmd.AddCommand(prepareCmd)
}
