package commands

import (
	"github.com/spf13/cobra"

	"cutout-forge/internal/config"
	"cutout-forge/internal/logging"
	"cutout-forge/internal/model"
	"cutout-forge/internal/pipeline"
	"cutout-forge/internal/trainer"
)

var runFlags struct {
	config string
	seed   int64
	epochs int
	ledger string
}

var runCmd = &cobra.Command{
	Use:   "run --config <file>",
	Short: "Prepares the split in memory, trains for the configured epochs and scores the test split.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runFlags.config, config.Overrides{
			Seed:   runFlags.seed,
			Epochs: runFlags.epochs,
			Ledger: runFlags.ledger,
		})
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		res, err := pipeline.Prepare(ctx, prepareOptions(cfg))
		if err != nil {
			return err
		}

		numClasses := res.Split.NumClasses()
		mdl := model.NewSoftmaxClassifier(numClasses, cfg.Width*cfg.Height, cfg.Train.LearningRate, cfg.Seed)
		snap, err := trainer.Fit(ctx, mdl, res.Split.Train, trainer.FitConfig{
			Epochs:    cfg.Train.Epochs,
			BatchSize: cfg.Train.BatchSize,
			LogEvery:  cfg.Train.LogEvery,
			Seed:      cfg.Seed,
			Logger:    logging.Component(logger, "trainer"),
		})
		if err != nil {
			return err
		}
		acc := trainer.Evaluate(mdl, res.Split.Test, numClasses)
		printAccuracy(cmd.OutOrStdout(), cfg.ClassNames(), acc)

		store, err := openLedger(cfg.Ledger)
		if err != nil || store == nil {
			return err
		}
		defer store.Close()
		run := ledgerRun(cfg, res)
		run.OutDir = ""
		if err := store.RecordPrepare(ctx, run); err != nil {
			return err
		}
		steps := cfg.Train.Epochs * ((res.Split.Train.Len() + cfg.Train.BatchSize - 1) / cfg.Train.BatchSize)
		return recordEvaluation(ctx, store, "", run.ID, steps, snap, acc)
	},
}

func init() {
	fl := runCmd.Flags()
	fl.StringVar(&runFlags.config, "config", "configs/example.yaml", "Path to YAML config.")
	fl.Int64Var(&runFlags.seed, "seed", 0, "Override the shuffle seed.")
	fl.IntVar(&runFlags.epochs, "epochs", 0, "Override training epochs.")
	fl.StringVar(&runFlags.ledger, "ledger", "", "Override the run ledger path.")
	rootCmd.AddCommand(runCmd)
}
