package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cutout-forge/internal/config"
	"cutout-forge/internal/logging"
	"cutout-forge/internal/metrics"
	"cutout-forge/internal/model"
	"cutout-forge/internal/pipeline"
	"cutout-forge/internal/runlog"
	"cutout-forge/internal/trainer"
)

var trainFlags struct {
	config    string
	out       string
	ledger    string
	runID     string
	steps     int
	batchSize int
	logEvery  int
}

var trainCmd = &cobra.Command{
	Use:   "train --config <file>",
	Short: "Trains the classifier on prepared shards and scores it on the test split.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(trainFlags.config, config.Overrides{
			OutDir:    trainFlags.out,
			Ledger:    trainFlags.ledger,
			Steps:     trainFlags.steps,
			BatchSize: trainFlags.batchSize,
			LogEvery:  trainFlags.logEvery,
		})
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		shards, err := pipeline.DiscoverSplit(cfg.OutDir)
		if err != nil {
			return err
		}
		numClasses := len(cfg.Classes)
		mdl := model.NewSoftmaxClassifier(numClasses, cfg.Width*cfg.Height, cfg.Train.LearningRate, cfg.Seed)

		snap, err := trainer.Run(ctx, mdl, trainer.RunConfig{
			Shards:     map[string][]string{"train": shards.Train},
			Steps:      cfg.Train.Steps,
			BatchSize:  cfg.Train.BatchSize,
			NumWorkers: cfg.Train.NumWorkers,
			LogEvery:   cfg.Train.LogEvery,
			Seed:       cfg.Seed,
			Logger:     logging.Component(logger, "trainer"),
		})
		if err != nil {
			return err
		}

		acc := metrics.NewAccuracy(numClasses)
		if len(shards.Test) > 0 {
			acc, err = trainer.EvaluateShards(ctx, mdl, shards.Test, numClasses)
			if err != nil {
				return err
			}
		}
		printAccuracy(cmd.OutOrStdout(), cfg.ClassNames(), acc)

		store, err := openLedger(cfg.Ledger)
		if err != nil || store == nil {
			return err
		}
		defer store.Close()
		return recordEvaluation(ctx, store, cfg.OutDir, trainFlags.runID, cfg.Train.Steps, snap, acc)
	},
}

func init() {
	fl := trainCmd.Flags()
	fl.StringVar(&trainFlags.config, "config", "configs/example.yaml", "Path to YAML config.")
	fl.StringVar(&trainFlags.out, "out", "", "Override the prepared shard directory.")
	fl.StringVar(&trainFlags.ledger, "ledger", "", "Override the run ledger path.")
	fl.StringVar(&trainFlags.runID, "run", "", "Ledger run to attach the evaluation to (default: latest run for out_dir).")
	fl.IntVar(&trainFlags.steps, "steps", 0, "Override training steps.")
	fl.IntVar(&trainFlags.batchSize, "batch-size", 0, "Override batch size.")
	fl.IntVar(&trainFlags.logEvery, "log-every", 0, "Log every N steps.")
	rootCmd.AddCommand(trainCmd)
}

func printAccuracy(w io.Writer, names []string, acc *metrics.Accuracy) {
	fmt.Fprintf(w, "accuracy %.4f (%d/%d)\n", acc.Value(), acc.Correct, acc.Total)
	for i, name := range names {
		fmt.Fprintf(w, "  %-16s %.4f (%d)\n", name, acc.ClassValue(i), acc.ClassTotal[i])
	}
}

// recordEvaluation attaches the result to runID, or to the newest run that
// wrote outDir when runID is empty.
func recordEvaluation(ctx context.Context, store *runlog.Store, outDir, runID string, steps int, snap metrics.Snapshot, acc *metrics.Accuracy) error {
	if runID == "" {
		runs, err := store.Runs(ctx, 0)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.OutDir == outDir {
				runID = r.ID
				break
			}
		}
		if runID == "" {
			logger.Warn().Str("out_dir", outDir).Msg("no ledger run for shard directory, evaluation not recorded")
			return nil
		}
	}
	return store.RecordEvaluation(ctx, &runlog.Evaluation{
		RunID:    runID,
		Steps:    steps,
		MeanLoss: snap.MeanLoss,
		Correct:  acc.Correct,
		Total:    acc.Total,
		Accuracy: acc.Value(),
	})
}
