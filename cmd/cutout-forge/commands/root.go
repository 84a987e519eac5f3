package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cutout-forge/internal/config"
	"cutout-forge/internal/dataset"
	"cutout-forge/internal/logging"
	"cutout-forge/internal/pipeline"
	"cutout-forge/internal/runlog"
)

var (
	logLevel   string
	logConsole bool
	logger     = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "cutout-forge",
	Short:         "cutout-forge prepares FIRST radio cutouts for classifier training.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(os.Stderr, logLevel, logConsole)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Human readable log lines instead of JSON.")
}

// ExecuteContext runs the CLI and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string, o config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func prepareOptions(cfg *config.Config) pipeline.Options {
	classes := make([]pipeline.ClassSpec, len(cfg.Classes))
	for i, c := range cfg.Classes {
		classes[i] = pipeline.ClassSpec{Name: c.Name, Dir: c.Dir, ClipSigma: c.ClipSigma}
	}
	rng := dataset.UnseededRand()
	if !cfg.RandomSeed {
		rng = dataset.SeededRand(cfg.Seed)
	}
	return pipeline.Options{
		Classes:       classes,
		Width:         cfg.Width,
		Height:        cfg.Height,
		TargetSize:    cfg.TargetSize,
		TrainFraction: cfg.TrainFraction,
		MaxClipIters:  cfg.MaxClipIters,
		Workers:       cfg.Workers,
		Rand:          rng,
		Logger:        logging.Component(logger, "prepare"),
	}
}

// ledgerRun converts a prepare result into its ledger row.
func ledgerRun(cfg *config.Config, res pipeline.Result) *runlog.Run {
	run := &runlog.Run{
		Seed:          cfg.Seed,
		Seeded:        !cfg.RandomSeed,
		Width:         cfg.Width,
		Height:        cfg.Height,
		TargetSize:    cfg.TargetSize,
		TrainFraction: cfg.TrainFraction,
		TrainRows:     res.Split.Train.Len(),
		TestRows:      res.Split.Test.Len(),
		OutDir:        cfg.OutDir,
	}
	for i, c := range res.Classes {
		run.Classes = append(run.Classes, runlog.Class{
			Label:     c.Label,
			Name:      c.Name,
			Dir:       cfg.Classes[i].Dir,
			ClipSigma: cfg.Classes[i].ClipSigma,
			Sources:   c.Sources,
			Rotations: c.Rotations,
			Augmented: c.Augmented,
		})
	}
	return run
}

func openLedger(path string) (*runlog.Store, error) {
	if path == "" {
		return nil, nil
	}
	store, err := runlog.Open(path)
	if err != nil {
		return nil, err
	}
	ledgerLog := logging.Component(logger, "runlog")
	ledgerLog.Debug().Str("path", path).Msg("opened ledger")
	return store, nil
}
