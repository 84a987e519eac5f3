// Package pipeline wires the loader, augmenter and assembler into one
// prepare step and persists its output as shards.
//
// Every stage materialises its full output before the next starts, so peak
// memory grows with the sum of the per-class target sizes: one class's
// source and augmented images coexist while it is processed, and all
// augmented sets are held together during assembly.
package pipeline

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cutout-forge/internal/dataset"
	"cutout-forge/internal/logging"
)

// ClassSpec names one class directory. Its index in Options.Classes is its
// label.
type ClassSpec struct {
	Name      string
	Dir       string
	ClipSigma float64
}

// Options configures Prepare.
type Options struct {
	Classes       []ClassSpec
	Width         int
	Height        int
	TargetSize    int
	TrainFraction float64
	MaxClipIters  int
	// Workers bounds how many classes are loaded and augmented at once.
	Workers int
	// Rand drives the shuffle. Use dataset.SeededRand for reproducible runs.
	Rand   *rand.Rand
	Logger zerolog.Logger
}

// ClassReport describes what one class contributed.
type ClassReport struct {
	Name      string
	Label     int
	Sources   int
	Rotations int
	Augmented int
}

// Result is the prepared split plus per-class accounting.
type Result struct {
	Split   dataset.Split
	Classes []ClassReport
}

// Prepare loads and augments every class, then assembles the shuffled
// train/test split. Classes are processed concurrently and independently;
// the first failure cancels the rest and is returned without a partial
// result.
func Prepare(ctx context.Context, opts Options) (Result, error) {
	if err := validate(opts); err != nil {
		return Result{}, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	sets := make([]dataset.AugmentedSet, len(opts.Classes))
	reports := make([]ClassReport, len(opts.Classes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cls := range opts.Classes {
		i, cls := i, cls
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log := logging.Component(opts.Logger, "loader").With().Str("class", cls.Name).Logger()
			set, err := dataset.LoadClassImages(cls.Dir, opts.Width, opts.Height, cls.ClipSigma,
				dataset.WithMaxIters(opts.MaxClipIters),
				dataset.WithLogger(log),
			)
			if err != nil {
				return err
			}
			log.Info().Int("images", set.Len()).Str("dir", cls.Dir).Msg("loaded class")

			if err := gctx.Err(); err != nil {
				return err
			}
			aug, err := dataset.Augment(set, opts.TargetSize, opts.Width, opts.Height)
			if err != nil {
				return err
			}
			augLog := logging.Component(opts.Logger, "augment")
			augLog.Info().
				Str("class", cls.Name).
				Int("rotations", aug.Rotations).
				Int("images", aug.Len()).
				Int("target", opts.TargetSize).
				Msg("augmented class")

			sets[i] = aug
			reports[i] = ClassReport{
				Name:      cls.Name,
				Label:     i,
				Sources:   set.Len(),
				Rotations: aug.Rotations,
				Augmented: aug.Len(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	split, err := dataset.Assemble(sets, opts.TrainFraction, opts.Rand)
	if err != nil {
		return Result{}, err
	}
	asmLog := logging.Component(opts.Logger, "assemble")
	asmLog.Info().
		Ints("class_counts", split.ClassCounts).
		Int("train", split.Train.Len()).
		Int("test", split.Test.Len()).
		Msg("assembled split")

	return Result{Split: split, Classes: reports}, nil
}

// validate rejects options that would fail only after the expensive stages.
func validate(opts Options) error {
	if len(opts.Classes) < 2 {
		return &dataset.InvalidConfigError{Field: "classes", Reason: "need at least 2 classes"}
	}
	if !(opts.TrainFraction > 0 && opts.TrainFraction < 1) {
		return &dataset.InvalidConfigError{Field: "train_fraction", Reason: "must be strictly between 0 and 1"}
	}
	if opts.TargetSize < 1 {
		return &dataset.InvalidConfigError{Field: "target_size", Reason: "must be >= 1"}
	}
	if opts.Rand == nil {
		return &dataset.InvalidConfigError{Field: "rng", Reason: "a random source is required"}
	}
	return nil
}
