package trainer

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"cutout-forge/internal/dataset"
	"cutout-forge/internal/fitsimg"
	"cutout-forge/internal/metrics"
	"cutout-forge/internal/model"
)

// RunConfig captures the knobs for a shard-streaming training run.
type RunConfig struct {
	Shards     map[string][]string
	Steps      int
	BatchSize  int
	NumWorkers int
	LogEvery   int
	Seed       int64
	Logger     zerolog.Logger
}

// Run trains mdl for cfg.Steps steps on samples streamed from cfg.Shards and
// returns the metrics of the final logging window.
func Run(ctx context.Context, mdl model.Model, cfg RunConfig) (metrics.Snapshot, error) {
	if cfg.Steps <= 0 {
		return metrics.Snapshot{}, errors.New("trainer: steps must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return metrics.Snapshot{}, errors.New("trainer: batch size must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samplerCh, samplerErr, err := dataset.StartSampler(ctx, dataset.SamplerOptions{
		Roots:      cfg.Shards,
		Seed:       cfg.Seed,
		NumWorkers: cfg.NumWorkers,
	})
	if err != nil {
		return metrics.Snapshot{}, err
	}

	var window metrics.Window
	var last metrics.Snapshot
	for step := 1; step <= cfg.Steps; step++ {
		startData := time.Now()
		batch, err := nextBatch(ctx, samplerCh, samplerErr, cfg.BatchSize)
		if err != nil {
			return last, err
		}
		dataTime := time.Since(startData)

		startCompute := time.Now()
		loss := mdl.TrainStep(batch)
		computeTime := time.Since(startCompute)

		window.Record(batch.Len(), dataTime, computeTime, loss)

		if step%cfg.LogEvery == 0 || step == cfg.Steps {
			last = window.Snapshot()
			logSnapshot(cfg.Logger, step, last)
		}
	}
	return last, nil
}

func nextBatch(ctx context.Context, samples <-chan dataset.Sample, errs <-chan error, batchSize int) (model.Batch, error) {
	inputs := make([][]float64, 0, batchSize)
	labels := make([]int, 0, batchSize)
	for len(inputs) < batchSize {
		select {
		case <-ctx.Done():
			return model.Batch{}, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return model.Batch{}, err
			}
		case sample, ok := <-samples:
			if !ok {
				return model.Batch{}, errors.New("trainer: sampler closed")
			}
			inputs = append(inputs, Features(sample.Image))
			labels = append(labels, sample.Label)
		}
	}
	return model.Batch{Inputs: inputs, Labels: labels}, nil
}

// FitConfig captures the knobs for in-memory training.
type FitConfig struct {
	Epochs    int
	BatchSize int
	LogEvery  int
	Seed      int64
	Logger    zerolog.Logger
}

// Fit trains mdl for cfg.Epochs passes over ds, reshuffling row order each
// epoch with a source seeded from cfg.Seed.
func Fit(ctx context.Context, mdl model.Model, ds dataset.LabeledDataset, cfg FitConfig) (metrics.Snapshot, error) {
	if cfg.Epochs <= 0 {
		return metrics.Snapshot{}, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return metrics.Snapshot{}, errors.New("trainer: batch size must be > 0")
	}
	if ds.Len() == 0 {
		return metrics.Snapshot{}, errors.New("trainer: empty training set")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}

	features := make([][]float64, ds.Len())
	for i, img := range ds.Images {
		features[i] = Features(img)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var window metrics.Window
	var last metrics.Snapshot
	step := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		order := rng.Perm(ds.Len())
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return last, err
			}
			end := min(start+cfg.BatchSize, len(order))
			batch := model.Batch{
				Inputs: make([][]float64, 0, end-start),
				Labels: make([]int, 0, end-start),
			}
			for _, row := range order[start:end] {
				batch.Inputs = append(batch.Inputs, features[row])
				batch.Labels = append(batch.Labels, ds.Labels[row])
			}

			startCompute := time.Now()
			loss := mdl.TrainStep(batch)
			window.Record(batch.Len(), 0, time.Since(startCompute), loss)
			step++
			if step%cfg.LogEvery == 0 {
				last = window.Snapshot()
				logSnapshot(cfg.Logger, step, last)
			}
		}
		if window.Steps() > 0 {
			last = window.Snapshot()
		}
		cfg.Logger.Info().Int("epoch", epoch).Float64("loss", last.MeanLoss).Msg("epoch complete")
	}
	return last, nil
}

// Evaluate scores mdl on every row of ds.
func Evaluate(mdl model.Model, ds dataset.LabeledDataset, numClasses int) *metrics.Accuracy {
	acc := metrics.NewAccuracy(numClasses)
	for i, img := range ds.Images {
		acc.Add(mdl.Predict(Features(img)), ds.Labels[i])
	}
	return acc
}

// EvaluateShards streams each shard once and scores mdl on every sample.
func EvaluateShards(ctx context.Context, mdl model.Model, shards []string, numClasses int) (*metrics.Accuracy, error) {
	samples, errCh, err := dataset.StartSampler(ctx, dataset.SamplerOptions{
		Roots:  map[string][]string{"eval": shards},
		Epochs: 1,
	})
	if err != nil {
		return nil, err
	}
	acc := metrics.NewAccuracy(numClasses)
	for s := range samples {
		acc.Add(mdl.Predict(Features(s.Image)), s.Label)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return acc, nil
}

// Features flattens img row-major and rescales it to [0, 1] by its own
// minimum and maximum. A flat image maps to all zeros.
func Features(img fitsimg.Image) []float64 {
	out := make([]float64, len(img.Pix))
	if len(img.Pix) == 0 {
		return out
	}
	lo, hi := img.Pix[0], img.Pix[0]
	for _, v := range img.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range img.Pix {
		out[i] = (v - lo) / span
	}
	return out
}

func logSnapshot(l zerolog.Logger, step int, snap metrics.Snapshot) {
	l.Info().
		Int("step", step).
		Float64("images_per_sec", snap.ImagesPerSec).
		Float64("data_ms", snap.AvgDataMS).
		Float64("compute_ms", snap.AvgComputeMS).
		Float64("loss", snap.LastLoss).
		Msg("training progress")
}
