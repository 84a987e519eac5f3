package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Class names one labelled directory of cutouts. Its position in
// Config.Classes is the label value.
type Class struct {
	Name      string  `yaml:"name"`
	Dir       string  `yaml:"dir"`
	ClipSigma float64 `yaml:"clip_sigma"`
}

// Train holds the classifier knobs.
type Train struct {
	Steps        int     `yaml:"steps"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	LogEvery     int     `yaml:"log_every"`
	NumWorkers   int     `yaml:"num_workers"`
}

// Config captures the runtime knobs for a prepare/train run.
type Config struct {
	Classes       []Class `yaml:"classes"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	TargetSize    int     `yaml:"target_size"`
	TrainFraction float64 `yaml:"train_fraction"`
	MaxClipIters  int     `yaml:"max_clip_iters"`
	Seed          int64   `yaml:"seed"`
	RandomSeed    bool    `yaml:"random_seed"`
	Workers       int     `yaml:"workers"`
	OutDir        string  `yaml:"out_dir"`
	ShardSize     int     `yaml:"shard_size"`
	Ledger        string  `yaml:"ledger"`
	Train         Train   `yaml:"train"`
}

// Overrides captures CLI supplied values. Zero values leave the file value
// in place.
type Overrides struct {
	OutDir     string
	Ledger     string
	TargetSize int
	Seed       int64
	Workers    int
	Steps      int
	Epochs     int
	BatchSize  int
	LogEvery   int
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.OutDir != "" {
		c.OutDir = o.OutDir
	}
	if o.Ledger != "" {
		c.Ledger = o.Ledger
	}
	if o.TargetSize > 0 {
		c.TargetSize = o.TargetSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
		c.RandomSeed = false
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.Steps > 0 {
		c.Train.Steps = o.Steps
	}
	if o.Epochs > 0 {
		c.Train.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.Train.BatchSize = o.BatchSize
	}
	if o.LogEvery > 0 {
		c.Train.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.Classes) < 2 {
		return fmt.Errorf("at least 2 classes are required (got %d)", len(c.Classes))
	}
	seen := make(map[string]bool, len(c.Classes))
	for i, cls := range c.Classes {
		if cls.Name == "" {
			return fmt.Errorf("classes[%d]: name must be set", i)
		}
		if seen[cls.Name] {
			return fmt.Errorf("classes[%d]: duplicate name %q", i, cls.Name)
		}
		seen[cls.Name] = true
		if cls.Dir == "" {
			return fmt.Errorf("classes[%d]: dir must be set", i)
		}
		if !(cls.ClipSigma > 0) {
			return fmt.Errorf("classes[%d]: clip_sigma must be > 0 (got %g)", i, cls.ClipSigma)
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width and height must be > 0 (got %dx%d)", c.Width, c.Height)
	}
	if c.TargetSize <= 0 {
		return fmt.Errorf("target_size must be > 0 (got %d)", c.TargetSize)
	}
	if !(c.TrainFraction > 0 && c.TrainFraction < 1) {
		return fmt.Errorf("train_fraction must be in (0, 1) (got %g)", c.TrainFraction)
	}
	if c.Seed == 0 && !c.RandomSeed {
		return errors.New("seed must be set, or random_seed enabled for non-reproducible runs")
	}
	if c.Seed != 0 && c.RandomSeed {
		return errors.New("seed and random_seed are mutually exclusive")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.ShardSize <= 0 {
		c.ShardSize = 1000
	}
	if c.Train.BatchSize <= 0 {
		c.Train.BatchSize = 32
	}
	if c.Train.LearningRate <= 0 {
		c.Train.LearningRate = 0.05
	}
	if c.Train.LogEvery <= 0 {
		c.Train.LogEvery = 50
	}
	if c.Train.NumWorkers <= 0 {
		c.Train.NumWorkers = 1
	}
	if c.Train.Epochs <= 0 {
		c.Train.Epochs = 10
	}
	if c.Train.Steps <= 0 {
		c.Train.Steps = 1000
	}
	return nil
}

// ClassNames returns the class names in label order.
func (c *Config) ClassNames() []string {
	names := make([]string, len(c.Classes))
	for i, cls := range c.Classes {
		names[i] = cls.Name
	}
	return names
}
