package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
classes:
  - name: agn
    dir: data/agn
    clip_sigma: 3
  - name: point_source
    dir: data/stars
    clip_sigma: 1
width: 83
height: 83
target_size: 10000
train_fraction: 0.8
seed: 42
out_dir: out/prepared
train:
  steps: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, []string{"agn", "point_source"}, cfg.ClassNames())
	require.Equal(t, 3.0, cfg.Classes[0].ClipSigma)
	require.Equal(t, 83, cfg.Width)
	require.Equal(t, 0.8, cfg.TrainFraction)
	require.Equal(t, int64(42), cfg.Seed)
	require.Equal(t, 500, cfg.Train.Steps)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 1000, cfg.ShardSize)
	require.Equal(t, 32, cfg.Train.BatchSize)
	require.Equal(t, 0.05, cfg.Train.LearningRate)
	require.Equal(t, 50, cfg.Train.LogEvery)
	require.Equal(t, 10, cfg.Train.Epochs)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, sample+"bogus: 1\n"))
	require.ErrorContains(t, err, "bogus")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"one class", func(c *Config) { c.Classes = c.Classes[:1] }, "at least 2 classes"},
		{"duplicate class", func(c *Config) { c.Classes[1].Name = "agn" }, "duplicate"},
		{"missing dir", func(c *Config) { c.Classes[0].Dir = "" }, "dir must be set"},
		{"zero sigma", func(c *Config) { c.Classes[1].ClipSigma = 0 }, "clip_sigma"},
		{"bad shape", func(c *Config) { c.Height = 0 }, "width and height"},
		{"no target", func(c *Config) { c.TargetSize = 0 }, "target_size"},
		{"fraction one", func(c *Config) { c.TrainFraction = 1 }, "train_fraction"},
		{"no seed", func(c *Config) { c.Seed = 0 }, "random_seed"},
		{"both seeds", func(c *Config) { c.RandomSeed = true }, "mutually exclusive"},
		{"random ok", func(c *Config) { c.Seed = 0; c.RandomSeed = true }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(strings.NewReader(sample))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	cfg.RandomSeed = true

	cfg.ApplyOverrides(Overrides{OutDir: "elsewhere", Seed: 7, Steps: 9, BatchSize: 4, TargetSize: 20})
	require.Equal(t, "elsewhere", cfg.OutDir)
	require.Equal(t, int64(7), cfg.Seed)
	require.False(t, cfg.RandomSeed, "an explicit seed switches off random seeding")
	require.Equal(t, 9, cfg.Train.Steps)
	require.Equal(t, 4, cfg.Train.BatchSize)
	require.Equal(t, 20, cfg.TargetSize)

	cfg.ApplyOverrides(Overrides{})
	require.Equal(t, "elsewhere", cfg.OutDir)
	require.Equal(t, 83, cfg.Width)
}
