package pipeline

import (
	"fmt"
	"path/filepath"

	"cutout-forge/internal/dataset"
)

const (
	trainPrefix = "train"
	testPrefix  = "test"
)

// Shards lists the files a split was written to.
type Shards struct {
	Train []string
	Test  []string
}

// WriteSplit stores split under dir as dir/train/train-NNNNNN.tar and
// dir/test/test-NNNNNN.tar.
func WriteSplit(dir string, split dataset.Split, shardSize int) (Shards, error) {
	train, err := dataset.WriteShards(filepath.Join(dir, trainPrefix), trainPrefix, split.Train, shardSize)
	if err != nil {
		return Shards{}, fmt.Errorf("write train shards: %w", err)
	}
	test, err := dataset.WriteShards(filepath.Join(dir, testPrefix), testPrefix, split.Test, shardSize)
	if err != nil {
		return Shards{}, fmt.Errorf("write test shards: %w", err)
	}
	return Shards{Train: train, Test: test}, nil
}

// DiscoverSplit finds the shards WriteSplit produced under dir.
func DiscoverSplit(dir string) (Shards, error) {
	train, err := dataset.DiscoverShards(filepath.Join(dir, trainPrefix))
	if err != nil {
		return Shards{}, err
	}
	test, err := dataset.DiscoverShards(filepath.Join(dir, testPrefix))
	if err != nil {
		return Shards{}, err
	}
	if len(train) == 0 {
		return Shards{}, fmt.Errorf("no train shards under %s", dir)
	}
	return Shards{Train: train, Test: test}, nil
}
