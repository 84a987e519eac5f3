package dataset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cutout-forge/internal/fitsimg"
)

// markedSet returns a set whose every image carries its class and row in
// the first two pixels.
func markedSet(class, count int) AugmentedSet {
	images := make([]fitsimg.Image, count)
	for i := range images {
		img := fitsimg.NewImage(2, 1)
		img.Pix[0] = float64(class)
		img.Pix[1] = float64(i)
		images[i] = img
	}
	return AugmentedSet{Source: "class", Rotations: 1, Images: images}
}

func TestAssembleScenarioTwoClasses(t *testing.T) {
	var sets []AugmentedSet
	for class, sources := range []int{3, 5} {
		images := make([]fitsimg.Image, sources)
		for i := range images {
			images[i] = constImage(3, 3, float64(class))
		}
		aug, err := Augment(classSet("cls", images...), 10, 3, 3)
		require.NoError(t, err)
		sets = append(sets, aug)
	}
	require.Equal(t, 9, sets[0].Len())
	require.Equal(t, 10, sets[1].Len())

	split, err := Assemble(sets, 0.8, SeededRand(1))
	require.NoError(t, err)
	require.Equal(t, 15, split.Train.Len())
	require.Equal(t, 4, split.Test.Len())
	require.Equal(t, []int{9, 10}, split.ClassCounts)
	require.Equal(t, 2, split.NumClasses())
}

func TestAssemblePreservesCorrespondence(t *testing.T) {
	sets := []AugmentedSet{markedSet(0, 7), markedSet(1, 4), markedSet(2, 9)}
	split, err := Assemble(sets, 0.6, SeededRand(99))
	require.NoError(t, err)

	seen := map[[2]float64]bool{}
	for _, part := range []LabeledDataset{split.Train, split.Test} {
		require.Len(t, part.Labels, part.Len())
		for i, img := range part.Images {
			label := part.Labels[i]
			require.GreaterOrEqual(t, label, 0)
			require.Less(t, label, len(sets))
			require.Equal(t, float64(label), img.Pix[0], "row %d label drifted from its image", i)
			key := [2]float64{img.Pix[0], img.Pix[1]}
			require.False(t, seen[key], "row %v duplicated", key)
			seen[key] = true
		}
	}
	require.Len(t, seen, 20)
	require.Equal(t, 12, split.Train.Len())
	require.Equal(t, 8, split.Test.Len())
}

func TestAssembleDeterministicForSeed(t *testing.T) {
	sets := []AugmentedSet{markedSet(0, 10), markedSet(1, 10)}
	first, err := Assemble(sets, 0.5, SeededRand(7))
	require.NoError(t, err)
	second, err := Assemble(sets, 0.5, SeededRand(7))
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same seed produced different splits (-first +second):\n%s", diff)
	}

	other, err := Assemble(sets, 0.5, SeededRand(8))
	require.NoError(t, err)
	assert.NotEqual(t, first.Train.Labels, other.Train.Labels)
}

func TestAssembleRoundsHalfToEven(t *testing.T) {
	sets := []AugmentedSet{markedSet(0, 2), markedSet(1, 3)}
	split, err := Assemble(sets, 0.5, SeededRand(1))
	require.NoError(t, err)
	require.Equal(t, 2, split.Train.Len(), "round(2.5) is 2")
	require.Equal(t, 3, split.Test.Len())

	sets = []AugmentedSet{markedSet(0, 3), markedSet(1, 4)}
	split, err = Assemble(sets, 0.5, SeededRand(1))
	require.NoError(t, err)
	require.Equal(t, 4, split.Train.Len(), "round(3.5) is 4")
}

func TestAssembleInvalidConfig(t *testing.T) {
	two := []AugmentedSet{markedSet(0, 2), markedSet(1, 2)}
	tests := []struct {
		name     string
		sets     []AugmentedSet
		fraction float64
		rng      bool
		field    string
	}{
		{"one class", two[:1], 0.5, true, "classes"},
		{"zero fraction", two, 0, true, "train_fraction"},
		{"unit fraction", two, 1, true, "train_fraction"},
		{"negative fraction", two, -0.2, true, "train_fraction"},
		{"nil rng", two, 0.5, false, "rng"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := SeededRand(1)
			if !tt.rng {
				rng = nil
			}
			_, err := Assemble(tt.sets, tt.fraction, rng)
			var cfgErr *InvalidConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestUnseededRandUsable(t *testing.T) {
	split, err := Assemble([]AugmentedSet{markedSet(0, 3), markedSet(1, 3)}, 0.5, UnseededRand())
	require.NoError(t, err)
	require.Equal(t, 6, split.Train.Len()+split.Test.Len())
}
