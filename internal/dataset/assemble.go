package dataset

import (
	"math"
	"math/rand"
	"time"

	"cutout-forge/internal/fitsimg"
)

// LabeledDataset pairs images with class indices row by row.
type LabeledDataset struct {
	Images []fitsimg.Image
	Labels []int
}

// Len returns the number of rows.
func (d LabeledDataset) Len() int { return len(d.Images) }

// Split is the train/test partition produced by Assemble. ClassCounts holds
// the number of rows each class contributed before shuffling; classes are
// not guaranteed to be balanced.
type Split struct {
	Train       LabeledDataset
	Test        LabeledDataset
	ClassCounts []int
}

// NumClasses returns the number of classes that fed the split.
func (s Split) NumClasses() int { return len(s.ClassCounts) }

// SeededRand returns a deterministic source for Assemble.
func SeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// UnseededRand returns a time-seeded source. Runs using it are not
// reproducible.
func UnseededRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Assemble concatenates the class sets in order, labels each row with the
// index of its set, applies one permutation drawn from rng to images and
// labels together, and cuts the result at round(total*trainFraction) rows.
// Halves round to even.
func Assemble(sets []AugmentedSet, trainFraction float64, rng *rand.Rand) (Split, error) {
	if len(sets) < 2 {
		return Split{}, invalidConfig("classes", "need at least 2 classes (got %d)", len(sets))
	}
	if !(trainFraction > 0 && trainFraction < 1) {
		return Split{}, invalidConfig("train_fraction", "must be strictly between 0 and 1 (got %g)", trainFraction)
	}
	if rng == nil {
		return Split{}, invalidConfig("rng", "a random source is required; use SeededRand or UnseededRand")
	}

	counts := make([]int, len(sets))
	total := 0
	for i, set := range sets {
		counts[i] = set.Len()
		total += counts[i]
	}

	images := make([]fitsimg.Image, 0, total)
	labels := make([]int, 0, total)
	for class, set := range sets {
		images = append(images, set.Images...)
		for range set.Images {
			labels = append(labels, class)
		}
	}

	perm := rng.Perm(total)
	shuffled := LabeledDataset{
		Images: make([]fitsimg.Image, total),
		Labels: make([]int, total),
	}
	for dst, src := range perm {
		shuffled.Images[dst] = images[src]
		shuffled.Labels[dst] = labels[src]
	}

	nTrain := int(math.RoundToEven(float64(total) * trainFraction))
	return Split{
		Train: LabeledDataset{
			Images: shuffled.Images[:nTrain],
			Labels: shuffled.Labels[:nTrain],
		},
		Test: LabeledDataset{
			Images: shuffled.Images[nTrain:],
			Labels: shuffled.Labels[nTrain:],
		},
		ClassCounts: counts,
	}, nil
}
