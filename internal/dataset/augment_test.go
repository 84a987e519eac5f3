package dataset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"cutout-forge/internal/fitsimg"
)

func TestAnglesClosedInterval(t *testing.T) {
	tests := []struct {
		count int
		want  []float64
	}{
		{0, nil},
		{1, []float64{0}},
		{2, []float64{0, 360}},
		{3, []float64{0, 180, 360}},
		{5, []float64{0, 90, 180, 270, 360}},
	}
	for _, tt := range tests {
		got := Angles(tt.count)
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("Angles(%d) mismatch (-want +got):\n%s", tt.count, diff)
		}
	}
}

func TestAugmentCounts(t *testing.T) {
	tests := []struct {
		name       string
		sources    int
		target     int
		wantRots   int
		wantImages int
	}{
		{"three into ten", 3, 10, 3, 9},
		{"five into ten", 5, 10, 2, 10},
		{"exact", 4, 4, 1, 4},
		{"one source", 1, 7, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := make([]fitsimg.Image, tt.sources)
			for i := range images {
				images[i] = rampImage(4, 4)
			}
			out, err := Augment(classSet("cls", images...), tt.target, 4, 4)
			require.NoError(t, err)
			require.Equal(t, tt.wantRots, out.Rotations)
			require.Equal(t, tt.wantImages, out.Len())
			require.Equal(t, tt.sources*(tt.target/tt.sources), out.Len())
			for _, img := range out.Images {
				require.True(t, img.SameShape(4, 4))
			}
		})
	}
}

func TestAugmentTargetBelowSourceCount(t *testing.T) {
	images := make([]fitsimg.Image, 5)
	for i := range images {
		images[i] = rampImage(3, 3)
	}
	_, err := Augment(classSet("cls", images...), 2, 3, 3)
	require.ErrorIs(t, err, ErrInvalidConfig)

	var cfgErr *InvalidConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "target_size", cfgErr.Field)
}

func TestAugmentEmptySet(t *testing.T) {
	_, err := Augment(ClassImageSet{Dir: "empty"}, 10, 3, 3)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAugmentShapeMismatch(t *testing.T) {
	_, err := Augment(classSet("cls", rampImage(3, 3), rampImage(3, 4)), 4, 3, 3)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAugmentMirrorsEvenAnglesAndKeepsOrder(t *testing.T) {
	a := rampImage(3, 3)
	b := constImage(3, 3, 50)
	b.Set(0, 0, 99)

	// Two rotations per image: angles 0 and 360, the duplicated endpoint.
	out, err := Augment(classSet("cls", a, b), 4, 3, 3)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 360}, out.Angles)
	require.Equal(t, 4, out.Len())

	require.Equal(t, MirrorLR(a).Pix, out.Images[0].Pix, "index 0 mirrors")
	require.Equal(t, a.Pix, out.Images[1].Pix, "index 1 does not mirror")
	require.Equal(t, MirrorLR(b).Pix, out.Images[2].Pix, "source-major order")
	require.Equal(t, b.Pix, out.Images[3].Pix)
}

func TestAugmentDoesNotMutateSource(t *testing.T) {
	a := rampImage(4, 4)
	before := a.Clone()
	_, err := Augment(classSet("cls", a), 5, 4, 4)
	require.NoError(t, err)
	require.Equal(t, before.Pix, a.Pix)
}
