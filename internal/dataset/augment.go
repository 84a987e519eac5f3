package dataset

import (
	"path/filepath"

	"cutout-forge/internal/fitsimg"
)

// AugmentedSet is the rotation-expanded form of one ClassImageSet.
// Images are ordered source-major: all angles for source 0, then source 1.
type AugmentedSet struct {
	Source    string
	Rotations int
	Angles    []float64
	Images    []fitsimg.Image
}

// Len returns the number of augmented images.
func (s AugmentedSet) Len() int { return len(s.Images) }

// Angles returns count evenly spaced angles covering [0, 360] with both ends
// included, so for count >= 2 the first and last angle describe the same
// orientation. A single angle is 0.
func Angles(count int) []float64 {
	if count <= 0 {
		return nil
	}
	out := make([]float64, count)
	if count == 1 {
		return out
	}
	step := 360 / float64(count-1)
	for j := range out {
		out[j] = float64(j) * step
	}
	out[count-1] = 360
	return out
}

// Augment expands set to targetSize/len(set) rotations per source image.
// Even-indexed angles rotate the left-right mirror of the source, odd ones
// rotate the source itself. The result holds exactly
// len(set) * (targetSize / len(set)) images, which falls short of targetSize
// when it is not a multiple of the source count.
func Augment(set ClassImageSet, targetSize, width, height int) (AugmentedSet, error) {
	n := set.Len()
	if n == 0 {
		return AugmentedSet{}, invalidConfig("source", "class %q has no images", set.Dir)
	}
	rotations := targetSize / n
	if rotations < 1 {
		return AugmentedSet{}, invalidConfig("target_size",
			"%d is smaller than the %d source images of %q", targetSize, n, set.Dir)
	}
	for i, img := range set.Images {
		if !img.SameShape(width, height) {
			return AugmentedSet{}, &ShapeMismatchError{
				Path:       sourceName(set, i),
				WantWidth:  width,
				WantHeight: height,
				GotWidth:   img.Width,
				GotHeight:  img.Height,
			}
		}
	}

	angles := Angles(rotations)
	out := AugmentedSet{
		Source:    set.Dir,
		Rotations: rotations,
		Angles:    angles,
		Images:    make([]fitsimg.Image, 0, n*rotations),
	}
	for _, img := range set.Images {
		mirrored := MirrorLR(img)
		for j, angle := range angles {
			if j%2 == 0 {
				out.Images = append(out.Images, Rotate(mirrored, angle))
			} else {
				out.Images = append(out.Images, Rotate(img, angle))
			}
		}
	}
	return out, nil
}

func sourceName(set ClassImageSet, i int) string {
	if i < len(set.Names) {
		return filepath.Join(set.Dir, set.Names[i])
	}
	return set.Dir
}
