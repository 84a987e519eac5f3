package dataset

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"cutout-forge/internal/fitsimg"
)

// ClassImageSet holds the cleaned images of one class, in file-name order.
type ClassImageSet struct {
	Dir    string
	Names  []string
	Images []fitsimg.Image
	Stats  []ClipStats
}

// Len returns the number of images in the set.
func (s ClassImageSet) Len() int { return len(s.Images) }

type loadOptions struct {
	maxIters int
	logger   zerolog.Logger
}

// LoadOption tunes LoadClassImages.
type LoadOption func(*loadOptions)

// WithMaxIters caps the sigma-clipping iterations. n <= 0 iterates until
// stable.
func WithMaxIters(n int) LoadOption {
	return func(o *loadOptions) { o.maxIters = n }
}

// WithLogger routes per-file diagnostics to l.
func WithLogger(l zerolog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = l }
}

// LoadClassImages decodes every file in dir as a width x height FITS image,
// replaces NaN pixels with 0 and floors each image's background at
// median + clipSigma*std of its sigma-clipped pixel distribution.
//
// The first undecodable file yields a *DecodeError and the first image of the
// wrong size a *ShapeMismatchError; no partial set is returned in either case.
func LoadClassImages(dir string, width, height int, clipSigma float64, opts ...LoadOption) (ClassImageSet, error) {
	o := loadOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if width <= 0 || height <= 0 {
		return ClassImageSet{}, invalidConfig("shape", "width and height must be > 0 (got %dx%d)", width, height)
	}
	if !(clipSigma > 0) {
		return ClassImageSet{}, invalidConfig("clip_sigma", "must be > 0 (got %g)", clipSigma)
	}

	names, err := ListClassFiles(dir)
	if err != nil {
		return ClassImageSet{}, err
	}

	set := ClassImageSet{
		Dir:    dir,
		Names:  names,
		Images: make([]fitsimg.Image, 0, len(names)),
		Stats:  make([]ClipStats, 0, len(names)),
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		img, err := fitsimg.ReadFile(path)
		if err != nil {
			return ClassImageSet{}, &DecodeError{Path: path, Err: err}
		}
		if !img.SameShape(width, height) {
			return ClassImageSet{}, &ShapeMismatchError{
				Path:       path,
				WantWidth:  width,
				WantHeight: height,
				GotWidth:   img.Width,
				GotHeight:  img.Height,
			}
		}
		stats := ClipBackground(img.Pix, clipSigma, o.maxIters)
		o.logger.Debug().
			Str("file", name).
			Float64("median", stats.Median).
			Float64("std", stats.Std).
			Int("iterations", stats.Iterations).
			Msg("clipped background")
		set.Images = append(set.Images, img)
		set.Stats = append(set.Stats, stats)
	}
	return set, nil
}
