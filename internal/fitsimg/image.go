package fitsimg

import "fmt"

// Image is a single-plane float64 intensity grid stored row-major.
// Width corresponds to FITS NAXIS1 and Height to NAXIS2.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage allocates a zeroed width x height image.
func NewImage(width, height int) Image {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("fitsimg: negative dimensions %dx%d", width, height))
	}
	return Image{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the value at column x, row y.
func (m Image) At(x, y int) float64 {
	return m.Pix[y*m.Width+x]
}

// Set stores v at column x, row y.
func (m Image) Set(x, y int, v float64) {
	m.Pix[y*m.Width+x] = v
}

// Clone returns a deep copy.
func (m Image) Clone() Image {
	out := Image{Width: m.Width, Height: m.Height, Pix: make([]float64, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// SameShape reports whether m has the given dimensions.
func (m Image) SameShape(width, height int) bool {
	return m.Width == width && m.Height == height
}

func (m Image) String() string {
	return fmt.Sprintf("Image(%dx%d)", m.Width, m.Height)
}
