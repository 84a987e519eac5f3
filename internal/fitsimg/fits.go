package fitsimg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"
)

// ErrNotImage is returned when the primary HDU carries no image data.
var ErrNotImage = errors.New("fitsimg: primary HDU is not an image")

// Decode reads the primary HDU of a FITS stream into an Image.
// Any BITPIX is accepted and converted to float64. Axes past the second must
// be degenerate (length 1), which covers the frequency/Stokes axes radio
// surveys attach to cutouts.
func Decode(r io.Reader) (Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return Image{}, fmt.Errorf("fitsimg: open: %w", err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return Image{}, ErrNotImage
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return Image{}, ErrNotImage
	}

	axes := hdu.Header().Axes()
	if len(axes) < 2 {
		return Image{}, fmt.Errorf("%w: %d axes", ErrNotImage, len(axes))
	}
	for i, n := range axes[2:] {
		if n != 1 {
			return Image{}, fmt.Errorf("fitsimg: axis %d has length %d, want 1", i+3, n)
		}
	}
	width, height := axes[0], axes[1]
	if width <= 0 || height <= 0 {
		return Image{}, fmt.Errorf("%w: empty %dx%d grid", ErrNotImage, width, height)
	}

	pix := make([]float64, width*height)
	if err := hdu.Read(&pix); err != nil {
		return Image{}, fmt.Errorf("fitsimg: read pixels: %w", err)
	}
	if len(pix) != width*height {
		return Image{}, fmt.Errorf("fitsimg: read %d pixels, want %d", len(pix), width*height)
	}
	return Image{Width: width, Height: height, Pix: pix}, nil
}

// ReadFile decodes the FITS file at path.
func ReadFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes m as a single BITPIX -64 primary HDU.
func Encode(w io.Writer, m Image) error {
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("fitsimg: %d pixels for %dx%d image", len(m.Pix), m.Width, m.Height)
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("fitsimg: create: %w", err)
	}

	hdu := fitsio.NewImage(-64, []int{m.Width, m.Height})
	pix := m.Pix
	if err := hdu.Write(&pix); err != nil {
		hdu.Close()
		f.Close()
		return fmt.Errorf("fitsimg: write pixels: %w", err)
	}
	if err := f.Write(hdu); err != nil {
		hdu.Close()
		f.Close()
		return fmt.Errorf("fitsimg: write hdu: %w", err)
	}
	if err := hdu.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(m Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Encode(buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes m to path.
func WriteFile(path string, m Image) error {
	data, err := EncodeBytes(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
