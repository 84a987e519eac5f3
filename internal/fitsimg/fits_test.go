package fitsimg

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePreservesLayout(t *testing.T) {
	img := NewImage(4, 3)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Set(x, y, float64(10*y+x))
		}
	}
	img.Set(2, 1, math.NaN())

	data, err := EncodeBytes(img)
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 4, got.Width)
	require.Equal(t, 3, got.Height)
	require.Equal(t, 23.0, got.At(3, 2))
	require.Equal(t, 10.0, got.At(0, 1))
	require.True(t, math.IsNaN(got.At(2, 1)))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("<html>no cutout here</html>")))
	require.Error(t, err)
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cutout.fits")
	img := NewImage(2, 2)
	copy(img.Pix, []float64{1, 2, 3, 4})
	require.NoError(t, WriteFile(path, img))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, img.Pix, got.Pix)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.fits"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCloneIsIndependent(t *testing.T) {
	img := NewImage(2, 1)
	img.Set(0, 0, 5)
	c := img.Clone()
	c.Set(0, 0, 7)
	require.Equal(t, 5.0, img.At(0, 0))
	require.True(t, c.SameShape(2, 1))
	require.False(t, c.SameShape(1, 2))
}
