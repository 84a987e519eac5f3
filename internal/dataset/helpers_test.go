package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"cutout-forge/internal/fitsimg"
)

func constImage(width, height int, v float64) fitsimg.Image {
	img := fitsimg.NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// rampImage has a unique value per pixel so geometric moves are traceable.
func rampImage(width, height int) fitsimg.Image {
	img := fitsimg.NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = float64(i + 1)
	}
	return img
}

func mustFITS(t *testing.T, path string, img fitsimg.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := fitsimg.WriteFile(path, img); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func classSet(dir string, images ...fitsimg.Image) ClassImageSet {
	names := make([]string, len(images))
	for i := range images {
		names[i] = filepath.Base(dir) + "-" + string(rune('a'+i)) + ".fits"
	}
	return ClassImageSet{Dir: dir, Names: names, Images: images}
}
