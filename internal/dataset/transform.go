package dataset

import (
	"math"

	"cutout-forge/internal/fitsimg"
)

// Sample positions this close outside the canvas are pulled back onto the
// edge instead of reading as empty.
const edgeTolerance = 1e-9

// MirrorLR returns img flipped left to right.
func MirrorLR(img fitsimg.Image) fitsimg.Image {
	out := fitsimg.NewImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Width : (y+1)*img.Width]
		dst := out.Pix[y*img.Width : (y+1)*img.Width]
		for x := range row {
			dst[img.Width-1-x] = row[x]
		}
	}
	return out
}

// Rotate turns img counter-clockwise (as displayed, row 0 on top) by degrees
// about the canvas centre. The canvas keeps its size: content rotated off the
// canvas is dropped and uncovered corners read 0. Values are bilinearly
// interpolated.
func Rotate(img fitsimg.Image, degrees float64) fitsimg.Image {
	cos, sin := unitCircle(degrees)
	out := fitsimg.NewImage(img.Width, img.Height)
	cx := float64(img.Width-1) / 2
	cy := float64(img.Height-1) / 2
	for y := 0; y < img.Height; y++ {
		dy := float64(y) - cy
		for x := 0; x < img.Width; x++ {
			dx := float64(x) - cx
			sx := cx + cos*dx - sin*dy
			sy := cy + sin*dx + cos*dy
			out.Pix[y*img.Width+x] = bilinear(img, sx, sy)
		}
	}
	return out
}

// unitCircle returns exact cosine and sine for multiples of 90 degrees so
// quarter turns, including 0 and 360, move pixels without interpolation error.
func unitCircle(degrees float64) (cos, sin float64) {
	turn := math.Mod(degrees, 360)
	if turn < 0 {
		turn += 360
	}
	switch turn {
	case 0:
		return 1, 0
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	}
	rad := turn * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

func bilinear(img fitsimg.Image, sx, sy float64) float64 {
	maxX := float64(img.Width - 1)
	maxY := float64(img.Height - 1)
	if sx < -edgeTolerance || sy < -edgeTolerance || sx > maxX+edgeTolerance || sy > maxY+edgeTolerance {
		return 0
	}
	sx = math.Min(math.Max(sx, 0), maxX)
	sy = math.Min(math.Max(sy, 0), maxY)

	x0, y0 := int(sx), int(sy)
	fx, fy := sx-float64(x0), sy-float64(y0)
	x1, y1 := x0, y0
	if fx > 0 {
		x1 = x0 + 1
	}
	if fy > 0 {
		y1 = y0 + 1
	}

	top := img.At(x0, y0)
	if x1 != x0 {
		top = top*(1-fx) + img.At(x1, y0)*fx
	}
	if y1 == y0 {
		return top
	}
	bottom := img.At(x0, y1)
	if x1 != x0 {
		bottom = bottom*(1-fx) + img.At(x1, y1)*fx
	}
	return top*(1-fy) + bottom*fy
}
