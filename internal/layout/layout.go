// Package layout reduces a page raster to a coarse ink map so two pages can be compared
// by visual structure rather than by text.
package layout

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Fingerprint dimensions and the gray level at or below which a pixel counts as ink.
const (
	Width     = 100
	Height    = 150
	InkLevel  = 200
	cellCount = Width * Height
)

// Fingerprint is a Width x Height ink map in row-major order, 255 for ink and 0 for paper.
// A nil Fingerprint means no layout was computed.
type Fingerprint []uint8

// FromImage binarizes img and scales it down to the fingerprint grid.
// Empty images yield nil.
func FromImage(img image.Image) Fingerprint {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	bin := imaging.Grayscale(img)
	for i := 0; i < len(bin.Pix); i += 4 {
		v := uint8(0)
		if bin.Pix[i] <= InkLevel {
			v = 255
		}
		bin.Pix[i], bin.Pix[i+1], bin.Pix[i+2], bin.Pix[i+3] = v, v, v, 255
	}
	small := imaging.Resize(bin, Width, Height, imaging.Linear)

	fp := make(Fingerprint, 0, cellCount)
	for y := 0; y < Height; y++ {
		row := small.Pix[y*small.Stride:]
		for x := 0; x < Width; x++ {
			fp = append(fp, row[x*4])
		}
	}
	return fp
}

// Similarity is one minus the L2 distance between a and b, scaled so that opposite
// ink maps score 0 and identical ones score 1. Fingerprints of different sizes score 0.
func Similarity(a, b Fingerprint) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1 - math.Sqrt(sum)/(math.Sqrt(float64(len(a)))*255)
}
