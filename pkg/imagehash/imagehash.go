// Package imagehash computes 64-bit perceptual image hashes and compares them
// by Hamming distance.
//
// Two hashes are available. PHash keeps the low-frequency block of a 2-D DCT
// of a 32x32 luminance thumbnail and sets a bit per coefficient above the
// block median. AHash sets a bit per pixel of an 8x8 thumbnail above the mean.
// Both are stable under re-encoding, small resizes and uniform brightness shifts.
package imagehash

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"

	"golang.org/x/image/draw"
)

// Algorithm selects the hash function.
type Algorithm string

const (
	PHash Algorithm = "phash"
	AHash Algorithm = "ahash"
)

const (
	dctSize  = 32
	hashSide = 8
)

// Hash is a 64-bit perceptual hash. Bit 63 corresponds to the top-left cell.
type Hash uint64

// String renders the hash as 16 lowercase hex characters.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Parse decodes a 16-character hex hash.
func Parse(s string) (Hash, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: want 16 hex characters, got %d", ErrMalformed, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Hash(v), nil
}

// Compute hashes img with the given algorithm.
func Compute(img image.Image, alg Algorithm) (Hash, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrEmptyImage
	}
	switch alg {
	case PHash, "":
		return perceptual(img), nil
	case AHash:
		return average(img), nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", alg)
	}
}

func perceptual(img image.Image) Hash {
	pixels := luminance(img, dctSize)

	var coeffs [hashSide * hashSide]float64
	for v := 0; v < hashSide; v++ {
		for u := 0; u < hashSide; u++ {
			var sum float64
			for y := 0; y < dctSize; y++ {
				cy := cosTable[v][y]
				row := pixels[y*dctSize : (y+1)*dctSize]
				for x, p := range row {
					sum += p * cosTable[u][x] * cy
				}
			}
			coeffs[v*hashSide+u] = sum
		}
	}

	// DC dominates the block; leave it out of the median.
	ac := make([]float64, 0, len(coeffs)-1)
	ac = append(ac, coeffs[1:]...)
	median := medianOf(ac)

	return pack(coeffs[:], median)
}

func average(img image.Image) Hash {
	pixels := luminance(img, hashSide)

	var total float64
	for _, p := range pixels {
		total += p
	}
	return pack(pixels, total/float64(len(pixels)))
}

func pack(values []float64, pivot float64) Hash {
	var h Hash
	for i, v := range values {
		if v > pivot {
			h |= 1 << uint(len(values)-1-i)
		}
	}
	return h
}

// luminance scales img to side x side and returns row-major BT.601 luma values.
func luminance(img image.Image, side int) []float64 {
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float64, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			c := dst.RGBAAt(x, y)
			out[y*side+x] = luma(c)
		}
	}
	return out
}

func luma(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func medianOf(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

var cosTable = func() [hashSide][dctSize]float64 {
	var t [hashSide][dctSize]float64
	for u := 0; u < hashSide; u++ {
		for x := 0; x < dctSize; x++ {
			t[u][x] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / float64(2*dctSize))
		}
	}
	return t
}()
