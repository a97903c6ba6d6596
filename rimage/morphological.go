package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// ErodeSquare replaces every pixel by the minimum of the size x size square anchored at its
// center. Pixels outside the image are ignored.
func ErodeSquare(img *image.Gray, size int) (*image.Gray, error) {
	return squareFilter(img, size, func(a, b uint8) uint8 { return min(a, b) })
}

// DilateSquare replaces every pixel by the maximum of the size x size square anchored at its
// center. Pixels outside the image are ignored.
func DilateSquare(img *image.Gray, size int) (*image.Gray, error) {
	return squareFilter(img, size, func(a, b uint8) uint8 { return max(a, b) })
}

// squareFilter applies a separable rank filter: first along rows, then along columns.
func squareFilter(img *image.Gray, size int, pick func(a, b uint8) uint8) (*image.Gray, error) {
	if size < 1 {
		return nil, errors.Errorf("kernel size must be positive, got %d", size)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	anchor := size / 2

	rows := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		dst := rows.Pix[y*rows.Stride:]
		for x := 0; x < w; x++ {
			lo, hi := max(x-anchor, 0), min(x-anchor+size-1, w-1)
			v := src[lo]
			for i := lo + 1; i <= hi; i++ {
				v = pick(v, src[i])
			}
			dst[x] = v
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		lo, hi := max(y-anchor, 0), min(y-anchor+size-1, h-1)
		dst := out.Pix[y*out.Stride:]
		copy(dst[:w], rows.Pix[lo*rows.Stride:lo*rows.Stride+w])
		for j := lo + 1; j <= hi; j++ {
			row := rows.Pix[j*rows.Stride:]
			for x := 0; x < w; x++ {
				dst[x] = pick(dst[x], row[x])
			}
		}
	}
	return out, nil
}

// InRange returns a mask that is 255 where lo <= pixel <= hi and 0 elsewhere.
func InRange(img *image.Gray, lo, hi int) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			if v := int(src[x]); v >= lo && v <= hi {
				dst[x] = 255
			}
		}
	}
	return out
}

// MinNonZero returns the darkest non-zero pixel of img, or 0 if every pixel is zero.
func MinNonZero(img *image.Gray) uint8 {
	bounds := img.Bounds()
	var darkest uint8
	for y := 0; y < bounds.Dy(); y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < bounds.Dx(); x++ {
			if v := row[x]; v != 0 && (darkest == 0 || v < darkest) {
				darkest = v
			}
		}
	}
	return darkest
}
