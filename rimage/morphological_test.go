package rimage

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func grayFromRows(rows ...[]uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		copy(img.Pix[y*img.Stride:], row)
	}
	return img
}

func TestErodeDilateSquare(t *testing.T) {
	img := grayFromRows(
		[]uint8{0, 0, 0, 0, 0},
		[]uint8{0, 9, 9, 9, 0},
		[]uint8{0, 9, 9, 9, 0},
		[]uint8{0, 9, 9, 9, 0},
		[]uint8{0, 0, 0, 0, 0},
	)

	eroded, err := ErodeSquare(img, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, eroded.Pix, test.ShouldResemble, grayFromRows(
		[]uint8{0, 0, 0, 0, 0},
		[]uint8{0, 0, 0, 0, 0},
		[]uint8{0, 0, 9, 0, 0},
		[]uint8{0, 0, 0, 0, 0},
		[]uint8{0, 0, 0, 0, 0},
	).Pix)

	dilated, err := DilateSquare(eroded, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dilated.Pix, test.ShouldResemble, img.Pix)

	// A 1x1 kernel is the identity.
	same, err := ErodeSquare(img, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same.Pix, test.ShouldResemble, img.Pix)

	_, err = DilateSquare(img, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEvenKernelAnchor(t *testing.T) {
	img := grayFromRows([]uint8{0, 0, 7, 0})
	dilated, err := DilateSquare(img, 2)
	test.That(t, err, test.ShouldBeNil)
	// The 2-wide window of pixel x covers x-1 and x.
	test.That(t, dilated.Pix, test.ShouldResemble, []uint8{0, 0, 7, 7})
}

func TestInRangeAndMinNonZero(t *testing.T) {
	img := grayFromRows([]uint8{0, 10, 100, 200, 255})
	test.That(t, InRange(img, 10, 200).Pix, test.ShouldResemble, []uint8{0, 255, 255, 255, 0})
	test.That(t, InRange(img, 0, 256).Pix, test.ShouldResemble, []uint8{255, 255, 255, 255, 255})
	test.That(t, MinNonZero(img), test.ShouldEqual, uint8(10))
	test.That(t, MinNonZero(image.NewGray(image.Rect(0, 0, 3, 3))), test.ShouldEqual, uint8(0))
}

func TestConnectedComponents(t *testing.T) {
	mask := grayFromRows(
		[]uint8{1, 1, 0, 0, 0, 1},
		[]uint8{1, 1, 0, 1, 0, 0},
		[]uint8{0, 0, 0, 1, 0, 0},
		[]uint8{0, 0, 1, 0, 0, 0},
	)
	comps := ConnectedComponents(mask)
	test.That(t, comps, test.ShouldHaveLength, 4)

	test.That(t, comps[0].Area, test.ShouldEqual, 4)
	test.That(t, comps[0].Centroid, test.ShouldResemble, r2.Point{X: 0.5, Y: 0.5})
	test.That(t, comps[0].Bounds, test.ShouldResemble, image.Rect(0, 0, 2, 2))

	test.That(t, comps[1].Area, test.ShouldEqual, 1)
	test.That(t, comps[1].Centroid, test.ShouldResemble, r2.Point{X: 5, Y: 0})

	// Diagonal neighbours are separate regions.
	test.That(t, comps[2].Area, test.ShouldEqual, 2)
	test.That(t, comps[2].Centroid, test.ShouldResemble, r2.Point{X: 3, Y: 1.5})
	test.That(t, comps[3].Area, test.ShouldEqual, 1)

	test.That(t, ConnectedComponents(image.NewGray(image.Rect(0, 0, 4, 4))), test.ShouldBeEmpty)
}
