package framefilter

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
)

func greyFrame(sample uint64, pix ...byte) *datatypes.Frame {
	frame := datatypes.NewFrame(len(pix), 1, datatypes.PixGrey)
	frame.SampleNumber = sample
	copy(frame.Pix, pix)
	return frame
}

func TestBuild(t *testing.T) {
	logger := logging.NewTestLogger(t)

	filter, err := Build(BackgroundSubtractKind, Config{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filter, test.ShouldHaveSameTypeAs, &BackgroundSubtractor{})

	_, err = Build(MaskKind, Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"mask" is required`)

	_, err = Build("blur", Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown frame filter")

	_, err = Build(BackgroundSubtractKind, Config{Background: filepath.Join(t.TempDir(), "missing.png")}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBackgroundSubtractFirstFrame(t *testing.T) {
	bs, err := NewBackgroundSubtractor(Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	first := greyFrame(0, 10, 20, 30)
	test.That(t, bs.Apply(first), test.ShouldBeNil)
	test.That(t, first.Pix, test.ShouldResemble, []byte{0, 0, 0})

	// Subtraction saturates at zero.
	second := greyFrame(1, 15, 5, 255)
	test.That(t, bs.Apply(second), test.ShouldBeNil)
	test.That(t, second.Pix, test.ShouldResemble, []byte{5, 0, 225})

	wrongSize := greyFrame(2, 1, 2)
	test.That(t, bs.Apply(wrongSize), test.ShouldNotBeNil)
}

func TestBackgroundSubtractConfiguredImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	bg := image.NewGray(image.Rect(0, 0, 2, 1))
	bg.SetGray(0, 0, color.Gray{Y: 40})
	bg.SetGray(1, 0, color.Gray{Y: 100})
	test.That(t, rimage.WriteImageToFile(path, bg), test.ShouldBeNil)

	bs, err := NewBackgroundSubtractor(Config{Background: path}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// A grey background applied to a colour frame is converted once.
	frame := datatypes.NewFrame(2, 1, datatypes.PixNRGBA)
	copy(frame.Pix, []byte{50, 50, 50, 255, 90, 200, 110, 255})
	test.That(t, bs.Apply(frame), test.ShouldBeNil)
	test.That(t, frame.Pix, test.ShouldResemble, []byte{10, 10, 10, 255, 0, 100, 10, 255})
	test.That(t, bs.background.Format, test.ShouldEqual, datatypes.PixNRGBA)
}

func TestMask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roi.png")
	roi := image.NewGray(image.Rect(0, 0, 2, 2))
	roi.SetGray(1, 0, color.Gray{Y: 255})
	roi.SetGray(0, 1, color.Gray{Y: 1})
	test.That(t, rimage.WriteImageToFile(path, roi), test.ShouldBeNil)

	filter, err := Build(MaskKind, Config{Mask: path}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	frame := datatypes.NewFrame(2, 2, datatypes.PixGrey)
	copy(frame.Pix, []byte{9, 9, 9, 9})
	test.That(t, filter.Apply(frame), test.ShouldBeNil)
	test.That(t, frame.Pix, test.ShouldResemble, []byte{0, 9, 9, 0})

	t.Run("resized to the frame", func(t *testing.T) {
		frame := datatypes.NewFrame(4, 4, datatypes.PixNRGBA)
		for i := range frame.Pix {
			frame.Pix[i] = 7
		}
		test.That(t, filter.Apply(frame), test.ShouldBeNil)
		img := frame.ToImage()
		// The top right quadrant is kept, the top left one cleared but still opaque.
		test.That(t, img.At(3, 0), test.ShouldResemble, color.NRGBA{7, 7, 7, 7})
		test.That(t, img.At(0, 0), test.ShouldResemble, color.NRGBA{0, 0, 0, 7})
		test.That(t, img.At(0, 3), test.ShouldResemble, color.NRGBA{7, 7, 7, 7})
		test.That(t, img.At(3, 3), test.ShouldResemble, color.NRGBA{0, 0, 0, 7})
	})
}
