package framesource

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
)

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, name := range names {
		img := image.NewGray(image.Rect(0, 0, 3, 2))
		img.SetGray(0, 0, color.Gray{Y: uint8(i + 1)})
		path := filepath.Join(dir, name)
		test.That(t, rimage.WriteImageToFile(path, img), test.ShouldBeNil)
		paths = append(paths, path)
	}
	return paths
}

func drain(t *testing.T, src *Source, n int) []datatypes.Frame {
	t.Helper()
	var frames []datatypes.Frame
	for i := 0; i < n; i++ {
		frame, ok, err := src.Next(context.Background())
		test.That(t, err, test.ShouldBeNil)
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestSourceInOrder(t *testing.T) {
	files := writeImages(t, "a.png", "b.qoi", "c.ppm")
	src, err := New(Config{Files: files}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer src.Close()
	test.That(t, src.Capacity(), test.ShouldEqual, datatypes.FrameCapacity(3, 2, datatypes.PixGrey))

	frames := drain(t, src, 10)
	test.That(t, frames, test.ShouldHaveLength, 3)
	test.That(t, frames[0].Pix[0], test.ShouldEqual, byte(1))
	test.That(t, frames[0].Format, test.ShouldEqual, datatypes.PixGrey)
	for i, frame := range frames {
		test.That(t, frame.SampleNumber, test.ShouldEqual, uint64(i))
	}
	// qoi and ppm decode to colour images and are converted back.
	test.That(t, frames[1].Format, test.ShouldEqual, datatypes.PixGrey)
	test.That(t, frames[1].Pix[0], test.ShouldEqual, byte(2))
	test.That(t, frames[2].Pix[0], test.ShouldEqual, byte(3))

	_, ok, err := src.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSourceLoop(t *testing.T) {
	files := writeImages(t, "a.png", "b.png")
	src, err := New(Config{Files: files, Loop: true}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer src.Close()

	frames := drain(t, src, 5)
	test.That(t, frames, test.ShouldHaveLength, 5)
	var firstPixels []byte
	for i, frame := range frames {
		test.That(t, frame.SampleNumber, test.ShouldEqual, uint64(i))
		firstPixels = append(firstPixels, frame.Pix[0])
	}
	test.That(t, firstPixels, test.ShouldResemble, []byte{1, 2, 1, 2, 1})
}

func TestSourcePacing(t *testing.T) {
	files := writeImages(t, "a.png")
	clk := clock.NewMock()
	src, err := New(Config{Files: files, FPS: 10, Loop: true}, clk, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := src.Next(ctx)
	test.That(t, err, test.ShouldBeError, context.DeadlineExceeded)
	test.That(t, ok, test.ShouldBeFalse)

	clk.Add(100 * time.Millisecond)
	frame, ok, err := src.Next(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, frame.SampleNumber, test.ShouldEqual, uint64(0))
}

func TestSourceErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := New(Config{}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "files")

	_, err = New(Config{Files: []string{"notes.txt"}}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not an image file")

	_, err = New(Config{Files: []string{filepath.Join(t.TempDir(), "missing.png")}}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(Config{Files: writeImages(t, "a.png"), FPS: -1}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	t.Run("larger frame than the first", func(t *testing.T) {
		files := writeImages(t, "a.png")
		big := filepath.Join(t.TempDir(), "big.png")
		test.That(t, rimage.WriteImageToFile(big, image.NewGray(image.Rect(0, 0, 30, 20))), test.ShouldBeNil)
		_, err := New(Config{Files: append(files, big)}, nil, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "the stream was sized at")
	})

	t.Run("missing later file", func(t *testing.T) {
		files := append(writeImages(t, "a.png"), filepath.Join(t.TempDir(), "gone.png"))
		_, err := New(Config{Files: files}, nil, logger)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("file replaced after start", func(t *testing.T) {
		files := writeImages(t, "a.png", "b.png")
		src, err := New(Config{Files: files}, nil, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, os.Remove(files[1]), test.ShouldBeNil)
		test.That(t, rimage.WriteImageToFile(files[1], image.NewGray(image.Rect(0, 0, 30, 20))), test.ShouldBeNil)
		_, ok, err := src.Next(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		_, _, err = src.Next(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "the stream was sized at")
	})
}
