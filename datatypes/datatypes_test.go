package datatypes

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestPositionCodec(t *testing.T) {
	codec := PositionCodec{}
	test.That(t, codec.Tag(), test.ShouldEqual, LayoutPosition2D)
	test.That(t, codec.FixedSize(), test.ShouldEqual, Position2DSize)

	pos := Position2D{
		SampleNumber:  42,
		Position:      r2.Point{X: 1.5, Y: -2.25},
		PositionValid: true,
		Heading:       r2.Point{X: 0, Y: 1},
		HeadingValid:  true,
	}
	buf := make([]byte, Position2DSize)
	test.That(t, codec.Encode(buf, pos), test.ShouldBeNil)
	decoded, err := codec.Decode(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, pos)

	// Stale bytes from a previous, larger sample never leak into the flags.
	for i := range buf {
		buf[i] = 0xff
	}
	test.That(t, codec.Encode(buf, Position2D{}), test.ShouldBeNil)
	decoded, err = codec.Decode(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, Position2D{})

	err = codec.Encode(make([]byte, 10), pos)
	test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)
	_, err = codec.Decode(make([]byte, 10))
	test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)
}

func TestFrameCodec(t *testing.T) {
	codec := FrameCodec{}
	test.That(t, codec.Tag(), test.ShouldEqual, LayoutFrame)
	test.That(t, codec.FixedSize(), test.ShouldEqual, 0)

	frame := NewFrame(3, 2, PixNRGBA)
	frame.SampleNumber = 7
	for i := range frame.Pix {
		frame.Pix[i] = byte(i)
	}
	test.That(t, codec.Size(*frame), test.ShouldEqual, FrameHeaderSize+3*2*4)

	buf := make([]byte, FrameCapacity(3, 2, PixNRGBA))
	test.That(t, codec.Encode(buf, *frame), test.ShouldBeNil)
	decoded, err := codec.Decode(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, *frame)

	// The decoded frame owns its pixels.
	buf[FrameHeaderSize] = 0xaa
	test.That(t, decoded.Pix[0], test.ShouldEqual, byte(0))

	t.Run("padded stride is packed", func(t *testing.T) {
		padded := Frame{Width: 2, Height: 2, Stride: 4, Format: PixGrey, Pix: []byte{1, 2, 9, 9, 3, 4, 9, 9}}
		out := make([]byte, codec.Size(padded))
		test.That(t, codec.Encode(out, padded), test.ShouldBeNil)
		got, err := codec.Decode(out)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Stride, test.ShouldEqual, 2)
		test.That(t, got.Pix, test.ShouldResemble, []byte{1, 2, 3, 4})
	})

	t.Run("too small", func(t *testing.T) {
		err := codec.Encode(make([]byte, FrameHeaderSize), *frame)
		test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)
		_, err = codec.Decode(buf[:FrameHeaderSize+4])
		test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)
	})

	t.Run("corrupt header", func(t *testing.T) {
		header := func(width, height, stride uint32, format PixelFormat) []byte {
			src := make([]byte, FrameHeaderSize+16)
			binary.LittleEndian.PutUint32(src[frameOffWidth:], width)
			binary.LittleEndian.PutUint32(src[frameOffHeight:], height)
			binary.LittleEndian.PutUint32(src[frameOffStride:], stride)
			src[frameOffFormat] = byte(format)
			return src
		}

		_, err := codec.Decode(header(math.MaxUint32, math.MaxUint32, math.MaxUint32, PixGrey))
		test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)
		_, err = codec.Decode(header(math.MaxUint32, math.MaxUint32, math.MaxUint32, PixNRGBA))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "corrupt frame header")
		_, err = codec.Decode(header(2, 2, 2, PixelFormat(0xff)))
		test.That(t, err.Error(), test.ShouldContainSubstring, "corrupt frame header")
		_, err = codec.Decode(header(4, 1, 2, PixGrey))
		test.That(t, err.Error(), test.ShouldContainSubstring, "corrupt frame header")
		_, err = codec.Decode(header(1, 1<<31, 1<<31, PixGrey))
		test.That(t, errors.Is(err, ErrShortBuffer), test.ShouldBeTrue)

		got, err := codec.Decode(header(4, 4, 4, PixGrey))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Pix, test.ShouldHaveLength, 16)
	})

	t.Run("bad geometry", func(t *testing.T) {
		bad := Frame{Width: 4, Height: 4, Stride: 4, Format: PixNRGBA, Pix: make([]byte, 64)}
		err := codec.Encode(make([]byte, 1024), bad)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "stride")

		unknown := Frame{Width: 1, Height: 1, Stride: 1, Pix: []byte{0}}
		err = codec.Encode(make([]byte, 1024), unknown)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestFrameImageConversion(t *testing.T) {
	grey := image.NewGray(image.Rect(0, 0, 4, 3))
	grey.SetGray(1, 2, color.Gray{Y: 200})
	frame := FrameFromImage(grey)
	test.That(t, frame.Format, test.ShouldEqual, PixGrey)
	test.That(t, frame.Width, test.ShouldEqual, 4)
	test.That(t, frame.Height, test.ShouldEqual, 3)
	test.That(t, frame.ToImage().At(1, 2), test.ShouldResemble, color.Gray{Y: 200})

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.Set(1, 1, color.RGBA{R: 255, A: 255})
	frame = FrameFromImage(rgba)
	test.That(t, frame.Format, test.ShouldEqual, PixNRGBA)
	test.That(t, frame.ToImage().At(1, 1), test.ShouldResemble, color.NRGBA{R: 255, A: 255})

	greyed := frame.Grey()
	test.That(t, greyed.Format, test.ShouldEqual, PixGrey)
	test.That(t, greyed.Pix[0], test.ShouldEqual, byte(0))
	test.That(t, greyed.Pix[3], test.ShouldBeGreaterThan, byte(0))

	clone := frame.Clone()
	clone.Pix[0] = 1
	test.That(t, frame.Pix[0], test.ShouldEqual, byte(0))
	test.That(t, clone.SameGeometry(frame), test.ShouldBeTrue)
}

func TestFrameConvert(t *testing.T) {
	grey := NewFrame(2, 1, PixGrey)
	grey.SampleNumber = 3
	grey.Pix[1] = 80

	colour, err := grey.ConvertTo(PixNRGBA)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colour.Format, test.ShouldEqual, PixNRGBA)
	test.That(t, colour.SampleNumber, test.ShouldEqual, 3)
	test.That(t, colour.Pix, test.ShouldResemble, []byte{0, 0, 0, 255, 80, 80, 80, 255})

	back, err := colour.ConvertTo(PixGrey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Pix, test.ShouldResemble, grey.Pix)

	_, err = grey.ConvertTo(PixUnknown)
	test.That(t, err, test.ShouldNotBeNil)
}
