package datatypes

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// PixelFormat describes how a frame's pixel bytes are laid out.
type PixelFormat uint8

const (
	// PixUnknown is an unset format.
	PixUnknown PixelFormat = iota
	// PixGrey is one byte of luminance per pixel.
	PixGrey
	// PixNRGBA is four bytes per pixel, non-premultiplied RGBA.
	PixNRGBA
)

// BytesPerPixel returns the pixel width of the format, or 0 for an unknown format.
func (format PixelFormat) BytesPerPixel() int {
	switch format {
	case PixGrey:
		return 1
	case PixNRGBA:
		return 4
	case PixUnknown:
	}
	return 0
}

func (format PixelFormat) String() string {
	switch format {
	case PixGrey:
		return "grey"
	case PixNRGBA:
		return "nrgba"
	case PixUnknown:
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(format))
}

// Frame is a single video frame: a pixel buffer plus the geometry needed to interpret it.
type Frame struct {
	SampleNumber uint64
	Width        int
	Height       int
	Stride       int
	Format       PixelFormat
	Pix          []byte
}

// NewFrame allocates a zeroed frame with a tight stride.
func NewFrame(width, height int, format PixelFormat) *Frame {
	stride := width * format.BytesPerPixel()
	return &Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    make([]byte, stride*height),
	}
}

// FrameFromImage copies img into a new frame. Grey images stay grey, everything else becomes NRGBA.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	if grey, ok := img.(*image.Gray); ok {
		frame := NewFrame(bounds.Dx(), bounds.Dy(), PixGrey)
		for y := 0; y < frame.Height; y++ {
			start := grey.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(frame.Pix[y*frame.Stride:(y+1)*frame.Stride], grey.Pix[start:start+frame.Stride])
		}
		return frame
	}

	nrgba := imaging.Clone(img)
	return &Frame{
		Width:  nrgba.Rect.Dx(),
		Height: nrgba.Rect.Dy(),
		Stride: nrgba.Stride,
		Format: PixNRGBA,
		Pix:    nrgba.Pix,
	}
}

// ToImage returns an image view over the frame's pixels. The view shares the frame's buffer.
func (f *Frame) ToImage() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixGrey:
		return &image.Gray{Pix: f.Pix, Stride: f.Stride, Rect: rect}
	case PixNRGBA:
		return &image.NRGBA{Pix: f.Pix, Stride: f.Stride, Rect: rect}
	case PixUnknown:
	}
	return image.NewGray(image.Rectangle{})
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.Pix = append([]byte(nil), f.Pix...)
	return &clone
}

// Grey returns a grey copy of the frame. Colour frames are converted by luminance.
func (f *Frame) Grey() *Frame {
	if f.Format == PixGrey {
		return f.Clone()
	}
	lum := imaging.Grayscale(f.ToImage())
	grey := NewFrame(f.Width, f.Height, PixGrey)
	grey.SampleNumber = f.SampleNumber
	for y := 0; y < f.Height; y++ {
		row := lum.Pix[y*lum.Stride:]
		for x := 0; x < f.Width; x++ {
			grey.Pix[y*grey.Stride+x] = row[x*4]
		}
	}
	return grey
}

// NRGBA returns an NRGBA copy of the frame.
func (f *Frame) NRGBA() *Frame {
	if f.Format == PixNRGBA {
		return f.Clone()
	}
	out := FrameFromImage(imaging.Clone(f.ToImage()))
	out.SampleNumber = f.SampleNumber
	return out
}

// ConvertTo returns a copy of the frame in the given pixel format.
func (f *Frame) ConvertTo(format PixelFormat) (*Frame, error) {
	switch format {
	case PixGrey:
		return f.Grey(), nil
	case PixNRGBA:
		return f.NRGBA(), nil
	case PixUnknown:
	}
	return nil, errors.Errorf("cannot convert a frame to %v", format)
}

// SameGeometry reports whether both frames have the same size and format.
func (f *Frame) SameGeometry(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height && f.Format == other.Format
}

func (f *Frame) validate() error {
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return errors.Errorf("unsupported pixel format %v", f.Format)
	}
	if f.Width < 0 || f.Height < 0 {
		return errors.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*bpp {
		return errors.Errorf("stride %d too small for %d %v pixels", f.Stride, f.Width, f.Format)
	}
	if len(f.Pix) < f.Stride*f.Height {
		return errors.Errorf("pixel buffer holds %d bytes, geometry needs %d", len(f.Pix), f.Stride*f.Height)
	}
	return nil
}

// FrameHeaderSize is the size of the geometry record written before the pixels.
const FrameHeaderSize = 32

const (
	frameOffSample = 0
	frameOffWidth  = 8
	frameOffHeight = 12
	frameOffStride = 16
	frameOffFormat = 20
)

// FrameCapacity returns the slot size needed for frames of the given geometry.
func FrameCapacity(width, height int, format PixelFormat) int {
	return FrameHeaderSize + width*format.BytesPerPixel()*height
}

// FrameCodec encodes frames as a geometry record followed by tightly packed rows.
type FrameCodec struct{}

// Tag returns LayoutFrame.
func (FrameCodec) Tag() LayoutTag { return LayoutFrame }

// Size returns the encoded size of frame.
func (FrameCodec) Size(frame Frame) int {
	return FrameCapacity(frame.Width, frame.Height, frame.Format)
}

// FixedSize returns 0: a frame slot is sized from the first frame's geometry.
func (FrameCodec) FixedSize() int { return 0 }

// Encode writes frame into dst, packing rows to a tight stride.
func (codec FrameCodec) Encode(dst []byte, frame Frame) error {
	if err := frame.validate(); err != nil {
		return err
	}
	size := codec.Size(frame)
	if len(dst) < size {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes for a %dx%d %v frame, have %d",
			size, frame.Width, frame.Height, frame.Format, len(dst))
	}
	rowBytes := frame.Width * frame.Format.BytesPerPixel()
	binary.LittleEndian.PutUint64(dst[frameOffSample:], frame.SampleNumber)
	binary.LittleEndian.PutUint32(dst[frameOffWidth:], uint32(frame.Width))
	binary.LittleEndian.PutUint32(dst[frameOffHeight:], uint32(frame.Height))
	binary.LittleEndian.PutUint32(dst[frameOffStride:], uint32(rowBytes))
	dst[frameOffFormat] = byte(frame.Format)

	pix := dst[FrameHeaderSize:]
	for y := 0; y < frame.Height; y++ {
		copy(pix[y*rowBytes:(y+1)*rowBytes], frame.Pix[y*frame.Stride:y*frame.Stride+rowBytes])
	}
	return nil
}

// Decode copies a frame out of src.
func (FrameCodec) Decode(src []byte) (Frame, error) {
	if len(src) < FrameHeaderSize {
		return Frame{}, errors.Wrapf(ErrShortBuffer, "need %d bytes for a frame header, have %d", FrameHeaderSize, len(src))
	}
	frame := Frame{
		SampleNumber: binary.LittleEndian.Uint64(src[frameOffSample:]),
		Width:        int(binary.LittleEndian.Uint32(src[frameOffWidth:])),
		Height:       int(binary.LittleEndian.Uint32(src[frameOffHeight:])),
		Stride:       int(binary.LittleEndian.Uint32(src[frameOffStride:])),
		Format:       PixelFormat(src[frameOffFormat]),
	}
	// Header words are untrusted: the size checks are done in uint64 and by division so a corrupt
	// header cannot overflow them.
	bpp := uint64(frame.Format.BytesPerPixel())
	stride, rows := uint64(frame.Stride), uint64(frame.Height)
	if bpp == 0 || stride < uint64(frame.Width)*bpp {
		return Frame{}, errors.Errorf("corrupt frame header: %dx%d stride %d format %v",
			frame.Width, frame.Height, frame.Stride, frame.Format)
	}
	avail := uint64(len(src) - FrameHeaderSize)
	if stride != 0 && rows > avail/stride {
		return Frame{}, errors.Wrapf(ErrShortBuffer, "frame needs %d rows of %d bytes, have %d bytes",
			rows, stride, avail)
	}
	n := int(stride * rows)
	frame.Pix = make([]byte, n)
	copy(frame.Pix, src[FrameHeaderSize:FrameHeaderSize+n])
	return frame, nil
}
