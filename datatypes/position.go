package datatypes

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Position2D is a planar position sample produced by a position detector.
type Position2D struct {
	SampleNumber uint64 `json:"sample"`

	Position      r2.Point `json:"position"`
	PositionValid bool     `json:"position_valid"`

	Velocity      r2.Point `json:"velocity"`
	VelocityValid bool     `json:"velocity_valid"`

	Heading      r2.Point `json:"heading"`
	HeadingValid bool     `json:"heading_valid"`
}

// Position2DSize is the encoded size of a Position2D: the sample number, three points, three
// validity flags, padded to 64 bytes.
const Position2DSize = 64

const (
	posOffSample   = 0
	posOffPosition = 8
	posOffVelocity = 24
	posOffHeading  = 40
	posOffFlags    = 56
)

const (
	flagPositionValid = 1 << iota
	flagVelocityValid
	flagHeadingValid
)

// PositionCodec encodes Position2D samples as fixed-size little endian records.
type PositionCodec struct{}

// Tag returns LayoutPosition2D.
func (PositionCodec) Tag() LayoutTag { return LayoutPosition2D }

// Size returns Position2DSize.
func (PositionCodec) Size(Position2D) int { return Position2DSize }

// FixedSize returns Position2DSize.
func (PositionCodec) FixedSize() int { return Position2DSize }

// Encode writes pos into dst.
func (PositionCodec) Encode(dst []byte, pos Position2D) error {
	if len(dst) < Position2DSize {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes for a position, have %d", Position2DSize, len(dst))
	}
	binary.LittleEndian.PutUint64(dst[posOffSample:], pos.SampleNumber)
	putPoint(dst[posOffPosition:], pos.Position)
	putPoint(dst[posOffVelocity:], pos.Velocity)
	putPoint(dst[posOffHeading:], pos.Heading)

	var flags byte
	if pos.PositionValid {
		flags |= flagPositionValid
	}
	if pos.VelocityValid {
		flags |= flagVelocityValid
	}
	if pos.HeadingValid {
		flags |= flagHeadingValid
	}
	dst[posOffFlags] = flags
	for i := posOffFlags + 1; i < Position2DSize; i++ {
		dst[i] = 0
	}
	return nil
}

// Decode reads a position out of src.
func (PositionCodec) Decode(src []byte) (Position2D, error) {
	if len(src) < Position2DSize {
		return Position2D{}, errors.Wrapf(ErrShortBuffer, "need %d bytes for a position, have %d", Position2DSize, len(src))
	}
	flags := src[posOffFlags]
	return Position2D{
		SampleNumber:  binary.LittleEndian.Uint64(src[posOffSample:]),
		Position:      getPoint(src[posOffPosition:]),
		PositionValid: flags&flagPositionValid != 0,
		Velocity:      getPoint(src[posOffVelocity:]),
		VelocityValid: flags&flagVelocityValid != 0,
		Heading:       getPoint(src[posOffHeading:]),
		HeadingValid:  flags&flagHeadingValid != 0,
	}, nil
}

func putPoint(dst []byte, pt r2.Point) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(pt.X))
	binary.LittleEndian.PutUint64(dst[8:], math.Float64bits(pt.Y))
}

func getPoint(src []byte) r2.Point {
	return r2.Point{
		X: math.Float64frombits(binary.LittleEndian.Uint64(src)),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(src[8:])),
	}
}
