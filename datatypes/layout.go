// Package datatypes defines the samples exchanged between framepipe processes and the codecs that
// copy them into and out of a shared-memory payload slot.
package datatypes

import (
	"fmt"

	"github.com/pkg/errors"
)

// LayoutTag discriminates the kind of sample a segment carries. A reader must agree on the tag
// with the writer that created the segment before interpreting the payload.
type LayoutTag uint32

const (
	// LayoutUnknown is never written by a well-formed writer.
	LayoutUnknown LayoutTag = iota
	// LayoutPosition2D carries fixed-size Position2D records.
	LayoutPosition2D
	// LayoutFrame carries a pixel buffer and its geometry.
	LayoutFrame
)

func (tag LayoutTag) String() string {
	switch tag {
	case LayoutUnknown:
		return "unknown"
	case LayoutPosition2D:
		return "pos2D"
	case LayoutFrame:
		return "frame"
	}
	return fmt.Sprintf("LayoutTag(%d)", uint32(tag))
}

// ErrShortBuffer is returned when a payload is too small for the sample being encoded or decoded.
var ErrShortBuffer = errors.New("payload buffer too small")

// Codec copies samples of type T into and out of a byte slot.
type Codec[T any] interface {
	// Tag is the layout tag written to, and checked against, the segment header.
	Tag() LayoutTag
	// Size is the number of bytes Encode needs for v.
	Size(v T) int
	// FixedSize is the slot capacity every sample fits in, or 0 when it depends on the sample.
	FixedSize() int
	// Encode writes v into dst, which is at least Size(v) bytes long. When it fails it must
	// not have written any byte of dst.
	Encode(dst []byte, v T) error
	// Decode returns a copy of the sample stored in src; it never aliases src.
	Decode(src []byte) (T, error)
}

// ParseLayoutTag parses the command line name of a layout tag.
func ParseLayoutTag(name string) (LayoutTag, error) {
	switch name {
	case "pos2D", "pos2d":
		return LayoutPosition2D, nil
	case "frame":
		return LayoutFrame, nil
	}
	return LayoutUnknown, errors.Errorf("unknown sample type %q (want frame or pos2D)", name)
}
