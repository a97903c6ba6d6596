// Package framefilter implements the frame filters a framefilt process can run between a frame
// source and a frame sink.
package framefilter

import (
	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
)

// Kind names a frame filter.
type Kind string

const (
	// BackgroundSubtractKind subtracts a background frame from every frame.
	BackgroundSubtractKind Kind = "bsub"
	// MaskKind zeroes every pixel outside a region of interest.
	MaskKind Kind = "mask"
)

// Kinds lists every frame filter.
var Kinds = []Kind{BackgroundSubtractKind, MaskKind}

// Filter modifies frames in place.
type Filter interface {
	Apply(frame *datatypes.Frame) error
}

// Config holds the settings of every frame filter. Each filter reads only its own fields.
type Config struct {
	// Background is an image file used as the background. Without it the first frame is used.
	Background string `json:"background"`
	// Mask is an image file whose zero pixels mark the pixels to clear.
	Mask string `json:"mask"`
}

// Validate checks that cfg is usable. Per-filter requirements are checked when building.
func (cfg *Config) Validate(path string) error {
	return nil
}

// Build returns the filter of the given kind.
func Build(kind Kind, cfg Config, logger logging.Logger) (Filter, error) {
	switch kind {
	case BackgroundSubtractKind:
		return NewBackgroundSubtractor(cfg, logger)
	case MaskKind:
		return NewMasker(cfg, logger)
	}
	return nil, errors.Errorf("unknown frame filter %q (want one of %v)", kind, Kinds)
}
