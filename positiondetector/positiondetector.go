// Package positiondetector implements the detectors a posidet process can run to turn frames into
// positions.
package positiondetector

import (
	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
)

// Kind names a position detector.
type Kind string

// MultiLEDKind finds a three LED marker and reports its position and heading.
const MultiLEDKind Kind = "multiled"

// Kinds lists every position detector.
var Kinds = []Kind{MultiLEDKind}

// Detector finds a position in a frame.
type Detector interface {
	Detect(frame *datatypes.Frame) (datatypes.Position2D, error)
}

// Build returns the detector of the given kind.
func Build(kind Kind, cfg MultiLEDConfig, logger logging.Logger) (Detector, error) {
	switch kind {
	case MultiLEDKind:
		return NewMultiLED(cfg, logger)
	}
	return nil, errors.Errorf("unknown position detector %q (want one of %v)", kind, Kinds)
}
