package positiondetector

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
)

const (
	defaultThreshMin = 110
	defaultThreshMax = 256
	defaultAreaMin   = 10
)

// MultiLEDConfig configures the multiled detector. Empty fields take their defaults.
type MultiLEDConfig struct {
	// Thresh is the [min,max] intensity passband, each between 0 and 256.
	Thresh []int `json:"thresh"`
	// Erode is the side of the square erosion kernel in pixels; 0 disables erosion.
	Erode int `json:"erode"`
	// Dilate is the side of the square dilation kernel in pixels; 0 disables dilation.
	Dilate int `json:"dilate"`
	// Area is the [min,max) marker area in pixels.
	Area []float64 `json:"area"`
	// MinComp, when non-zero, shifts the passband up by the darkest non-zero pixel of the frame.
	MinComp int `json:"mincomp"`
}

// Validate checks the config and fills in defaults.
func (cfg *MultiLEDConfig) Validate(path string) error {
	switch len(cfg.Thresh) {
	case 0:
		cfg.Thresh = []int{defaultThreshMin, defaultThreshMax}
	case 2:
		for _, v := range cfg.Thresh {
			if v < 0 || v > 256 {
				return goutils.NewConfigValidationError(path, errors.New("values of thresh should be between 0 and 256"))
			}
		}
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("thresh needs [min,max], got %v", cfg.Thresh))
	}

	switch len(cfg.Area) {
	case 0:
		cfg.Area = []float64{defaultAreaMin, math.Inf(1)}
	case 2:
		if cfg.Area[0] >= cfg.Area[1] {
			return goutils.NewConfigValidationError(path, errors.New("max area should be larger than min area"))
		}
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("area needs [min,max], got %v", cfg.Area))
	}

	if cfg.Erode < 0 || cfg.Dilate < 0 {
		return goutils.NewConfigValidationError(path, errors.New("erode and dilate cannot be negative"))
	}
	return nil
}

// MultiLED finds exactly three bright markers. The position is the midpoint of the shortest side
// of their triangle and the heading points from there to the opposite marker.
type MultiLED struct {
	cfg    MultiLEDConfig
	logger logging.Logger
}

// NewMultiLED validates cfg and returns a multiled detector.
func NewMultiLED(cfg MultiLEDConfig, logger logging.Logger) (*MultiLED, error) {
	if err := cfg.Validate(string(MultiLEDKind)); err != nil {
		return nil, err
	}
	logger.Debugw("multiled detector", "thresh", cfg.Thresh, "area", cfg.Area,
		"erode", cfg.Erode, "dilate", cfg.Dilate, "mincomp", cfg.MinComp)
	return &MultiLED{cfg: cfg, logger: logger}, nil
}

// Detect returns the marker position in frame. The position is invalid unless exactly three
// markers are found.
func (d *MultiLED) Detect(frame *datatypes.Frame) (datatypes.Position2D, error) {
	pos := datatypes.Position2D{SampleNumber: frame.SampleNumber}
	mask, err := d.threshold(frame)
	if err != nil {
		return pos, err
	}

	var leds []r2.Point
	for _, comp := range rimage.ConnectedComponents(mask) {
		area := float64(comp.Area)
		if area >= d.cfg.Area[0] && area < d.cfg.Area[1] {
			leds = append(leds, comp.Centroid)
		}
	}
	if len(leds) != 3 {
		return pos, nil
	}

	mid, heading := triangleHeading([3]r2.Point{leds[0], leds[1], leds[2]})
	pos.Position = mid
	pos.PositionValid = true
	pos.Heading = heading
	pos.HeadingValid = true
	return pos, nil
}

func (d *MultiLED) threshold(frame *datatypes.Frame) (*image.Gray, error) {
	if frame.Format != datatypes.PixGrey {
		frame = frame.Grey()
	}
	grey, ok := frame.ToImage().(*image.Gray)
	if !ok {
		return nil, errors.Errorf("cannot detect in a %v frame", frame.Format)
	}

	lo, hi := d.cfg.Thresh[0], d.cfg.Thresh[1]
	if d.cfg.MinComp != 0 {
		darkest := int(rimage.MinNonZero(grey))
		lo += darkest
		hi += darkest
	}
	mask := rimage.InRange(grey, lo, hi)

	var err error
	if d.cfg.Erode > 0 {
		if mask, err = rimage.ErodeSquare(mask, d.cfg.Erode); err != nil {
			return nil, err
		}
	}
	if d.cfg.Dilate > 0 {
		if mask, err = rimage.DilateSquare(mask, d.cfg.Dilate); err != nil {
			return nil, err
		}
	}
	return mask, nil
}

// triangleHeading returns the midpoint of the shortest side of the triangle and the vector from it
// to the opposite vertex. On ties the earlier side wins.
func triangleHeading(leds [3]r2.Point) (r2.Point, r2.Point) {
	sides := [3]float64{
		leds[1].Sub(leds[2]).Norm(),
		leds[0].Sub(leds[2]).Norm(),
		leds[0].Sub(leds[1]).Norm(),
	}
	apex := 0
	for i := 1; i < 3; i++ {
		if sides[i] < sides[apex] {
			apex = i
		}
	}
	a, b := leds[(apex+1)%3], leds[(apex+2)%3]
	mid := a.Add(b).Mul(0.5)
	return mid, leds[apex].Sub(mid)
}
