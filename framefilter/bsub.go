package framefilter

import (
	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
	"go.viam.com/framepipe/utils"
)

// BackgroundSubtractor subtracts a background frame from every frame, clamping at zero.
type BackgroundSubtractor struct {
	logger     logging.Logger
	background *datatypes.Frame
}

// NewBackgroundSubtractor returns a background subtractor. The background is read from
// cfg.Background if set, otherwise taken from the first frame filtered.
func NewBackgroundSubtractor(cfg Config, logger logging.Logger) (*BackgroundSubtractor, error) {
	bs := &BackgroundSubtractor{logger: logger}
	if cfg.Background != "" {
		img, err := rimage.NewImageFromFile(cfg.Background)
		if err != nil {
			return nil, errors.Wrap(err, "loading background")
		}
		bs.background = datatypes.FrameFromImage(img)
		logger.Infow("loaded background", "file", cfg.Background,
			"width", bs.background.Width, "height", bs.background.Height)
	}
	return bs, nil
}

// Apply subtracts the background from frame. Alpha is left alone.
func (bs *BackgroundSubtractor) Apply(frame *datatypes.Frame) error {
	if bs.background == nil {
		bs.background = frame.Clone()
		bs.logger.Debugw("using first frame as background", "sample", frame.SampleNumber)
	}
	if bs.background.Width != frame.Width || bs.background.Height != frame.Height {
		return errors.Errorf("background is %dx%d but frame is %dx%d",
			bs.background.Width, bs.background.Height, frame.Width, frame.Height)
	}
	if bs.background.Format != frame.Format {
		converted, err := bs.background.ConvertTo(frame.Format)
		if err != nil {
			return err
		}
		bs.background = converted
	}

	bpp := frame.Format.BytesPerPixel()
	rowBytes := frame.Width * bpp
	background := bs.background
	utils.ParallelForEachRow(frame.Height, func(y int) {
		dst := frame.Pix[y*frame.Stride : y*frame.Stride+rowBytes]
		bg := background.Pix[y*background.Stride:]
		for i := range dst {
			if bpp == 4 && i%4 == 3 {
				continue
			}
			if dst[i] > bg[i] {
				dst[i] -= bg[i]
			} else {
				dst[i] = 0
			}
		}
	})
	return nil
}
