package framefilter

import (
	"image"

	"github.com/disintegration/imaging"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
	"go.viam.com/framepipe/utils"
)

// Masker clears every pixel where the mask image is zero and leaves the rest unchanged.
type Masker struct {
	logger logging.Logger
	mask   image.Image

	// roi is the mask, as a grey frame, at the geometry of the last frame filtered.
	roi *datatypes.Frame
}

// NewMasker returns a masker using the mask image named by cfg.Mask.
func NewMasker(cfg Config, logger logging.Logger) (*Masker, error) {
	if cfg.Mask == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(string(MaskKind), "mask")
	}
	img, err := rimage.NewImageFromFile(cfg.Mask)
	if err != nil {
		return nil, err
	}
	logger.Infow("loaded mask", "file", cfg.Mask, "bounds", img.Bounds().String())
	return &Masker{logger: logger, mask: img}, nil
}

func (m *Masker) roiFor(frame *datatypes.Frame) *datatypes.Frame {
	if m.roi != nil && m.roi.Width == frame.Width && m.roi.Height == frame.Height {
		return m.roi
	}
	img := m.mask
	if b := img.Bounds(); b.Dx() != frame.Width || b.Dy() != frame.Height {
		m.logger.Debugw("resizing mask", "from", b.String(), "width", frame.Width, "height", frame.Height)
		img = imaging.Resize(img, frame.Width, frame.Height, imaging.NearestNeighbor)
	}
	m.roi = datatypes.FrameFromImage(img).Grey()
	return m.roi
}

// Apply clears the pixels of frame outside the mask. Alpha is left alone.
func (m *Masker) Apply(frame *datatypes.Frame) error {
	roi := m.roiFor(frame)
	bpp := frame.Format.BytesPerPixel()
	utils.ParallelForEachRow(frame.Height, func(y int) {
		row := frame.Pix[y*frame.Stride:]
		keep := roi.Pix[y*roi.Stride:]
		for x := 0; x < frame.Width; x++ {
			if keep[x] != 0 {
				continue
			}
			px := row[x*bpp : (x+1)*bpp]
			if bpp == 4 {
				px = px[:3]
			}
			clear(px)
		}
	})
	return nil
}
