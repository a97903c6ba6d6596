// Package framesource publishes a sequence of image files as a frame stream.
package framesource

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
	"go.viam.com/framepipe/utils"
)

// Config configures a frame source.
type Config struct {
	// Files are the images to publish, in order.
	Files []string `json:"files"`
	// FPS paces publishing. Zero publishes as fast as the sink takes frames.
	FPS float64 `json:"fps"`
	// Loop restarts from the first file after the last one.
	Loop bool `json:"loop"`
}

// Validate checks that there is something to publish at a sane rate.
func (cfg *Config) Validate(path string) error {
	if len(cfg.Files) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "files")
	}
	for _, f := range cfg.Files {
		if utils.MimeTypeFromPath(f) == "" {
			return goutils.NewConfigValidationError(path, errors.Errorf("%q is not an image file", f))
		}
	}
	if cfg.FPS < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("fps cannot be negative, got %v", cfg.FPS))
	}
	return nil
}

// Source decodes image files into frames one at a time. Every frame takes the pixel format of the
// first file.
type Source struct {
	cfg    Config
	logger logging.Logger
	ticker *clock.Ticker

	first    *datatypes.Frame
	next     int
	sample   uint64
	capacity int
}

// New opens the first file to size the stream. clk may be nil to use the wall clock.
func New(cfg Config, clk clock.Clock, logger logging.Logger) (*Source, error) {
	if err := cfg.Validate("frameserve"); err != nil {
		return nil, err
	}
	first, err := load(cfg.Files[0])
	if err != nil {
		return nil, err
	}
	capacity := datatypes.FrameCodec{}.Size(*first)
	if err := checkSizes(cfg.Files, first.Format, capacity); err != nil {
		return nil, err
	}
	src := &Source{
		cfg:      cfg,
		logger:   logger,
		first:    first,
		capacity: capacity,
	}
	if cfg.FPS > 0 {
		if clk == nil {
			clk = clock.New()
		}
		src.ticker = clk.Ticker(time.Duration(float64(time.Second) / cfg.FPS))
	}
	logger.Debugw("frame source", "files", len(cfg.Files), "width", first.Width, "height", first.Height,
		"format", first.Format.String(), "fps", cfg.FPS, "loop", cfg.Loop)
	return src, nil
}

// checkSizes reads the headers of the files after the first, a few at a time, so a file that is
// missing or would not fit the slot fails before anything is published.
func checkSizes(files []string, format datatypes.PixelFormat, capacity int) error {
	var group errgroup.Group
	group.SetLimit(utils.ParallelFactor)
	for _, path := range files[1:] {
		path := path
		group.Go(func() error {
			header, err := rimage.DecodeConfigFromFile(path)
			if err != nil {
				return err
			}
			if size := datatypes.FrameCapacity(header.Width, header.Height, format); size > capacity {
				return tooLarge(path, size, capacity, files[0])
			}
			return nil
		})
	}
	return group.Wait()
}

func tooLarge(path string, size, capacity int, first string) error {
	return errors.Errorf("%q needs %d bytes, the stream was sized at %d by %q", path, size, capacity, first)
}

func load(path string) (*datatypes.Frame, error) {
	img, err := rimage.NewImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return datatypes.FrameFromImage(img), nil
}

// Capacity returns the slot size every frame of this source fits in.
func (s *Source) Capacity() int {
	return s.capacity
}

// Next returns the next frame, waiting for the next tick when paced. ok is false once the files
// are exhausted and the source does not loop.
func (s *Source) Next(ctx context.Context) (datatypes.Frame, bool, error) {
	if s.next == len(s.cfg.Files) {
		if !s.cfg.Loop {
			return datatypes.Frame{}, false, nil
		}
		s.next = 0
	}

	var frame *datatypes.Frame
	if s.next == 0 {
		frame = s.first.Clone()
	} else {
		var err error
		if frame, err = load(s.cfg.Files[s.next]); err != nil {
			return datatypes.Frame{}, false, err
		}
		if frame.Format != s.first.Format {
			if frame, err = frame.ConvertTo(s.first.Format); err != nil {
				return datatypes.Frame{}, false, err
			}
		}
		if size := (datatypes.FrameCodec{}).Size(*frame); size > s.capacity {
			return datatypes.Frame{}, false, tooLarge(s.cfg.Files[s.next], size, s.capacity, s.cfg.Files[0])
		}
	}

	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return datatypes.Frame{}, false, ctx.Err()
		case <-s.ticker.C:
		}
	}
	s.next++
	frame.SampleNumber = s.sample
	s.sample++
	return *frame, true, nil
}

// Close stops pacing.
func (s *Source) Close() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
