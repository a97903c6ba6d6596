package frameviewer

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
	"go.viam.com/framepipe/utils"
)

// A Display shows frames handed to it by a Viewer.
type Display interface {
	Show(ctx context.Context, name string, frame *datatypes.Frame) error
}

// FileDisplay keeps the most recently shown frame in an image file. Any image viewer that reloads
// the file on change can watch the stream.
type FileDisplay struct {
	path string
}

// NewFileDisplay returns a display writing to path. The extension of path picks the format.
func NewFileDisplay(path string) (*FileDisplay, error) {
	if utils.MimeTypeFromPath(path) == "" {
		return nil, errors.Errorf("no image format for display file %q", path)
	}
	return &FileDisplay{path: path}, nil
}

// Show replaces the display file with frame.
func (d *FileDisplay) Show(ctx context.Context, name string, frame *datatypes.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return rimage.ReplaceImageFile(d.path, frame.ToImage())
}

// LogDisplay logs a line for every frame it is shown.
type LogDisplay struct {
	logger logging.Logger
}

// NewLogDisplay returns a display logging to logger.
func NewLogDisplay(logger logging.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

// Show logs the frame geometry.
func (d *LogDisplay) Show(ctx context.Context, name string, frame *datatypes.Frame) error {
	d.logger.Infow("frame", "viewer", name, "sample", frame.SampleNumber,
		"width", frame.Width, "height", frame.Height, "format", frame.Format.String())
	return nil
}
