// Package poslogger writes a position stream to a file as JSON lines.
package poslogger

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/multierr"

	"go.viam.com/framepipe/datatypes"
)

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// record is one line of output. Invalid fields are omitted.
type record struct {
	Sample   uint64 `json:"sample"`
	USec     int64  `json:"usec"`
	Position *point `json:"position,omitempty"`
	Velocity *point `json:"velocity,omitempty"`
	Heading  *point `json:"heading,omitempty"`
}

func newRecord(pos datatypes.Position2D, usec int64) record {
	rec := record{Sample: pos.SampleNumber, USec: usec}
	if pos.PositionValid {
		rec.Position = &point{pos.Position.X, pos.Position.Y}
	}
	if pos.VelocityValid {
		rec.Velocity = &point{pos.Velocity.X, pos.Velocity.Y}
	}
	if pos.HeadingValid {
		rec.Heading = &point{pos.Heading.X, pos.Heading.Y}
	}
	return rec
}

// Writer writes one JSON object per position.
type Writer struct {
	out    *bufio.Writer
	closer io.Closer
	clock  clock.Clock
	lines  uint64
}

// NewWriter writes to w. clk stamps each line and may be nil to use the wall clock.
func NewWriter(w io.Writer, clk clock.Clock) *Writer {
	if clk == nil {
		clk = clock.New()
	}
	writer := &Writer{out: bufio.NewWriter(w), clock: clk}
	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		writer.closer = c
	}
	return writer
}

// Create writes to a new file at path, or to stdout if path is empty or "-".
func Create(path string, clk clock.Clock) (*Writer, error) {
	if path == "" || path == "-" {
		return NewWriter(os.Stdout, clk), nil
	}
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "creating position log")
	}
	return NewWriter(f, clk), nil
}

// Consume writes pos as a line and flushes it.
func (w *Writer) Consume(ctx context.Context, pos datatypes.Position2D) error {
	line, err := sonnet.Marshal(newRecord(pos, w.clock.Now().UnixMicro()))
	if err != nil {
		return errors.Wrapf(err, "encoding sample %d", pos.SampleNumber)
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return err
	}
	w.lines++
	return w.out.Flush()
}

// Lines returns the number of lines written.
func (w *Writer) Lines() uint64 {
	return w.lines
}

// Close flushes and closes the output. Stdout is left open.
func (w *Writer) Close() error {
	err := w.out.Flush()
	if w.closer != nil {
		err = multierr.Combine(err, w.closer.Close())
	}
	return err
}
