// Package frameviewer implements the frame viewer: a frame sink that hands frames to a display at
// a bounded rate and saves snapshots on request.
package frameviewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/datatypes"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/rimage"
	"go.viam.com/framepipe/utils"
)

// MinUpdatePeriod is the shortest time between two frames handed to the display.
const MinUpdatePeriod = 33 * time.Millisecond

const snapshotTimeFormat = "2006-01-02-15-04-05"

// SnapshotFormats lists the formats a snapshot can be saved in.
var SnapshotFormats = map[string]string{
	"png": utils.MimeTypePNG,
	"qoi": utils.MimeTypeQOI,
	"ppm": utils.MimeTypePPM,
}

// Config configures a viewer's snapshots.
type Config struct {
	// SnapshotPath is an existing directory snapshots are saved to. Empty means the working directory.
	SnapshotPath string `json:"snapshot_path"`
	// FileName replaces the source name in snapshot file names.
	FileName string `json:"filename"`
	// Format is one of SnapshotFormats. Empty means png.
	Format string `json:"format"`
}

// Validate checks that the snapshot directory exists and the format is known.
func (cfg *Config) Validate(path string) error {
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	if _, ok := SnapshotFormats[cfg.Format]; !ok {
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown snapshot format %q", cfg.Format))
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "."
	}
	abs, err := filepath.Abs(cfg.SnapshotPath)
	if err != nil {
		return goutils.NewConfigValidationError(path, errors.Wrap(err, "snapshot path"))
	}
	cfg.SnapshotPath = abs
	info, err := os.Stat(cfg.SnapshotPath)
	if err != nil {
		return goutils.NewConfigValidationError(path, errors.Wrap(err, "snapshot path"))
	}
	if !info.IsDir() {
		return goutils.NewConfigValidationError(path, errors.Errorf("snapshot path %q is not a directory", cfg.SnapshotPath))
	}
	return nil
}

// Name returns the name a viewer of source shows itself under.
func Name(source string, readerNumber int) string {
	return fmt.Sprintf("viewer[%s]%d", source, readerNumber)
}

// Viewer consumes frames, forwarding at most one per MinUpdatePeriod to its display.
type Viewer struct {
	name    string
	source  string
	cfg     Config
	display Display
	clock   clock.Clock
	logger  logging.Logger

	mu        sync.Mutex
	latest    *datatypes.Frame
	lastShown time.Time
	shown     bool
	received  uint64
	displayed uint64
}

// New returns a viewer of source. clk may be nil to use the wall clock.
func New(name, source string, cfg Config, display Display, clk clock.Clock, logger logging.Logger) (*Viewer, error) {
	if err := cfg.Validate("view"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Viewer{
		name:    name,
		source:  source,
		cfg:     cfg,
		display: display,
		clock:   clk,
		logger:  logger,
	}, nil
}

// Consume records frame as the latest frame and shows it if the display is due an update.
func (v *Viewer) Consume(ctx context.Context, frame datatypes.Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.latest = &frame
	v.received++
	now := v.clock.Now()
	if v.shown && now.Sub(v.lastShown) < MinUpdatePeriod {
		return nil
	}
	if err := v.display.Show(ctx, v.name, &frame); err != nil {
		return errors.Wrapf(err, "%s showing sample %d", v.name, frame.SampleNumber)
	}
	v.lastShown = now
	v.shown = true
	v.displayed++
	return nil
}

// Counts returns how many frames were consumed and how many of them were displayed.
func (v *Viewer) Counts() (received, displayed uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.received, v.displayed
}

// Snapshot saves the latest frame and returns the file it was written to. Existing files are never
// overwritten: a counter is appended to the name instead.
func (v *Viewer) Snapshot(ctx context.Context) (string, error) {
	v.mu.Lock()
	latest := v.latest
	v.mu.Unlock()
	if latest == nil {
		return "", errors.New("no frame to snapshot yet")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stem := v.cfg.FileName
	if stem == "" {
		stem = v.source
	}
	ext := utils.ExtensionForMimeType(SnapshotFormats[v.cfg.Format])
	base, err := utils.SafeJoinDir(v.cfg.SnapshotPath, v.clock.Now().Format(snapshotTimeFormat)+"_"+stem)
	if err != nil {
		return "", err
	}

	img := latest.ToImage()
	path := base + ext
	for i := 1; ; i++ {
		err := rimage.WriteImageToFile(path, img)
		if err == nil {
			v.logger.Infow("snapshot saved", "viewer", v.name, "path", path)
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		path = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
