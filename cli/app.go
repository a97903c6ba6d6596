// Package cli contains the framepipe command line: one subcommand per kind of pipeline process.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"go.viam.com/framepipe/framefilter"
	"go.viam.com/framepipe/logging"
	"go.viam.com/framepipe/positiondetector"
)

const (
	// Flags.
	generalFlagDebug     = "debug"
	generalFlagLogFile   = "log-file"
	generalFlagLogLevel  = "log-level"
	generalFlagConfig    = "config"
	generalFlagConfigKey = "config-key"

	bufferFlagCapacity = "capacity"

	filterFlagBackground = "background"
	filterFlagMask       = "mask"

	detectorFlagThresh  = "thresh"
	detectorFlagErode   = "erode"
	detectorFlagDilate  = "dilate"
	detectorFlagArea    = "area"
	detectorFlagMinComp = "mincomp"

	viewFlagSnapshotPath = "snapshot-path"
	viewFlagFileName     = "filename"
	viewFlagFormat       = "format"
	viewFlagDisplay      = "display"

	serveFlagFPS  = "fps"
	serveFlagLoop = "loop"

	logFlagOutput = "output"
)

func kindList[K ~string](kinds []K) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, "|")
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load component configuration from TOML `FILE`",
		},
		&cli.StringFlag{
			Name:    generalFlagConfigKey,
			Aliases: []string{"k"},
			Usage:   "table of the configuration file holding this component's settings",
		},
	}
}

// newApp builds the app. Flags keep parse state, so every run gets its own.
func newApp() *cli.App {
	return &cli.App{
		Name:            "framepipe",
		Usage:           "run video and position pipeline processes connected by shared memory",
		HideHelpCommand: true,
		Before: func(c *cli.Context) error {
			_, err := logging.LevelFromString(c.String(generalFlagLogLevel))
			return err
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  generalFlagLogLevel,
				Value: "info",
				Usage: "lowest level logged: debug, info, warn or error; --debug overrides it",
			},
			&cli.PathFlag{
				Name:  generalFlagLogFile,
				Usage: "also log to `FILE`, rotating it as it grows",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "buffer",
				Usage:     "queue samples between a source and a sink so a slow sink does not drop them",
				ArgsUsage: "<frame|pos2D> <source> <sink>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  bufferFlagCapacity,
						Usage: "most samples to queue before the source is left unread; 0 is unbounded",
					},
				},
				Action: BufferAction,
			},
			{
				Name:      "framefilt",
				Usage:     "filter frames from a source and publish them to a sink",
				ArgsUsage: fmt.Sprintf("<%s> <source> <sink>", kindList(framefilter.Kinds)),
				Flags: append([]cli.Flag{
					&cli.PathFlag{
						Name:  filterFlagBackground,
						Usage: "background image for bsub; the first frame is used without it",
					},
					&cli.PathFlag{
						Name:  filterFlagMask,
						Usage: "mask image for mask; its zero pixels are cleared",
					},
				}, configFlags()...),
				Action: FrameFilterAction,
			},
			{
				Name:      "posidet",
				Usage:     "detect positions in frames from a source and publish them to a sink",
				ArgsUsage: fmt.Sprintf("<%s> <source> <sink>", kindList(positiondetector.Kinds)),
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  detectorFlagThresh,
						Usage: "intensity passband as MIN,MAX",
					},
					&cli.IntFlag{
						Name:  detectorFlagErode,
						Usage: "erosion kernel size in pixels",
					},
					&cli.IntFlag{
						Name:  detectorFlagDilate,
						Usage: "dilation kernel size in pixels",
					},
					&cli.StringFlag{
						Name:  detectorFlagArea,
						Usage: "marker area window in pixels as MIN,MAX",
					},
					&cli.IntFlag{
						Name:  detectorFlagMinComp,
						Usage: "shift the passband by the darkest non-zero pixel when non-zero",
					},
				}, configFlags()...),
				Action: PositionDetectAction,
			},
			{
				Name:      "view",
				Usage:     "view frames from a source; SIGUSR1 saves a snapshot",
				ArgsUsage: "<source>",
				Flags: append([]cli.Flag{
					&cli.PathFlag{
						Name:  viewFlagSnapshotPath,
						Usage: "existing directory snapshots are saved to",
					},
					&cli.StringFlag{
						Name:  viewFlagFileName,
						Usage: "name used in snapshot files instead of the source name",
					},
					&cli.StringFlag{
						Name:  viewFlagFormat,
						Usage: "snapshot format: png, qoi or ppm",
					},
					&cli.PathFlag{
						Name:  viewFlagDisplay,
						Usage: "keep the latest frame in this image file instead of logging frames",
					},
				}, configFlags()...),
				Action: ViewAction,
			},
			{
				Name:      "frameserve",
				Usage:     "publish image files as frames to a sink",
				ArgsUsage: "<sink> <file>...",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  serveFlagFPS,
						Usage: "frames per second; 0 publishes as fast as possible",
					},
					&cli.BoolFlag{
						Name:  serveFlagLoop,
						Usage: "start over after the last file",
					},
				},
				Action: FrameServeAction,
			},
			{
				Name:      "posilog",
				Usage:     "write positions from a source as JSON lines",
				ArgsUsage: "<source>",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    logFlagOutput,
						Aliases: []string{"o"},
						Usage:   "new file to write to; stdout if unset",
					},
				},
				Action: PositionLogAction,
			},
			{
				Name:      "clean",
				Usage:     "remove segments left behind by processes that did not exit cleanly",
				ArgsUsage: "<name>...",
				Action:    CleanAction,
			},
		},
	}
}

// NewApp returns a new app with the framepipe commands, Writer set to out, and ErrWriter set to
// errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
