// Package cli contains the mhe command line tool: replaying logs through the estimator,
// simulating logs and plotting exported trajectories.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	runFlagConfig        = "config"
	runFlagInput         = "input"
	runFlagPlot          = "plot"
	runFlagLandmarksOut  = "landmarks-out"
	runFlagTrajectoryOut = "trajectory-out"

	simulateFlagOut       = "out"
	simulateFlagConfigOut = "config-out"
	simulateFlagSteps     = "steps"
	simulateFlagSeed      = "seed"

	plotFlagTrajectory = "trajectory"
	plotFlagLandmarks  = "landmarks"
	plotFlagOut        = "out"
)

var app = &cli.App{
	Name:            "mhe",
	Usage:           "moving horizon pose estimation for differential-drive robots",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  generalFlagLogFile,
			Usage: "also write JSON logs to `FILE`, rotated as it grows",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "replay a recorded log through the estimator",
			UsageText: "mhe run --input <log> [--config <file>] [other options]",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:    runFlagConfig,
					Aliases: []string{"c"},
					Usage:   "load configuration from `FILE` (json or yaml)",
				},
				&cli.PathFlag{
					Name:     runFlagInput,
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "JSON lines log to replay",
				},
				&cli.PathFlag{
					Name:  runFlagPlot,
					Usage: "write a PNG plot of the trajectory to `FILE`",
				},
				&cli.PathFlag{
					Name:  runFlagLandmarksOut,
					Usage: "override the exported landmarks path",
				},
				&cli.PathFlag{
					Name:  runFlagTrajectoryOut,
					Usage: "override the exported trajectory path",
				},
			},
			Action: RunAction,
		},
		{
			Name:  "simulate",
			Usage: "write a synthetic log of a robot driving among markers",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     simulateFlagOut,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "JSON lines log to write",
				},
				&cli.PathFlag{
					Name:  simulateFlagConfigOut,
					Usage: "also write a config with the simulated markers to `FILE`",
				},
				&cli.IntFlag{
					Name:  simulateFlagSteps,
					Value: 200,
					Usage: "number of update cycles",
				},
				&cli.Uint64Flag{
					Name:  simulateFlagSeed,
					Value: 1,
					Usage: "noise seed",
				},
			},
			Action: SimulateAction,
		},
		{
			Name:  "plot",
			Usage: "plot exported artifacts",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     plotFlagTrajectory,
					Required: true,
					Usage:    "trajectory file written by run",
				},
				&cli.PathFlag{
					Name:  plotFlagLandmarks,
					Usage: "landmarks file written by run",
				},
				&cli.PathFlag{
					Name:     plotFlagOut,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "PNG to write",
				},
			},
			Action: PlotAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the config file",
			Action: SchemaAction,
		},
	},
}

// NewApp returns the app with its output redirected.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
