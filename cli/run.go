package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/mhe/config"
	"go.viam.com/mhe/sensors"
	"go.viam.com/mhe/spatialmath"
)

// RunAction replays a log through an estimator built from the config, exports the trajectory and
// prints a summary.
func RunAction(c *cli.Context) (err error) {
	cfg := config.Default()
	if path := c.Path(runFlagConfig); path != "" {
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	if path := c.Path(runFlagLandmarksOut); path != "" {
		cfg.Output.LandmarksPath = path
	}
	if path := c.Path(runFlagTrajectoryOut); path != "" {
		cfg.Output.TrajectoryPath = path
	}

	logger, closeLogs, err := newLogger(c, cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		// Sync on a console returns EINVAL on some platforms
		goutils.UncheckedError(closeLogs())
	}()

	runID := uuid.New().String()
	records, err := readLog(c.Path(runFlagInput))
	if err != nil {
		return err
	}
	logger.Infow("starting run", "run_id", runID, "records", len(records), "horizon", cfg.Horizon,
		"landmarks", len(cfg.Landmarks))

	est, registry, err := cfg.Build(logger.Sublogger("estimator"))
	if err != nil {
		return err
	}
	stats := newRunStats(runID)
	asm := sensors.NewAssembler(registry, est.Options().Horizon, logger.Sublogger("sensors"))

	var truths []spatialmath.Pose
	replayErr := sensors.Replay(est, asm, records, func(step sensors.Step) {
		stats.addSolve(est.LastSummary(), est.LastUpdateDuration())
		if step.Record.Truth != nil {
			stats.addTruth(step.Estimate, *step.Record.Truth)
			truths = append(truths, *step.Record.Truth)
		}
	})
	stats.dropped = asm.Dropped()
	stats.final = est.Pose()
	stats.numPoses = len(est.Poses())

	// export whatever was estimated even if the replay stopped early
	stats.exportError = est.Close()
	err = multierr.Combine(replayErr, stats.exportError)
	stats.render(c.App.Writer)
	if err != nil {
		return err
	}

	if path := c.Path(runFlagPlot); path != "" {
		if err := PlotTrajectory(path, runID, est.Poses(), truths, est.Landmarks()); err != nil {
			return err
		}
		logger.Infow("wrote plot", "path", path)
	}
	return nil
}

func readLog(path string) ([]sensors.Record, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	records, err := sensors.ReadLog(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return records, nil
}
