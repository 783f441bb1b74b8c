// Package config defines the file based configuration of an estimator run.
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/sensors"
	"go.viam.com/mhe/solver"
	"go.viam.com/mhe/spatialmath"
	"go.viam.com/mhe/utils"
)

// Config describes the estimator, its known landmarks and where results go.
type Config struct {
	Horizon           int              `json:"horizon" yaml:"horizon"`
	NumLandmarks      int              `json:"num_landmarks" yaml:"num_landmarks"`
	MaxHistory        int              `json:"max_history,omitempty" yaml:"max_history,omitempty"`
	SeedPose          spatialmath.Pose `json:"seed_pose" yaml:"seed_pose"`
	PriorPrecision    [3]float64       `json:"prior_precision" yaml:"prior_precision"`
	OdometryPrecision [3]float64       `json:"odometry_precision" yaml:"odometry_precision"`
	RangeStdDev       float64          `json:"range_stddev" yaml:"range_stddev"`
	BearingStdDev     float64          `json:"bearing_stddev" yaml:"bearing_stddev"`
	Landmarks         []Landmark       `json:"landmarks,omitempty" yaml:"landmarks,omitempty"`
	Solver            Solver           `json:"solver" yaml:"solver"`
	Output            Output           `json:"output" yaml:"output"`
	Log               Log              `json:"log" yaml:"log"`
}

// Landmark binds an external marker id to a slot and its known position.
type Landmark struct {
	ID   int     `json:"id" yaml:"id"`
	Slot int     `json:"slot" yaml:"slot"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Solver configures the window solve.
type Solver struct {
	Backend           string  `json:"backend,omitempty" yaml:"backend,omitempty"`
	MaxIterations     int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	LinearSolver      string  `json:"linear_solver,omitempty" yaml:"linear_solver,omitempty"`
	NumThreads        int     `json:"num_threads,omitempty" yaml:"num_threads,omitempty"`
	FunctionTolerance float64 `json:"function_tolerance,omitempty" yaml:"function_tolerance,omitempty"`
}

// Output names the exported artifacts.
type Output struct {
	LandmarksPath  string `json:"landmarks_path,omitempty" yaml:"landmarks_path,omitempty"`
	TrajectoryPath string `json:"trajectory_path,omitempty" yaml:"trajectory_path,omitempty"`
}

// Log configures logging of a run.
type Log struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Default returns the configuration of a freshly constructed estimator.
func Default() *Config {
	return &Config{
		Horizon:           mhe.DefaultHorizon,
		NumLandmarks:      mhe.DefaultNumLandmarks,
		PriorPrecision:    [3]float64{1, 1, 0.5},
		OdometryPrecision: [3]float64{1, 1, 0.5},
		RangeStdDev:       0.35,
		BearingStdDev:     0.07,
		Solver: Solver{
			Backend:       string(mhe.BackendLevenbergMarquardt),
			MaxIterations: solver.DefaultMaxIterations,
			LinearSolver:  solver.SparseNormalCholesky.String(),
		},
		Output: Output{
			LandmarksPath:  mhe.DefaultLandmarksPath,
			TrajectoryPath: mhe.DefaultTrajectoryPath,
		},
	}
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Validate returns the first problem found, naming the offending field relative to path.
func (c *Config) Validate(path string) error {
	if c.Horizon < 1 {
		return goutils.NewConfigValidationError(joinPath(path, "horizon"), errors.Errorf("must be at least 1, got %d", c.Horizon))
	}
	if c.NumLandmarks < 0 {
		return goutils.NewConfigValidationError(joinPath(path, "num_landmarks"), errors.New("must not be negative"))
	}
	if c.MaxHistory != 0 && c.MaxHistory < c.Horizon+1 {
		return goutils.NewConfigValidationError(joinPath(path, "max_history"),
			errors.Errorf("must be 0 or at least horizon+1 (%d), got %d", c.Horizon+1, c.MaxHistory))
	}
	if !c.SeedPose.IsFinite() {
		return goutils.NewConfigValidationError(joinPath(path, "seed_pose"), errors.New("must be finite"))
	}
	for _, field := range []struct {
		name string
		diag [3]float64
	}{
		{"prior_precision", c.PriorPrecision},
		{"odometry_precision", c.OdometryPrecision},
	} {
		for i, v := range field.diag {
			if !utils.IsFinite(v) || !(v > 0) {
				return goutils.NewConfigValidationError(fmt.Sprintf("%s.%d", joinPath(path, field.name), i),
					errors.Errorf("must be positive, got %g", v))
			}
		}
	}
	if !utils.IsFinite(c.RangeStdDev) || !(c.RangeStdDev > 0) {
		return goutils.NewConfigValidationError(joinPath(path, "range_stddev"), errors.Errorf("must be positive, got %g", c.RangeStdDev))
	}
	if !utils.IsFinite(c.BearingStdDev) || !(c.BearingStdDev > 0) {
		return goutils.NewConfigValidationError(joinPath(path, "bearing_stddev"), errors.Errorf("must be positive, got %g", c.BearingStdDev))
	}

	ids := map[int]bool{}
	slots := map[int]bool{}
	for i, lm := range c.Landmarks {
		lmPath := fmt.Sprintf("%s.%d", joinPath(path, "landmarks"), i)
		if err := mhe.CheckIndex(lm.Slot, c.NumLandmarks); err != nil {
			return goutils.NewConfigValidationError(joinPath(lmPath, "slot"), err)
		}
		if ids[lm.ID] {
			return goutils.NewConfigValidationError(joinPath(lmPath, "id"), errors.Errorf("duplicate marker id %d", lm.ID))
		}
		if slots[lm.Slot] {
			return goutils.NewConfigValidationError(joinPath(lmPath, "slot"), errors.Errorf("duplicate slot %d", lm.Slot))
		}
		if !utils.IsFinite(lm.X, lm.Y) {
			return goutils.NewConfigValidationError(lmPath, errors.New("position must be finite"))
		}
		ids[lm.ID] = true
		slots[lm.Slot] = true
	}

	if err := c.Solver.Validate(joinPath(path, "solver")); err != nil {
		return err
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return goutils.NewConfigValidationError(joinPath(path, "log.level"), err)
	}
	return nil
}

// Validate checks the solver section.
func (s Solver) Validate(path string) error {
	switch mhe.Backend(strings.ToLower(s.Backend)) {
	case "", mhe.BackendLevenbergMarquardt, mhe.BackendNlopt:
	default:
		return goutils.NewConfigValidationError(joinPath(path, "backend"), errors.Errorf("unknown backend %q", s.Backend))
	}
	if s.MaxIterations < 0 {
		return goutils.NewConfigValidationError(joinPath(path, "max_iterations"), errors.New("must not be negative"))
	}
	if s.NumThreads < 0 {
		return goutils.NewConfigValidationError(joinPath(path, "num_threads"), errors.New("must not be negative"))
	}
	if s.FunctionTolerance < 0 {
		return goutils.NewConfigValidationError(joinPath(path, "function_tolerance"), errors.New("must not be negative"))
	}
	if _, err := solver.LinearSolverTypeFromString(s.LinearSolver); err != nil {
		return goutils.NewConfigValidationError(joinPath(path, "linear_solver"), err)
	}
	return nil
}

// Options converts the solver section to solver options. It assumes Validate passed.
func (s Solver) Options() solver.Options {
	opts := solver.DefaultOptions()
	if s.MaxIterations > 0 {
		opts.MaxIterations = s.MaxIterations
	}
	if s.NumThreads > 0 {
		opts.NumThreads = s.NumThreads
	}
	if s.FunctionTolerance > 0 {
		opts.FunctionTolerance = s.FunctionTolerance
	}
	if kind, err := solver.LinearSolverTypeFromString(s.LinearSolver); err == nil {
		opts.LinearSolver = kind
	}
	return opts
}

// EstimatorOptions returns the options passed to mhe.NewEstimator.
func (c *Config) EstimatorOptions() mhe.Options {
	return mhe.Options{
		Horizon:        c.Horizon,
		NumLandmarks:   c.NumLandmarks,
		MaxHistory:     c.MaxHistory,
		Backend:        mhe.Backend(strings.ToLower(c.Solver.Backend)),
		Solver:         c.Solver.Options(),
		LandmarksPath:  c.Output.LandmarksPath,
		TrajectoryPath: c.Output.TrajectoryPath,
	}
}

// Build constructs and configures an estimator, seeds every landmark and registers its marker id.
func (c *Config) Build(logger logging.Logger) (*mhe.Estimator, *sensors.MarkerRegistry, error) {
	if err := c.Validate(""); err != nil {
		return nil, nil, err
	}
	est, err := mhe.NewEstimator(c.EstimatorOptions(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := est.Configure(c.SeedPose, c.PriorPrecision, c.OdometryPrecision, c.RangeStdDev, c.BearingStdDev); err != nil {
		return nil, nil, err
	}
	registry := sensors.NewMarkerRegistry(est.Options().NumLandmarks)
	for _, lm := range c.Landmarks {
		if err := est.SeedLandmark(lm.Slot, lm.Point()); err != nil {
			return nil, nil, err
		}
		if err := registry.Register(lm.ID, lm.Slot); err != nil {
			return nil, nil, err
		}
	}
	return est, registry, nil
}
