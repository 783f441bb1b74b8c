// Package mhe implements a moving horizon estimator for a differential-drive robot observing
// landmarks at known positions. Each update propagates the last estimate with the motion model,
// logs the cycle and re-solves a least squares problem over the trailing horizon.
package mhe

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mhe/kinematics"
	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe/residual"
	"go.viam.com/mhe/solver"
	"go.viam.com/mhe/spatialmath"
	"go.viam.com/mhe/utils"
)

// Defaults for Options.
const (
	DefaultHorizon      = 5
	DefaultNumLandmarks = 9
)

// Backend selects the solver implementation.
type Backend string

// Known solver backends.
const (
	BackendLevenbergMarquardt Backend = "levenberg_marquardt"
	BackendNlopt              Backend = "nlopt"
)

// Options sizes the estimator. Zero values take defaults.
type Options struct {
	Horizon      int
	NumLandmarks int
	// MaxHistory caps the number of retained poses. 0 keeps everything.
	MaxHistory int

	Backend Backend
	Solver  solver.Options

	LandmarksPath  string
	TrajectoryPath string

	// Clock times update cycles. Defaults to the wall clock.
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.Horizon == 0 {
		o.Horizon = DefaultHorizon
	}
	if o.NumLandmarks == 0 {
		o.NumLandmarks = DefaultNumLandmarks
	}
	if o.Backend == "" {
		o.Backend = BackendLevenbergMarquardt
	}
	if o.LandmarksPath == "" {
		o.LandmarksPath = DefaultLandmarksPath
	}
	if o.TrajectoryPath == "" {
		o.TrajectoryPath = DefaultTrajectoryPath
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Validate checks the option sizes after defaults are applied.
func (o Options) Validate() error {
	if o.Horizon < 1 {
		return errors.Errorf("horizon must be at least 1, got %d", o.Horizon)
	}
	if o.NumLandmarks < 0 {
		return errors.Errorf("number of landmarks must not be negative, got %d", o.NumLandmarks)
	}
	if o.MaxHistory != 0 && o.MaxHistory < o.Horizon+1 {
		return errors.Errorf("max history must be 0 or at least horizon+1 (%d), got %d", o.Horizon+1, o.MaxHistory)
	}
	switch o.Backend {
	case BackendLevenbergMarquardt, BackendNlopt:
	default:
		return errors.Errorf("unknown solver backend %q", o.Backend)
	}
	return nil
}

// Estimator owns the history, the landmark table and the noise model. Calls must be serialized
// by the caller; the mutex only guards the accessors against a concurrent Update.
type Estimator struct {
	mu     sync.Mutex
	opts   Options
	logger logging.Logger
	solver solver.Solver

	history        *History
	landmarks      []r2.Point
	seeded         []bool
	warnedUnseeded []bool

	configured          bool
	priorWhitener       *residual.Whitener
	odometryWhitener    *residual.Whitener
	measurementWhitener *residual.Whitener

	lastSummary  *solver.Summary
	lastDuration time.Duration
	closed       bool
	closeErr     error
}

// NewEstimator returns an unconfigured estimator.
func NewEstimator(opts Options, logger logging.Logger) (*Estimator, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("mhe")
	}

	var s solver.Solver
	switch opts.Backend {
	case BackendNlopt:
		nl, err := solver.NewNlopt(opts.Solver, logger.Sublogger("solver"))
		if err != nil {
			return nil, err
		}
		s = nl
	default:
		s = solver.NewLevenbergMarquardt(opts.Solver, logger.Sublogger("solver"))
	}

	return &Estimator{
		opts:           opts,
		logger:         logger,
		solver:         s,
		history:        newHistory(opts.MaxHistory),
		landmarks:      make([]r2.Point, opts.NumLandmarks),
		seeded:         make([]bool, opts.NumLandmarks),
		warnedUnseeded: make([]bool, opts.NumLandmarks),
	}, nil
}

// Options returns the options in use, with defaults applied.
func (e *Estimator) Options() Options {
	return e.opts
}

// Configure sets the noise model and appends seed as the first pose. priorDiag and odomDiag are
// the diagonals of the pose prior and odometry precision matrices; the measurement precision is
// diag(1/rangeStd², 1/bearingStd²). Nothing changes if it fails.
func (e *Estimator) Configure(seed spatialmath.Pose, priorDiag, odomDiag [3]float64, rangeStd, bearingStd float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configured {
		return NewConfigurationError("estimator", "already configured")
	}
	if !seed.IsFinite() {
		return NewConfigurationError("seed_pose", fmt.Sprintf("must be finite, got %v", seed))
	}
	for _, s := range []struct {
		name string
		v    float64
	}{{"range_stddev", rangeStd}, {"bearing_stddev", bearingStd}} {
		if !utils.IsFinite(s.v) || !(s.v > 0) {
			return NewConfigurationError(s.name, fmt.Sprintf("must be positive and finite, got %g", s.v))
		}
	}

	prior, err := diagonalWhitener("prior_precision", priorDiag[:]...)
	if err != nil {
		return err
	}
	odom, err := diagonalWhitener("odometry_precision", odomDiag[:]...)
	if err != nil {
		return err
	}
	meas, err := diagonalWhitener("measurement_precision", 1/utils.Square(rangeStd), 1/utils.Square(bearingStd))
	if err != nil {
		return err
	}

	e.priorWhitener = prior
	e.odometryWhitener = odom
	e.measurementWhitener = meas
	e.history.seed(seed)
	e.configured = true
	e.logger.Debugw("configured", "seed", seed, "prior", priorDiag, "odometry", odomDiag,
		"range_stddev", rangeStd, "bearing_stddev", bearingStd)
	return nil
}

func diagonalWhitener(field string, diag ...float64) (*residual.Whitener, error) {
	for i, d := range diag {
		if !utils.IsFinite(d) || !(d > 0) {
			return nil, NewConfigurationError(field, fmt.Sprintf("entry %d must be positive and finite, got %g", i, d))
		}
	}
	w, err := residual.NewDiagonalWhitener(diag...)
	if err != nil {
		return nil, NewConfigurationError(field, err.Error())
	}
	return w, nil
}

// Configured reports whether Configure has succeeded.
func (e *Estimator) Configured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configured
}

// SeedLandmark sets the known position of a landmark slot. It may be called before or after
// Configure.
func (e *Estimator) SeedLandmark(slot int, pos r2.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := CheckIndex(slot, len(e.landmarks)); err != nil {
		return err
	}
	if !utils.IsFinite(pos.X, pos.Y) {
		return errors.Errorf("landmark %d position must be finite, got %v", slot, pos)
	}
	e.landmarks[slot] = pos
	e.seeded[slot] = true
	return nil
}

// Update runs one estimation cycle: propagate the current estimate by u over dt, log the pose,
// increment and measurement table, replace the visibility snapshot and optimize the window.
// Errors are only returned for bad arguments, before anything is changed; solver outcomes are
// reported through LastSummary.
func (e *Estimator) Update(z MeasurementTable, vis *Visibility, u kinematics.Input, dt float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.configured {
		return ErrNotConfigured
	}
	if err := e.checkUpdate(z, vis, u, dt); err != nil {
		return err
	}
	start := e.opts.Clock.Now()

	pose, increment := kinematics.PropagateState(e.history.Last(), u, dt)
	e.history.append(pose, increment, z.Clone(), vis.Clone())
	e.lastSummary = e.optimize()
	e.lastDuration = e.opts.Clock.Since(start)

	e.logger.Debugw("update",
		"step", e.history.Len()+e.history.Dropped()-1,
		"pose", e.history.Last(),
		"increment", increment,
		"duration", e.lastDuration.Round(time.Microsecond))
	return nil
}

func (e *Estimator) checkUpdate(z MeasurementTable, vis *Visibility, u kinematics.Input, dt float64) error {
	if !utils.IsFinite(dt) || !(dt > 0) {
		return errors.Errorf("dt must be positive and finite, got %g", dt)
	}
	if !utils.IsFinite(u.V, u.W) {
		return errors.Errorf("control input must be finite, got %+v", u)
	}
	if z.Len() != e.opts.NumLandmarks {
		return errors.Errorf("measurement table has %d slots, want %d", z.Len(), e.opts.NumLandmarks)
	}
	if vis == nil {
		return errors.New("visibility matrix is nil")
	}
	if rows, cols := vis.Dims(); rows != e.opts.Horizon || cols != e.opts.NumLandmarks {
		return errors.Errorf("visibility matrix is %dx%d, want %dx%d", rows, cols, e.opts.Horizon, e.opts.NumLandmarks)
	}
	return nil
}

// Pose returns the current estimate, the newest pose in the history. It is the zero pose before
// Configure.
func (e *Estimator) Pose() spatialmath.Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.history.Len() == 0 {
		return spatialmath.Pose{}
	}
	return e.history.Last()
}

// Poses returns a copy of the retained trajectory, oldest first.
func (e *Estimator) Poses() []spatialmath.Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]spatialmath.Pose(nil), e.history.poses...)
}

// Landmarks returns a copy of the landmark table.
func (e *Estimator) Landmarks() []r2.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return landmarksCopy(e.landmarks)
}

// LastSummary returns the outcome of the most recent window solve, or nil before the first Update.
func (e *Estimator) LastSummary() *solver.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSummary == nil {
		return nil
	}
	s := *e.lastSummary
	return &s
}

// LastUpdateDuration returns how long the most recent Update took, as measured by Options.Clock.
func (e *Estimator) LastUpdateDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDuration
}

// Close exports the landmark table and the trajectory to the configured paths. Export errors are
// logged and returned; the estimate stays readable. Subsequent calls return the first result.
func (e *Estimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.closeErr
	}
	e.closed = true
	e.closeErr = ExportFiles(e.opts.LandmarksPath, e.opts.TrajectoryPath, e.landmarks, e.history.poses)
	if e.closeErr != nil {
		e.logger.Errorw("failed to export estimates", "error", e.closeErr)
	} else {
		e.logger.Infow("exported estimates",
			"landmarks", e.opts.LandmarksPath,
			"trajectory", e.opts.TrajectoryPath,
			"poses", e.history.Len())
	}
	return e.closeErr
}
