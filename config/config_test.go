package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/solver"
	"go.viam.com/mhe/spatialmath"
)

const jsonConfig = `{
	"horizon": 4,
	"num_landmarks": 3,
	"seed_pose": {"x": 1, "y": -1, "theta": 0.25},
	"landmarks": [
		{"id": 101, "slot": 0, "x": 3, "y": 0},
		{"id": 205, "slot": 2, "x": -1.5, "y": 2}
	],
	"solver": {"max_iterations": 20, "linear_solver": "dense", "num_threads": 2},
	"output": {"landmarks_path": "${MHE_TEST_DIR}/l.txt", "trajectory_path": "${MHE_TEST_DIR}/t.txt"},
	"log": {"level": "debug"}
}`

const yamlConfig = `
horizon: 6
max_history: 10
range_stddev: 0.5
prior_precision: [2, 2, 1]
landmarks:
  - {id: 1, slot: 4, x: 0.5, y: 0.5}
solver:
  backend: levenberg_marquardt
  function_tolerance: 1e-8
`

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
	test.That(t, cfg.Horizon, test.ShouldEqual, 5)
	test.That(t, cfg.NumLandmarks, test.ShouldEqual, 9)
	test.That(t, cfg.PriorPrecision, test.ShouldResemble, [3]float64{1, 1, 0.5})
	test.That(t, cfg.RangeStdDev, test.ShouldEqual, 0.35)
	test.That(t, cfg.BearingStdDev, test.ShouldEqual, 0.07)
	test.That(t, cfg.Output.TrajectoryPath, test.ShouldEqual, "/tmp/MHE_outputs.txt")

	opts := cfg.Solver.Options()
	test.That(t, opts.MaxIterations, test.ShouldEqual, 50)
	test.That(t, opts.LinearSolver, test.ShouldEqual, solver.SparseNormalCholesky)
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MHE_TEST_DIR", dir)
	cfg, err := Read(writeConfig(t, "mhe.json", jsonConfig))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Horizon, test.ShouldEqual, 4)
	test.That(t, cfg.SeedPose, test.ShouldResemble, spatialmath.Pose{X: 1, Y: -1, Theta: 0.25})
	// unset fields keep their defaults
	test.That(t, cfg.OdometryPrecision, test.ShouldResemble, [3]float64{1, 1, 0.5})
	test.That(t, cfg.Output.LandmarksPath, test.ShouldEqual, filepath.Join(dir, "l.txt"))

	opts := cfg.EstimatorOptions()
	test.That(t, opts.Solver.LinearSolver, test.ShouldEqual, solver.DenseNormalCholesky)
	test.That(t, opts.Solver.MaxIterations, test.ShouldEqual, 20)
	test.That(t, opts.Solver.NumThreads, test.ShouldEqual, 2)
	test.That(t, opts.Backend, test.ShouldEqual, mhe.BackendLevenbergMarquardt)

	est, registry, err := cfg.Build(logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Configured(), test.ShouldBeTrue)
	test.That(t, est.Pose(), test.ShouldResemble, spatialmath.Pose{X: 1, Y: -1, Theta: 0.25})
	lms := est.Landmarks()
	test.That(t, len(lms), test.ShouldEqual, 3)
	test.That(t, lms[0], test.ShouldResemble, r2.Point{X: 3})
	test.That(t, lms[2], test.ShouldResemble, r2.Point{X: -1.5, Y: 2})
	slot, ok := registry.Slot(205)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, slot, test.ShouldEqual, 2)

	test.That(t, est.Close(), test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dir, "t.txt"))
	test.That(t, err, test.ShouldBeNil)
}

func TestReadYAML(t *testing.T) {
	cfg, err := Read(writeConfig(t, "mhe.yaml", yamlConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Horizon, test.ShouldEqual, 6)
	test.That(t, cfg.MaxHistory, test.ShouldEqual, 10)
	test.That(t, cfg.RangeStdDev, test.ShouldEqual, 0.5)
	test.That(t, cfg.BearingStdDev, test.ShouldEqual, 0.07)
	test.That(t, cfg.PriorPrecision, test.ShouldResemble, [3]float64{2, 2, 1})
	test.That(t, cfg.Landmarks, test.ShouldResemble, []Landmark{{ID: 1, Slot: 4, X: 0.5, Y: 0.5}})
	test.That(t, cfg.Solver.Options().FunctionTolerance, test.ShouldEqual, 1e-8)
	test.That(t, FormatFromPath("a/b.YML"), test.ShouldEqual, FormatYAML)
	test.That(t, FormatFromPath("a/b.json"), test.ShouldEqual, FormatJSON)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader(strings.NewReader(`{"horizon": "five"}`), FormatJSON)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader(strings.NewReader(`{"horizons": 5}`), FormatJSON)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader(strings.NewReader("horizon: [1"), FormatYAML)
	test.That(t, err, test.ShouldNotBeNil)

	cfg, err := FromReader(strings.NewReader(""), FormatYAML)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestReadJSON5(t *testing.T) {
	const body = `{
	// shorter window for the test rig
	horizon: 4,
	"num_landmarks": 2,
	"range_stddev": 0.5, /* metres */
	"landmarks": [
		{"id": 11, "slot": 1, "x": 2.5, "y": -1,},
	],
}`
	path := filepath.Join(t.TempDir(), "mhe.json5")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	test.That(t, FormatFromPath(path), test.ShouldEqual, FormatJSON)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Horizon, test.ShouldEqual, 4)
	test.That(t, cfg.NumLandmarks, test.ShouldEqual, 2)
	test.That(t, cfg.RangeStdDev, test.ShouldEqual, 0.5)
	test.That(t, cfg.BearingStdDev, test.ShouldEqual, Default().BearingStdDev)
	test.That(t, cfg.Landmarks, test.ShouldResemble, []Landmark{{ID: 11, Slot: 1, X: 2.5, Y: -1}})

	// comments do not loosen the field check
	_, err = FromReader(strings.NewReader("{\n// typo\nhorizons: 4,\n}"), FormatJSON)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "horizons")

	_, err = FromReader(strings.NewReader("{horizon: 4"), FormatJSON)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"horizon", func(c *Config) { c.Horizon = 0 }, "horizon"},
		{"num landmarks", func(c *Config) { c.NumLandmarks = -2 }, "num_landmarks"},
		{"max history", func(c *Config) { c.MaxHistory = 3 }, "max_history"},
		{"prior", func(c *Config) { c.PriorPrecision[2] = 0 }, "prior_precision.2"},
		{"odometry", func(c *Config) { c.OdometryPrecision[0] = -1 }, "odometry_precision.0"},
		{"range", func(c *Config) { c.RangeStdDev = 0 }, "range_stddev"},
		{"bearing", func(c *Config) { c.BearingStdDev = -0.1 }, "bearing_stddev"},
		{"slot range", func(c *Config) { c.Landmarks = []Landmark{{ID: 1, Slot: 9}} }, "landmarks.0.slot"},
		{"duplicate id", func(c *Config) { c.Landmarks = []Landmark{{ID: 1, Slot: 0}, {ID: 1, Slot: 1}} }, "landmarks.1.id"},
		{"duplicate slot", func(c *Config) { c.Landmarks = []Landmark{{ID: 1, Slot: 0}, {ID: 2, Slot: 0}} }, "landmarks.1.slot"},
		{"backend", func(c *Config) { c.Solver.Backend = "gauss_newton" }, "solver.backend"},
		{"linear solver", func(c *Config) { c.Solver.LinearSolver = "qr" }, "solver.linear_solver"},
		{"threads", func(c *Config) { c.Solver.NumThreads = -1 }, "solver.num_threads"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate("mhe")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "mhe."+tc.field)

			_, _, err = cfg.Build(logging.NewTestLogger(t))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Horizon = 7
	cfg.SeedPose = spatialmath.Pose{X: 0.5, Theta: -1}
	cfg.Landmarks = []Landmark{{ID: 3, Slot: 1, X: 2, Y: -2}}
	cfg.Log.Level = "warn"

	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf strings.Builder
		test.That(t, cfg.Write(&buf, format), test.ShouldBeNil)
		read, err := FromReader(strings.NewReader(buf.String()), format)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read, test.ShouldResemble, cfg)
	}
}

func TestSchema(t *testing.T) {
	out, err := json.Marshal(Schema())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldContainSubstring, "range_stddev")
	test.That(t, string(out), test.ShouldContainSubstring, "linear_solver")
}
