package mhe

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/mhe/spatialmath"
)

// Well known export locations.
const (
	DefaultLandmarksPath  = "/tmp/MHE_landmarks.txt"
	DefaultTrajectoryPath = "/tmp/MHE_outputs.txt"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeRows(w io.Writer, n int, row func(i int) []float64) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		for k, v := range row(i) {
			if k > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(formatFloat(v)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteLandmarks writes one "x y" row per landmark slot.
func WriteLandmarks(w io.Writer, landmarks []r2.Point) error {
	return writeRows(w, len(landmarks), func(i int) []float64 {
		return []float64{landmarks[i].X, landmarks[i].Y}
	})
}

// WriteTrajectory writes one "x y theta" row per pose, oldest first.
func WriteTrajectory(w io.Writer, poses []spatialmath.Pose) error {
	return writeRows(w, len(poses), func(i int) []float64 {
		return poses[i].Slice()
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	if err := write(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ExportFiles writes both artifacts. Both files are attempted and closed even if one fails.
func ExportFiles(landmarksPath, trajectoryPath string, landmarks []r2.Point, poses []spatialmath.Pose) error {
	return multierr.Combine(
		writeFile(landmarksPath, func(w io.Writer) error { return WriteLandmarks(w, landmarks) }),
		writeFile(trajectoryPath, func(w io.Writer) error { return WriteTrajectory(w, poses) }),
	)
}

func readRows(r io.Reader, width int, add func(values []float64)) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != width {
			return errors.Errorf("line %d: expected %d values, got %d", line, width, len(fields))
		}
		values := make([]float64, width)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return errors.Wrapf(err, "line %d", line)
			}
			values[i] = v
		}
		add(values)
	}
	return scanner.Err()
}

// ReadLandmarks parses the output of WriteLandmarks.
func ReadLandmarks(r io.Reader) ([]r2.Point, error) {
	var out []r2.Point
	err := readRows(r, 2, func(v []float64) {
		out = append(out, r2.Point{X: v[0], Y: v[1]})
	})
	return out, err
}

// ReadTrajectory parses the output of WriteTrajectory.
func ReadTrajectory(r io.Reader) ([]spatialmath.Pose, error) {
	var out []spatialmath.Pose
	err := readRows(r, spatialmath.PoseDoF, func(v []float64) {
		out = append(out, spatialmath.Pose{X: v[0], Y: v[1], Theta: v[2]})
	})
	return out, err
}

// ReadLandmarksFile reads a landmarks artifact from disk.
func ReadLandmarksFile(path string) ([]r2.Point, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ReadLandmarks(f)
}

// ReadTrajectoryFile reads a trajectory artifact from disk.
func ReadTrajectoryFile(path string) ([]spatialmath.Pose, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ReadTrajectory(f)
}
