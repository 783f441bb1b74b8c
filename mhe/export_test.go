package mhe

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/mhe/spatialmath"
)

func TestWriteTrajectory(t *testing.T) {
	poses := []spatialmath.Pose{
		{X: 0, Y: 0, Theta: 0},
		{X: 1.0 / 3, Y: -2e-17, Theta: math.Pi},
		{X: 123456.789, Y: 1e300, Theta: -math.Pi / 7},
	}
	var buf bytes.Buffer
	test.That(t, WriteTrajectory(&buf, poses), test.ShouldBeNil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 3)
	test.That(t, lines[0], test.ShouldEqual, "0 0 0")
	test.That(t, len(strings.Fields(lines[1])), test.ShouldEqual, 3)

	read, err := ReadTrajectory(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, poses)
}

func TestWriteLandmarks(t *testing.T) {
	landmarks := []r2.Point{{X: 3, Y: 0}, {X: -0.25, Y: 7.125}, {}}
	var buf bytes.Buffer
	test.That(t, WriteLandmarks(&buf, landmarks), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "3 0\n-0.25 7.125\n0 0\n")

	read, err := ReadLandmarks(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, landmarks)
}

func TestReadErrors(t *testing.T) {
	_, err := ReadLandmarks(strings.NewReader("1 2\n3\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")

	_, err = ReadTrajectory(strings.NewReader("1 2 x\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")

	poses, err := ReadTrajectory(strings.NewReader("\n1 2 3\n\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses, test.ShouldResemble, []spatialmath.Pose{{X: 1, Y: 2, Theta: 3}})

	_, err = ReadTrajectoryFile(filepath.Join(t.TempDir(), "nope"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestExportFiles(t *testing.T) {
	dir := t.TempDir()
	lPath := filepath.Join(dir, "MHE_landmarks.txt")
	tPath := filepath.Join(dir, "MHE_outputs.txt")
	landmarks := []r2.Point{{X: 1, Y: 2}}
	poses := []spatialmath.Pose{{}, {X: 1, Theta: 0.5}}

	test.That(t, ExportFiles(lPath, tPath, landmarks, poses), test.ShouldBeNil)
	read, err := ReadLandmarksFile(lPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, landmarks)

	t.Run("one path fails", func(t *testing.T) {
		bad := filepath.Join(dir, "missing", "l.txt")
		good := filepath.Join(dir, "still_written.txt")
		err := ExportFiles(bad, good, landmarks, poses)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, bad)

		contents, err := os.ReadFile(good)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(contents), test.ShouldEqual, "0 0 0\n1 0 0.5\n")
	})
}
