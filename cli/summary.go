package cli

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	goutils "go.viam.com/utils"

	"go.viam.com/mhe/solver"
	"go.viam.com/mhe/spatialmath"
	"go.viam.com/mhe/utils"
)

const (
	histogramBins  = 8
	histogramWidth = 40
)

// runStats accumulates per-cycle results of a replay.
type runStats struct {
	id          string
	steps       int
	dropped     int
	iterations  []float64
	evaluations []float64
	finalCosts  []float64
	durations   []float64
	terminated  map[solver.TerminationType]int
	posErrors   []float64
	headErrors  []float64
	final       spatialmath.Pose
	numPoses    int
	exportError error
}

func newRunStats(id string) *runStats {
	return &runStats{id: id, terminated: map[solver.TerminationType]int{}}
}

func (s *runStats) addSolve(summary *solver.Summary, elapsed time.Duration) {
	s.steps++
	s.durations = append(s.durations, float64(elapsed)/float64(time.Millisecond))
	if summary == nil {
		return
	}
	s.iterations = append(s.iterations, float64(summary.Iterations))
	s.evaluations = append(s.evaluations, float64(summary.Evaluations))
	s.finalCosts = append(s.finalCosts, summary.FinalCost)
	s.terminated[summary.Termination]++
}

func (s *runStats) addTruth(estimate, truth spatialmath.Pose) {
	s.posErrors = append(s.posErrors, estimate.Point().Sub(truth.Point()).Norm())
	s.headErrors = append(s.headErrors, utils.RadToDeg(math.Abs(utils.AngleDiff(estimate.Theta, truth.Theta))))
}

// describe summarizes data as "mean / p95 / max", or "-" when empty.
func describe(data stats.Float64Data, format string) string {
	if len(data) == 0 {
		return "-"
	}
	mean, errMean := stats.Mean(data)
	p95, errP95 := stats.Percentile(data, 95)
	maxV, errMax := stats.Max(data)
	if errMean != nil || errP95 != nil || errMax != nil {
		return "-"
	}
	return fmt.Sprintf(format+" / "+format+" / "+format, mean, p95, maxV)
}

func (s *runStats) render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("run %s", s.id)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"cycles", s.steps},
		{"poses exported", s.numPoses},
		{"dropped detections", s.dropped},
		{"converged", s.terminated[solver.Convergence]},
		{"not converged", s.terminated[solver.NoConvergence]},
		{"failed", s.terminated[solver.Failure]},
		{"iterations (mean / p95 / max)", describe(s.iterations, "%.1f")},
		{"evaluations (mean / p95 / max)", describe(s.evaluations, "%.1f")},
		{"final cost (mean / p95 / max)", describe(s.finalCosts, "%.3g")},
		{"update ms (mean / p95 / max)", describe(s.durations, "%.2f")},
	})
	if len(s.posErrors) > 0 {
		rms, err := stats.RootMeanSquare(s.posErrors)
		if err == nil {
			t.AppendRow(table.Row{"position error RMS", fmt.Sprintf("%.4f", rms)})
		}
		t.AppendRows([]table.Row{
			{"position error (mean / p95 / max)", describe(s.posErrors, "%.4f")},
			{"heading error deg (mean / p95 / max)", describe(s.headErrors, "%.3f")},
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"final pose", s.final.String()})
	if s.exportError != nil {
		t.AppendRow(table.Row{"export", s.exportError.Error()})
	}
	t.Render()

	if len(s.posErrors) > 1 {
		fmt.Fprintln(w, "position error distribution (m)")
		goutils.UncheckedError(histogram.Fprint(w, histogram.Hist(histogramBins, s.posErrors), histogram.Linear(histogramWidth)))
	}
}
