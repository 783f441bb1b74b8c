package cli

import (
	"image/color"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/spatialmath"
)

var (
	estimateColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	truthColor    = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	landmarkColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// PlotAction renders exported artifacts.
func PlotAction(c *cli.Context) error {
	poses, err := mhe.ReadTrajectoryFile(c.Path(plotFlagTrajectory))
	if err != nil {
		return err
	}
	var landmarks []r2.Point
	if path := c.Path(plotFlagLandmarks); path != "" {
		if landmarks, err = mhe.ReadLandmarksFile(path); err != nil {
			return err
		}
	}
	return PlotTrajectory(c.Path(plotFlagOut), c.Path(plotFlagTrajectory), poses, nil, landmarks)
}

func posesXY(poses []spatialmath.Pose) plotter.XYs {
	pts := make(plotter.XYs, len(poses))
	for i, p := range poses {
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// PlotTrajectory writes a PNG of the estimated trajectory, the ground truth when known and the
// landmarks.
func PlotTrajectory(path, title string, estimate, truth []spatialmath.Pose, landmarks []r2.Point) error {
	if len(estimate) == 0 {
		return errors.New("no poses to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	if len(truth) > 0 {
		truthLine, err := plotter.NewLine(posesXY(truth))
		if err != nil {
			return err
		}
		truthLine.Color = truthColor
		truthLine.Width = vg.Points(1)
		truthLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(truthLine)
		p.Legend.Add("truth", truthLine)
	}

	estimateLine, err := plotter.NewLine(posesXY(estimate))
	if err != nil {
		return err
	}
	estimateLine.Color = estimateColor
	estimateLine.Width = vg.Points(1.5)
	p.Add(estimateLine)
	p.Legend.Add("estimate", estimateLine)

	if len(landmarks) > 0 {
		pts := make(plotter.XYs, len(landmarks))
		for i, lm := range landmarks {
			pts[i] = plotter.XY{X: lm.X, Y: lm.Y}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = landmarkColor
		scatter.GlyphStyle.Shape = draw.CrossGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
		p.Legend.Add("landmarks", scatter)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}
