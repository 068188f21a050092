package spectrum

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/precond/pkg/errors"
)

// Default canvas size used by SavePlot.
const (
	PlotWidth  = 6 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// ScreePlot draws the eigenvalues from largest to smallest. When selected is
// in [1, len(eigenvalues)] a dashed marker separates the kept components
// from the discarded ones.
func ScreePlot(eigenvalues []float64, selected int) (*plot.Plot, error) {
	if len(eigenvalues) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ScreePlot")
	}
	values := Descending(eigenvalues)

	p := plot.New()
	p.Title.Text = "Eigen-spectrum"
	p.X.Label.Text = "Component"
	p.Y.Label.Text = "Eigenvalue"
	p.Add(plotter.NewGrid())

	if err := addSeries(p, "eigenvalue", values); err != nil {
		return nil, errors.Wrap(err, "ScreePlot")
	}

	if selected >= 1 && selected <= len(values) {
		x := float64(selected) + 0.5
		marker, err := plotter.NewLine(plotter.XYs{
			{X: x, Y: values[len(values)-1]},
			{X: x, Y: values[0]},
		})
		if err != nil {
			return nil, errors.Wrap(err, "ScreePlot: selection marker")
		}
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("%d kept", selected), marker)
	}
	return p, nil
}

// CumulativePlot draws the cumulative explained variance in percent. A
// horizontal marker is drawn at threshold when it lies in (0, 100].
func CumulativePlot(eigenvalues []float64, threshold float64) (*plot.Plot, error) {
	if len(eigenvalues) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "CumulativePlot")
	}
	cumulative := CumulativeExplainedVariance(eigenvalues)

	p := plot.New()
	p.Title.Text = "Cumulative explained variance"
	p.X.Label.Text = "Components"
	p.Y.Label.Text = "Explained variance (%)"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	if err := addSeries(p, "cumulative", cumulative); err != nil {
		return nil, errors.Wrap(err, "CumulativePlot")
	}

	if threshold > 0 && threshold <= 100 {
		marker, err := plotter.NewLine(plotter.XYs{
			{X: 1, Y: threshold},
			{X: float64(len(cumulative)), Y: threshold},
		})
		if err != nil {
			return nil, errors.Wrap(err, "CumulativePlot: threshold marker")
		}
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("%g%%", threshold), marker)
	}
	return p, nil
}

func addSeries(p *plot.Plot, name string, values []float64) error {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	p.Add(line, points)
	p.Legend.Add(name, line, points)
	return nil
}

// SavePlot writes p to path. The format follows the file extension
// (.png, .svg, .pdf, ...).
func SavePlot(p *plot.Plot, path string) error {
	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return errors.Wrapf(err, "SavePlot: %s", path)
	}
	return nil
}
