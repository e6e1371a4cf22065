package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/photoz/internal/ensemble"
)

// PlotPosteriors writes one PNG with the posterior density curves of
// the selected rows, evaluated over the grid. Returns the output path.
func PlotPosteriors(dir string, ens *ensemble.Ensemble, rows []int, grid []float64) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("report: no rows selected for plotting")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "posterior densities"
	p.X.Label.Text = "z"
	p.Y.Label.Text = "p(z)"

	for _, row := range rows {
		if row < 0 || row >= ens.Len() {
			return "", fmt.Errorf("report: row %d out of range for %d posteriors", row, ens.Len())
		}
		pts := make(plotter.XYs, len(grid))
		for i, z := range grid {
			pts[i].X = z
			pts[i].Y = ens.PDF(row, z)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("report: row %d line: %w", row, err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("row %d", row), line)
	}

	out := filepath.Join(dir, "posteriors.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("report: save plot: %w", err)
	}
	return out, nil
}
