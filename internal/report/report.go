// Package report renders estimation-run summaries: an HTML page with a
// zmode histogram and a mean-vs-mode scatter (go-echarts), and PNG
// posterior-density plots for selected sources (gonum/plot).
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/photoz/internal/pzdb"
)

// histBinWidth is the zmode histogram bin width in redshift units.
const histBinWidth = 0.1

// WriteHTML renders the run report page for a set of results.
func WriteHTML(w io.Writer, title string, results []pzdb.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("report: no results to render")
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(zmodeHistogram(results), muScatter(results))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render page: %w", err)
	}
	return nil
}

func zmodeHistogram(results []pzdb.Result) *charts.Bar {
	// Bins can be negative when a grid is configured with zmin < 0.
	first := int(math.Floor(results[0].ZMode / histBinWidth))
	minBin, maxBin := first, first
	counts := map[int]int{}
	for _, r := range results {
		b := int(math.Floor(r.ZMode / histBinWidth))
		counts[b]++
		if b < minBin {
			minBin = b
		}
		if b > maxBin {
			maxBin = b
		}
	}

	labels := make([]string, maxBin-minBin+1)
	data := make([]opts.BarData, maxBin-minBin+1)
	for b := minBin; b <= maxBin; b++ {
		labels[b-minBin] = fmt.Sprintf("%.1f", float64(b)*histBinWidth)
		data[b-minBin] = opts.BarData{Value: counts[b]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "zmode distribution"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "zmode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "sources"}),
	)
	bar.SetXAxis(labels).AddSeries("sources", data)
	return bar
}

func muScatter(results []pzdb.Result) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(results))
	for _, r := range results {
		data = append(data, opts.ScatterData{Value: []interface{}{r.Mu, r.ZMode, r.Sigma}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "predictive mean vs posterior mode"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "mu"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "zmode"}),
	)
	scatter.AddSeries("sources", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	return scatter
}
