package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartWidth  = 20 * vg.Centimeter
	chartHeight = 10 * vg.Centimeter
)

// WriteIndexedRateChart renders hourly indexed rates (EUR/kWh) as a PNG line chart, with the fixed tariff's
// effective rate drawn as a flat reference line.
func WriteIndexedRateChart(w io.Writer, title string, rates []telemetry.Sample, flatRate float64) error {
	if len(rates) == 0 {
		return errors.New("no indexed rates to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (UTC+1)"
	p.Y.Label.Text = "EUR/kWh"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04", Time: plot.UnixTimeIn(timeutils.TariffZone)}
	p.Add(plotter.NewGrid())

	indexed := make(plotter.XYs, len(rates))
	flat := make(plotter.XYs, len(rates))
	for i, s := range rates {
		x := float64(s.Time.Unix())
		indexed[i] = plotter.XY{X: x, Y: s.Value}
		flat[i] = plotter.XY{X: x, Y: flatRate}
	}

	indexedLine, err := plotter.NewLine(indexed)
	if err != nil {
		return fmt.Errorf("indexed line: %w", err)
	}
	indexedLine.Color = color.RGBA{R: 12, G: 77, B: 162, A: 255}
	indexedLine.Width = vg.Points(1.5)

	flatLine, err := plotter.NewLine(flat)
	if err != nil {
		return fmt.Errorf("flat line: %w", err)
	}
	flatLine.Color = color.RGBA{R: 230, G: 57, B: 70, A: 255}
	flatLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(indexedLine, flatLine)
	p.Legend.Add("Indexed", indexedLine)
	p.Legend.Add("Fixed", flatLine)
	p.Legend.Top = true

	canvas := vgimg.New(chartWidth, chartHeight)
	p.Draw(draw.New(canvas))

	_, err = vgimg.PngCanvas{Canvas: canvas}.WriteTo(w)
	if err != nil {
		return fmt.Errorf("encode chart png: %w", err)
	}
	return nil
}
