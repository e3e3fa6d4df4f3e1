// Package report renders terrain risk maps and run analytics: static
// PNGs via gonum/plot for archival, interactive HTML via go-echarts for
// the debug endpoints.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/sim"
	"github.com/varun99015/stellarroute/internal/terrain"
)

// riskGrid adapts a terrain model's risk surface to the plotter's
// GridXYZ interface.
type riskGrid struct {
	model *terrain.Model
}

func (g riskGrid) Dims() (c, r int)   { return g.model.Width(), g.model.Height() }
func (g riskGrid) Z(c, r int) float64 { return g.model.RiskAt(terrain.Cell{X: c, Y: r}) }
func (g riskGrid) X(c int) float64    { return float64(c) }
func (g riskGrid) Y(r int) float64    { return float64(r) }

// RiskHeatmap renders the model's risk surface as a PNG with the given
// routes drawn over it, one color per route.
func RiskHeatmap(model *terrain.Model, routes []pathing.Route, outPath string) error {
	if model == nil {
		return fmt.Errorf("report: nil terrain model")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Terrain Risk"
	p.X.Label.Text = "X (cells)"
	p.Y.Label.Text = "Y (cells)"

	heat := plotter.NewHeatMap(riskGrid{model}, palette.Heat(12, 1))
	p.Add(heat)

	colors := generateColors(len(routes))
	for i, route := range routes {
		if len(route.Path) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(route.Path))
		for j, cell := range route.Path {
			pts[j] = plotter.XY{X: float64(cell.X), Y: float64(cell.Y)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("route %s: %w", route.Name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (λ=%.2f)", route.Name, route.Lambda), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 10*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// ErrorSeriesPlot renders a run's position error over time as a PNG,
// with a second line marking the storm index so outage windows are
// readable against the error spikes.
func ErrorSeriesPlot(res *sim.RunResult, outPath string) error {
	if res == nil || len(res.Records) == 0 {
		return fmt.Errorf("report: run has no records")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s (%s)", res.ID, res.Scenario)
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Position Error (m)"

	errPts := make(plotter.XYs, len(res.Records))
	kpPts := make(plotter.XYs, len(res.Records))
	for i, r := range res.Records {
		errPts[i] = plotter.XY{X: float64(r.Tick), Y: r.Error}
		kpPts[i] = plotter.XY{X: float64(r.Tick), Y: r.Kp}
	}

	errLine, err := plotter.NewLine(errPts)
	if err != nil {
		return err
	}
	errLine.Color = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	errLine.Width = vg.Points(1)
	p.Add(errLine)
	p.Legend.Add("error (m)", errLine)

	kpLine, err := plotter.NewLine(kpPts)
	if err != nil {
		return err
	}
	kpLine.Color = color.RGBA{R: 60, G: 60, B: 200, A: 255}
	kpLine.Width = vg.Points(1)
	kpLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(kpLine)
	p.Legend.Add("kp index", kpLine)

	p.Legend.Top = true

	if err := p.Save(14*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save error series: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for route lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
