package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/varun99015/stellarroute/internal/pathing"
	"github.com/varun99015/stellarroute/internal/sim"
)

// RouteComparisonChart renders the distance/risk trade-off of the given
// routes as an interactive scatter chart. Each point is one route; the
// visual map colors by lambda so the risk-aversion sweep is readable at
// a glance.
func RouteComparisonChart(routes []pathing.Route, w io.Writer) error {
	if len(routes) == 0 {
		return fmt.Errorf("report: no routes to chart")
	}

	maxLambda := 0.0
	data := make([]opts.ScatterData, 0, len(routes))
	for _, r := range routes {
		if r.Lambda > maxLambda {
			maxLambda = r.Lambda
		}
		data = append(data, opts.ScatterData{
			Name:  r.Name,
			Value: []interface{}{r.Metrics.Distance, r.Metrics.TotalRisk, r.Lambda},
		})
	}
	if maxLambda == 0 {
		maxLambda = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Route Trade-offs", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Route Trade-offs", Subtitle: fmt.Sprintf("routes=%d", len(routes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (cells)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Total Risk", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxLambda),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("routes", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	return scatter.Render(w)
}

// RunErrorChart renders a run's per-tick position error and storm index
// as an interactive line chart.
func RunErrorChart(res *sim.RunResult, w io.Writer) error {
	if res == nil || len(res.Records) == 0 {
		return fmt.Errorf("report: run has no records")
	}

	ticks := make([]string, len(res.Records))
	errSeries := make([]opts.LineData, len(res.Records))
	kpSeries := make([]opts.LineData, len(res.Records))
	for i, r := range res.Records {
		ticks[i] = fmt.Sprintf("%d", r.Tick)
		errSeries[i] = opts.LineData{Value: r.Error}
		kpSeries[i] = opts.LineData{Value: r.Kp}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Error", Theme: "dark", Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Run %s", res.ID),
			Subtitle: fmt.Sprintf("scenario=%s mean=%.2fm p95=%.2fm resyncs=%d", res.Scenario, res.Stats.MeanError, res.Stats.P95Error, res.Stats.Resyncs),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Error (m) / Kp"}),
	)
	line.SetXAxis(ticks).
		AddSeries("error (m)", errSeries).
		AddSeries("kp index", kpSeries)

	return line.Render(w)
}
