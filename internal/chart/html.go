package chart

import (
	"errors"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"sales-voice-go/internal/model"
)

// ErrNoChart is returned when asked to render a nil chart.
var ErrNoChart = errors.New("no chart to render")

// RenderHTML writes a standalone ECharts page for c.
func RenderHTML(w io.Writer, c *model.Chart) error {
	if c == nil {
		return ErrNoChart
	}
	title := charts.WithTitleOpts(opts.Title{Title: c.Title})

	switch c.Kind {
	case KindPie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(title)
		items := make([]opts.PieData, len(c.Labels))
		for i, label := range c.Labels {
			items[i] = opts.PieData{Name: label, Value: c.Values[i]}
		}
		pie.AddSeries(c.YLabel, items)
		return pie.Render(w)

	case KindLine:
		line := charts.NewLine()
		line.SetGlobalOptions(title,
			charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel}),
			charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
		)
		items := make([]opts.LineData, len(c.Values))
		for i, v := range c.Values {
			items[i] = opts.LineData{Value: v}
		}
		line.SetXAxis(c.Labels).AddSeries(c.YLabel, items)
		return line.Render(w)

	default:
		bar := charts.NewBar()
		bar.SetGlobalOptions(title,
			charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel}),
			charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
		)
		items := make([]opts.BarData, len(c.Values))
		for i, v := range c.Values {
			items[i] = opts.BarData{Value: v}
		}
		bar.SetXAxis(c.Labels).AddSeries(c.YLabel, items)
		return bar.Render(w)
	}
}
