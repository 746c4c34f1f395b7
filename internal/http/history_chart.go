package httpapi

import (
	"io"
	"strconv"
	"vitalmesh/internal/models"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderStressChart 输出压力历史折线图（完整 HTML 页面）
func RenderStressChart(w io.Writer, deviceID string, points []models.HistoryPoint) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Stress level",
			Subtitle: deviceID,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Stress (0-100)",
			Min:  0,
			Max:  100,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample"}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
	)

	xAxis := make([]string, 0, len(points))
	items := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xAxis = append(xAxis, strconv.FormatInt(p.SampleNumber, 10))
		items = append(items, opts.LineData{Value: p.StressLevel})
	}

	line.SetXAxis(xAxis).AddSeries("GSR stress", items)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(w)
}
