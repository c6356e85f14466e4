package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/depotcharge/core/report"
)

// WriteSiteChartHTML renders the site profile as an HTML line chart: grid
// energy per slot, the site limit when one applies, and the mean price.
// limit returns the site energy limit of a slot, or a negative value for an
// unconstrained site.
func WriteSiteChartHTML(w io.Writer, title string, site []report.SiteRow, limit func(time.Time) float64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kWh / price"}),
	)

	xAxis := make([]string, 0, len(site))
	energy := make([]opts.LineData, 0, len(site))
	price := make([]opts.LineData, 0, len(site))
	var capData []opts.LineData
	for _, s := range site {
		xAxis = append(xAxis, s.Slot.Format("2006-01-02 15:04"))
		energy = append(energy, opts.LineData{Value: round(s.EnergyKWh)})
		price = append(price, opts.LineData{Value: round(s.MeanPrice)})
		if limit != nil {
			if l := limit(s.Slot); l >= 0 {
				capData = append(capData, opts.LineData{Value: round(l)})
			}
		}
	}
	line.SetXAxis(xAxis).
		AddSeries("Site energy", energy).
		AddSeries("Mean price", price)
	if len(capData) == len(site) && len(site) > 0 {
		line.AddSeries("Site limit", capData)
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func round(f float64) float64 { return math.Round(f*1000) / 1000 }
