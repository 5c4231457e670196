// Package render turns aggregation summaries into chart specifications and,
// for chart kinds that support it, rendered PNG images. A ChartSpec carries
// everything a front end needs to draw the chart: data, titles, colors, and
// the extreme-point annotation. Pixel-level layout stays with the consumer.
package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// Kind names a chart type served by the dashboard.
type Kind string

const (
	KindRegionalBar Kind = "regions"
	KindSeasonal    Kind = "seasonal"
	KindCityTrends  Kind = "cities"
	KindHeatmap     Kind = "heatmap"
)

// Palettes maps chart kinds to ordered hex color lists. Palettes are explicit
// configuration passed by value; there is no process-global color registry.
type Palettes struct {
	RegionalBar []string `yaml:"regional_bar" json:"regionalBar"`
	Seasonal    []string `yaml:"seasonal" json:"seasonal"`
	CityTrends  []string `yaml:"city_trends" json:"cityTrends"`
	Heatmap     []string `yaml:"heatmap" json:"heatmap"`
	NoData      string   `yaml:"no_data" json:"noData"`
}

// DefaultPalettes returns the stock dashboard colors: a seven-color seasonal
// set, a four-color city set, and an orange ramp for the heatmap.
func DefaultPalettes() Palettes {
	heatmap := make([]string, 0, 10)
	for i := 16; i < 256; i += 24 {
		heatmap = append(heatmap, fmt.Sprintf("#FEA9%02X", i))
	}
	return Palettes{
		RegionalBar: []string{"#C7E171"},
		Seasonal:    []string{"#C77CFF", "#FEA903", "#C7E171", "#FFDAB9", "#CCE2CE", "#FFF200", "#DCD0FF"},
		CityTrends:  []string{"#C7E171", "#C77CFF", "#FEA903", "#E0EAFF"},
		Heatmap:     heatmap,
		NoData:      "#FFFFFF",
	}
}

// Annotation marks one point worth calling out, with a preformatted label.
type Annotation struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Bar is one category bar.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Point is one (x, y) sample of a line series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is one named line with its assigned palette color.
type Series struct {
	Name       string      `json:"name"`
	Color      string      `json:"color"`
	Points     []Point     `json:"points"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// CountryFill is one country's choropleth fill.
type CountryFill struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
	Color   string  `json:"color"`
}

// ChartSpec is the full description of one chart. Exactly one of Bars,
// Series, or Fills is populated, depending on Kind.
type ChartSpec struct {
	Kind        Kind          `json:"kind"`
	Title       string        `json:"title"`
	XLabel      string        `json:"xLabel"`
	YLabel      string        `json:"yLabel"`
	XTickLabels []string      `json:"xTickLabels,omitempty"`
	Bars        []Bar         `json:"bars,omitempty"`
	Series      []Series      `json:"series,omitempty"`
	Fills       []CountryFill `json:"fills,omitempty"`
	// NoDataColor is the fill for countries absent from Fills; consumers
	// render them as an explicit "No Data" legend entry.
	NoDataColor string      `json:"noDataColor,omitempty"`
	Annotation  *Annotation `json:"annotation,omitempty"`
	Palette     []string    `json:"palette"`
}

var monthTicks = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// RegionalBar builds the mean-temperature-by-region bar chart. The summary
// must already be sorted ascending by mean; the extreme per mode is annotated
// at its bar position with the value to two decimals.
func RegionalBar(summary *temps.Summary, mode temps.ExtremeMode, p Palettes) ChartSpec {
	spec := ChartSpec{
		Kind:    KindRegionalBar,
		Title:   "Average Temperature by Region",
		XLabel:  "Region",
		YLabel:  "Average Temperature (°C)",
		Palette: p.RegionalBar,
	}
	for _, g := range summary.Groups() {
		spec.Bars = append(spec.Bars, Bar{Label: g.Key[0], Value: g.Mean})
	}
	if extreme, ok := temps.Extreme(summary, mode); ok {
		label := "Max"
		if mode == temps.Min {
			label = "Min"
		}
		for i, b := range spec.Bars {
			if b.Label == extreme.Key[0] {
				spec.Annotation = &Annotation{
					Label: fmt.Sprintf("%s Temp: %.2f°C", label, extreme.Mean),
					X:     float64(i),
					Y:     extreme.Mean,
				}
				break
			}
		}
	}
	return spec
}

// SeasonalLines builds one monthly-mean line per selected region from a
// Region+Month summary. Regions with no observations are skipped and reported
// back so the caller can log them. Colors cycle through the seasonal palette
// in selection order; each series annotates its highest month to one decimal.
func SeasonalLines(seasonal *temps.Summary, regions []string, p Palettes) (ChartSpec, []string) {
	spec := ChartSpec{
		Kind:        KindSeasonal,
		Title:       "Seasonal Temperature Trends",
		XLabel:      "Month",
		YLabel:      "Average Temperature (°C)",
		XTickLabels: monthTicks,
		Palette:     p.Seasonal,
	}

	var skipped []string
	for i, region := range regions {
		series := Series{Name: region, Color: paletteColor(p.Seasonal, i)}
		for month := 1; month <= 12; month++ {
			mean, ok := seasonal.Mean(region, fmt.Sprintf("%d", month))
			if !ok {
				continue
			}
			pt := Point{X: float64(month), Y: mean}
			series.Points = append(series.Points, pt)
			if series.Annotation == nil || pt.Y > series.Annotation.Y {
				series.Annotation = &Annotation{
					Label: fmt.Sprintf("Highest: %.1f°C", pt.Y),
					X:     pt.X,
					Y:     pt.Y,
				}
			}
		}
		if len(series.Points) == 0 {
			skipped = append(skipped, region)
			continue
		}
		spec.Series = append(spec.Series, series)
	}
	return spec, skipped
}

// CityTrendLines builds one daily line per selected city for one year from
// already-cleaned records. X is the day of year; points are sorted
// chronologically. Each series annotates its warmest day to one decimal.
// Cities with no observations in the year are skipped silently (an empty
// selection degrades to an empty chart).
func CityTrendLines(records []temps.Record, cities []string, year int, p Palettes) ChartSpec {
	spec := ChartSpec{
		Kind:    KindCityTrends,
		Title:   fmt.Sprintf("Temperature Trends for Selected Cities (%d)", year),
		XLabel:  "Day of Year",
		YLabel:  "Average Temperature (°C)",
		Palette: p.CityTrends,
	}

	byCity := make(map[string][]temps.Record)
	for _, r := range records {
		if r.Year == year {
			byCity[r.City] = append(byCity[r.City], r)
		}
	}

	for i, city := range cities {
		obs := byCity[city]
		if len(obs) == 0 {
			continue
		}
		sort.SliceStable(obs, func(a, b int) bool {
			if obs[a].Month != obs[b].Month {
				return obs[a].Month < obs[b].Month
			}
			return obs[a].Day < obs[b].Day
		})

		series := Series{Name: city, Color: paletteColor(p.CityTrends, i)}
		for _, r := range obs {
			pt := Point{X: dayOfYear(r), Y: r.TempCelsius}
			series.Points = append(series.Points, pt)
			if series.Annotation == nil || pt.Y > series.Annotation.Y {
				series.Annotation = &Annotation{
					Label: fmt.Sprintf("%s: %.1f°C", city, pt.Y),
					X:     pt.X,
					Y:     pt.Y,
				}
			}
		}
		spec.Series = append(spec.Series, series)
	}
	return spec
}

// Heatmap builds the per-country choropleth fills from a Country summary.
// Fills are bucketed linearly across the heatmap palette between the observed
// min and max means; countries not in the summary take NoDataColor. The
// hottest country is annotated to one decimal.
func Heatmap(byCountry *temps.Summary, p Palettes) ChartSpec {
	spec := ChartSpec{
		Kind:        KindHeatmap,
		Title:       "Global Temperature Heatmap",
		Palette:     p.Heatmap,
		NoDataColor: p.NoData,
	}

	lo, okLo := temps.Extreme(byCountry, temps.Min)
	hi, okHi := temps.Extreme(byCountry, temps.Max)
	if !okLo || !okHi {
		return spec
	}

	span := hi.Mean - lo.Mean
	for _, g := range byCountry.Groups() {
		frac := 0.0
		if span > 0 {
			frac = (g.Mean - lo.Mean) / span
		}
		idx := int(frac * float64(len(p.Heatmap)-1))
		spec.Fills = append(spec.Fills, CountryFill{
			Country: g.Key[0],
			Mean:    g.Mean,
			Color:   paletteColor(p.Heatmap, idx),
		})
	}
	spec.Annotation = &Annotation{
		Label: fmt.Sprintf("%s\n%.1f°C", hi.Key[0], hi.Mean),
		Y:     hi.Mean,
	}
	return spec
}

func paletteColor(palette []string, i int) string {
	if len(palette) == 0 {
		return ""
	}
	return palette[i%len(palette)]
}

func dayOfYear(r temps.Record) float64 {
	return float64(time.Date(r.Year, time.Month(r.Month), r.Day, 0, 0, 0, 0, time.UTC).YearDay())
}
