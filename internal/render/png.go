package render

import (
	"bytes"
	"errors"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrUnsupportedKind is returned for chart kinds with no PNG rendering.
// The choropleth stays JSON-only; painting a world map is the front end's job.
var ErrUnsupportedKind = errors.New("render: chart kind has no PNG rendering")

// ErrEmptyChart is returned when there is nothing to draw.
var ErrEmptyChart = errors.New("render: no data to draw")

// PNG renders a chart specification to a PNG image. Bar and line kinds are
// supported; Heatmap returns ErrUnsupportedKind.
func PNG(spec ChartSpec, width, height int) ([]byte, error) {
	switch spec.Kind {
	case KindRegionalBar:
		return renderBar(spec, width, height)
	case KindSeasonal, KindCityTrends:
		return renderLines(spec, width, height)
	default:
		return nil, ErrUnsupportedKind
	}
}

func renderBar(spec ChartSpec, width, height int) ([]byte, error) {
	if len(spec.Bars) == 0 {
		return nil, ErrEmptyChart
	}

	fill := drawing.ColorFromHex(hexValue(paletteColor(spec.Palette, 0), "C7E171"))
	bars := make([]chart.Value, 0, len(spec.Bars))
	for _, b := range spec.Bars {
		bars = append(bars, chart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: drawing.ColorBlack,
				StrokeWidth: 1,
			},
		})
	}

	title := spec.Title
	if spec.Annotation != nil {
		// BarChart has no annotation layer; surface the extreme in the title.
		title = title + " - " + spec.Annotation.Label
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  width,
		Height: height,
		Bars:   bars,
		YAxis: chart.YAxis{
			Name: spec.YLabel,
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderLines(spec ChartSpec, width, height int) ([]byte, error) {
	var series []chart.Series
	for _, s := range spec.Series {
		// go-chart needs two points to establish a range.
		if len(s.Points) < 2 {
			continue
		}
		xs := make([]float64, len(s.Points))
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i] = p.X
			ys[i] = p.Y
		}
		color := drawing.ColorFromHex(hexValue(s.Color, "C7E171"))
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
			},
		})
		if s.Annotation != nil {
			series = append(series, chart.AnnotationSeries{
				Annotations: []chart.Value2{{
					XValue: s.Annotation.X,
					YValue: s.Annotation.Y,
					Label:  s.Annotation.Label,
				}},
				Style: chart.Style{
					StrokeColor: color,
					FontColor:   color,
				},
			})
		}
	}
	if len(series) == 0 {
		return nil, ErrEmptyChart
	}

	graph := chart.Chart{
		Title:  spec.Title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name: spec.XLabel,
		},
		YAxis: chart.YAxis{
			Name: spec.YLabel,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// hexValue strips a leading '#' and falls back when the palette entry is empty.
func hexValue(hex, fallback string) string {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return fallback
	}
	return hex
}
