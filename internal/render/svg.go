package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrNoData = errors.New("figure has no data")

const (
	svgWidth  = 640
	svgHeight = 360
)

// SVG draws a bar, scatter or pie figure. Maps are embedded, not drawn.
func SVG(w io.Writer, fig Figure) error {
	if fig.Kind == KindMap {
		return fmt.Errorf("svg: %s figures are embedded, not drawn", fig.Kind)
	}
	if fig.Empty() {
		return ErrNoData
	}
	var err error
	switch fig.Kind {
	case KindBar:
		err = barChart(fig).Render(chart.SVG, w)
	case KindScatter:
		err = scatterChart(fig).Render(chart.SVG, w)
	case KindPie:
		err = pieChart(fig).Render(chart.SVG, w)
	default:
		return fmt.Errorf("svg: unsupported kind %q", fig.Kind)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", fig.Kind, err)
	}
	return nil
}

func barChart(fig Figure) chart.BarChart {
	s := fig.Series[0]
	bars := make([]chart.Value, 0, len(s.Y))
	top := 0.0
	for i, y := range s.Y {
		label := ""
		if i < len(s.Labels) {
			label = s.Labels[i]
		}
		bars = append(bars, chart.Value{
			Value: y,
			Label: label,
			Style: chart.Style{FillColor: hex(s.Color, 0), StrokeColor: hex(s.Color, 0)},
		})
		top = max(top, y)
	}
	return chart.BarChart{
		Title:      fig.Title,
		Width:      svgWidth,
		Height:     svgHeight,
		BarWidth:   max(8, (svgWidth-120)/max(len(bars), 1)-6),
		BarSpacing: 6,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name:  fig.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: niceTop(top)},
		},
		Bars: bars,
	}
}

func scatterChart(fig Figure) chart.Chart {
	series := make([]chart.Series, 0, len(fig.Series))
	xs, ys := bounds(), bounds()
	for i, s := range fig.Series {
		if len(s.X) == 0 {
			continue
		}
		for j := range s.X {
			xs.add(s.X[j])
			ys.add(s.Y[j])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: s.X,
			YValues: s.Y,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    hex(s.Color, i),
			},
		})
	}
	ch := chart.Chart{
		Title:      fig.Title,
		Width:      svgWidth,
		Height:     svgHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: fig.XLabel, Range: xs.padded()},
		YAxis:      chart.YAxis{Name: fig.YLabel, Range: ys.padded()},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

func pieChart(fig Figure) chart.PieChart {
	s := fig.Series[0]
	values := make([]chart.Value, 0, len(s.Y))
	for i, y := range s.Y {
		values = append(values, chart.Value{
			Value: y,
			Label: s.Labels[i],
			Style: chart.Style{FillColor: hex("", i)},
		})
	}
	return chart.PieChart{
		Title:  fig.Title,
		Width:  svgHeight,
		Height: svgHeight,
		Values: values,
	}
}

// hex parses a "#rrggbb" colour, falling back to the palette entry at i.
func hex(s string, i int) drawing.Color {
	if s == "" {
		s = colorAt(i)
	}
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

type span struct{ lo, hi float64 }

func bounds() *span { return &span{lo: math.Inf(1), hi: math.Inf(-1)} }

func (s *span) add(v float64) {
	s.lo = min(s.lo, v)
	s.hi = max(s.hi, v)
}

// padded widens the range by 5% so edge points are not clipped; go-chart rejects a zero-width range.
func (s *span) padded() *chart.ContinuousRange {
	lo, hi := s.lo, s.hi
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func niceTop(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v * 1.1
}
