// Package render turns dataset rows into chart and table descriptions.
package render

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gapminder-dash/internal/aggregate"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	h3mapper "github.com/mohammed-shakir/gapminder-dash/internal/mapper/h3"
)

type Kind string

const (
	KindBar     Kind = "bar"
	KindScatter Kind = "scatter"
	KindPie     Kind = "pie"
	KindMap     Kind = "map"
)

// Series is one colour group. Bar and pie figures use Labels; scatter uses X.
type Series struct {
	Name   string    `json:"name"`
	Color  string    `json:"color,omitempty"`
	X      []float64 `json:"x,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Y      []float64 `json:"y"`
}

// Figure is a renderer-independent chart description.
type Figure struct {
	Kind   Kind     `json:"kind"`
	Title  string   `json:"title"`
	XLabel string   `json:"xLabel,omitempty"`
	YLabel string   `json:"yLabel,omitempty"`
	Series []Series `json:"series"`

	// map only
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	EmbedURL string  `json:"embedUrl,omitempty"`
}

// Empty reports whether the figure has nothing to draw.
func (f Figure) Empty() bool {
	if f.Kind == KindMap {
		return f.EmbedURL == ""
	}
	for _, s := range f.Series {
		if len(s.Y) > 0 {
			return false
		}
	}
	return true
}

// plotly's qualitative palette, so colours match the original dashboards
var palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

func colorAt(i int) string { return palette[i%len(palette)] }

type Metric string

const (
	MetricPop       Metric = "pop"
	MetricLifeExp   Metric = "lifeExp"
	MetricGDPPercap Metric = "gdpPercap"
)

// Metrics lists the per-country trend charts in display order.
var Metrics = []Metric{MetricPop, MetricLifeExp, MetricGDPPercap}

func (m Metric) Label() string {
	switch m {
	case MetricPop:
		return "Population"
	case MetricLifeExp:
		return "Life Expectancy"
	case MetricGDPPercap:
		return "GDP per Capita"
	}
	return string(m)
}

func (m Metric) value(r dataset.Country) float64 {
	switch m {
	case MetricPop:
		return float64(r.Pop)
	case MetricLifeExp:
		return r.LifeExp
	default:
		return r.GDPPercap
	}
}

// CountryTrend is a bar per year of one metric. Years are categories, in source order.
func CountryTrend(rows []dataset.Country, m Metric) Figure {
	s := Series{Name: m.Label(), Color: palette[0]}
	for _, r := range rows {
		s.Labels = append(s.Labels, strconv.Itoa(r.Year))
		s.Y = append(s.Y, m.value(r))
	}
	return Figure{
		Kind:   KindBar,
		Title:  m.Label() + " Trend",
		XLabel: "Year",
		YLabel: m.Label(),
		Series: []Series{s},
	}
}

var irisColumns = map[string]struct {
	label string
	get   func(dataset.Flower) float64
}{
	"sepal_length": {"Sepal Length", func(f dataset.Flower) float64 { return f.SepalLength }},
	"sepal_width":  {"Sepal Width", func(f dataset.Flower) float64 { return f.SepalWidth }},
	"petal_length": {"Petal Length", func(f dataset.Flower) float64 { return f.PetalLength }},
	"petal_width":  {"Petal Width", func(f dataset.Flower) float64 { return f.PetalWidth }},
}

var ErrUnknownColumn = errors.New("unknown column")

// IrisScatter plots two measurement columns, one series per species.
func IrisScatter(flowers []dataset.Flower, x, y string) (Figure, error) {
	cx, ok := irisColumns[x]
	if !ok {
		return Figure{}, fmt.Errorf("%w: %s", ErrUnknownColumn, x)
	}
	cy, ok := irisColumns[y]
	if !ok {
		return Figure{}, fmt.Errorf("%w: %s", ErrUnknownColumn, y)
	}
	fig := Figure{Kind: KindScatter, Title: cy.label + " vs " + cx.label, XLabel: cx.label, YLabel: cy.label}
	idx := map[string]int{}
	for _, f := range flowers {
		i, ok := idx[f.Species]
		if !ok {
			i = len(fig.Series)
			idx[f.Species] = i
			fig.Series = append(fig.Series, Series{Name: f.Species, Color: colorAt(i)})
		}
		fig.Series[i].X = append(fig.Series[i].X, cx.get(f))
		fig.Series[i].Y = append(fig.Series[i].Y, cy.get(f))
	}
	return fig, nil
}

// LifeVsGDP plots life expectancy against GDP per capita, one series per country.
func LifeVsGDP(rows []dataset.Country, years []int) Figure {
	ys := make([]string, 0, len(years))
	for _, y := range years {
		ys = append(ys, strconv.Itoa(y))
	}
	fig := Figure{
		Kind:   KindScatter,
		Title:  fmt.Sprintf("Life Expectancy vs GDP per Capita (%s)", strings.Join(ys, ", ")),
		XLabel: "GDP per Capita",
		YLabel: "Life Expectancy",
	}
	idx := map[string]int{}
	for _, r := range rows {
		i, ok := idx[r.Country]
		if !ok {
			i = len(fig.Series)
			idx[r.Country] = i
			fig.Series = append(fig.Series, Series{Name: r.Country, Color: colorAt(i)})
		}
		fig.Series[i].X = append(fig.Series[i].X, r.GDPPercap)
		fig.Series[i].Y = append(fig.Series[i].Y, r.LifeExp)
	}
	return fig
}

// LatestGDPPie shows each country's GDP per capita in its most recent year.
func LatestGDPPie(rows []dataset.Country) Figure {
	latest := aggregate.LatestByCountry(rows)
	sort.SliceStable(latest, func(i, j int) bool { return latest[i].Country < latest[j].Country })
	s := Series{Name: "GDP per Capita"}
	for _, r := range latest {
		s.Labels = append(s.Labels, r.Country)
		s.Y = append(s.Y, r.GDPPercap)
	}
	fig := Figure{Kind: KindPie, Title: "GDP per Capita (Chosen Countries)"}
	if len(s.Y) > 0 {
		fig.Series = []Series{s}
	}
	return fig
}

// LocationMap centres an OpenStreetMap embed on the point. Invalid coordinates are an error.
func LocationMap(lat, lon float64) (Figure, error) {
	if err := h3mapper.ValidatePoint(lat, lon); err != nil {
		return Figure{}, err
	}
	const d = 2.0
	bbox := fmt.Sprintf("%s,%s,%s,%s",
		ff(max(lon-d, -180)), ff(max(lat-d, -90)), ff(min(lon+d, 180)), ff(min(lat+d, 90)))
	q := url.Values{}
	q.Set("bbox", bbox)
	q.Set("layer", "mapnik")
	q.Set("marker", ff(lat)+","+ff(lon))
	return Figure{
		Kind:     KindMap,
		Title:    "Location",
		Lat:      lat,
		Lon:      lon,
		EmbedURL: "https://www.openstreetmap.org/export/embed.html?" + q.Encode(),
	}, nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
