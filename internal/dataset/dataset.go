// Package dataset loads the immutable tables the dashboard visualizes.
package dataset

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
)

//go:embed data/gapminder.csv data/iris.csv
var sampleFS embed.FS

var ErrMissingColumn = errors.New("missing required column")

// ParseError locates a bad cell in a CSV source; Row is 1-based and counts the header.
type ParseError struct {
	Row    int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d column %q: %v", e.Row, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Country is one row of the Gapminder panel.
type Country struct {
	Country   string
	Continent string
	Year      int
	Pop       int64
	LifeExp   float64
	GDPPercap float64
	// Extra holds the source's unmodelled columns in their original order.
	Extra []string
}

// TotalGDP is population times GDP per capita for the row's year.
func (c Country) TotalGDP() float64 { return float64(c.Pop) * c.GDPPercap }

type Bounds struct {
	PopMin, PopMax   int64
	LifeMin, LifeMax float64
}

// Layout is the column order of a Gapminder source. Fields holds the
// modelled field of each column, or "" for a column carried in Country.Extra.
type Layout struct {
	header []string
	fields []string
}

// CanonicalLayout is the layout of rows built without a source file.
func CanonicalLayout() Layout {
	return Layout{header: slices.Clone(GapminderHeader), fields: slices.Clone(GapminderHeader)}
}

func newLayout(header []string, col map[string]int) Layout {
	l := Layout{header: make([]string, len(header)), fields: make([]string, len(header))}
	for i, h := range header {
		l.header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for field, i := range col {
		l.fields[i] = field
	}
	return l
}

func (l Layout) Header() []string { return slices.Clone(l.header) }

// extras lists the source positions of the unmodelled columns.
func (l Layout) extras() []int {
	var out []int
	for i, f := range l.fields {
		if f == "" {
			out = append(out, i)
		}
	}
	return out
}

// Gapminder is read-only after construction; accessors hand out copies.
type Gapminder struct {
	layout    Layout
	rows      []Country
	countries []string
	years     []int
	index     map[string]struct{}
	bounds    Bounds
}

func NewGapminder(rows []Country) *Gapminder {
	g := &Gapminder{
		layout: CanonicalLayout(),
		rows:   cloneRows(rows),
		index:  make(map[string]struct{}),
	}
	seenYear := make(map[int]struct{})
	for i, r := range g.rows {
		if _, ok := g.index[r.Country]; !ok {
			g.index[r.Country] = struct{}{}
			g.countries = append(g.countries, r.Country)
		}
		if _, ok := seenYear[r.Year]; !ok {
			seenYear[r.Year] = struct{}{}
			g.years = append(g.years, r.Year)
		}
		if i == 0 {
			g.bounds = Bounds{PopMin: r.Pop, PopMax: r.Pop, LifeMin: r.LifeExp, LifeMax: r.LifeExp}
			continue
		}
		g.bounds.PopMin = min(g.bounds.PopMin, r.Pop)
		g.bounds.PopMax = max(g.bounds.PopMax, r.Pop)
		g.bounds.LifeMin = min(g.bounds.LifeMin, r.LifeExp)
		g.bounds.LifeMax = max(g.bounds.LifeMax, r.LifeExp)
	}
	sort.Strings(g.countries)
	sort.Ints(g.years)
	return g
}

func cloneRows(rows []Country) []Country {
	out := append([]Country(nil), rows...)
	for i := range out {
		out[i].Extra = slices.Clone(out[i].Extra)
	}
	return out
}

func (g *Gapminder) Rows() []Country { return cloneRows(g.rows) }
func (g *Gapminder) Layout() Layout { return g.layout }
func (g *Gapminder) Len() int { return len(g.rows) }
func (g *Gapminder) Countries() []string { return append([]string(nil), g.countries...) }
func (g *Gapminder) Years() []int { return append([]int(nil), g.years...) }
func (g *Gapminder) Bounds() Bounds { return g.bounds }

// HasCountry is an exact, case-sensitive vocabulary check.
func (g *Gapminder) HasCountry(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Flower is one row of the Iris measurements.
type Flower struct {
	SepalLength float64
	SepalWidth  float64
	PetalLength float64
	PetalWidth  float64
	Species     string
}

type Iris struct {
	rows    []Flower
	species []string
}

func NewIris(rows []Flower) *Iris {
	ir := &Iris{rows: append([]Flower(nil), rows...)}
	seen := make(map[string]struct{})
	for _, r := range ir.rows {
		if _, ok := seen[r.Species]; !ok {
			seen[r.Species] = struct{}{}
			ir.species = append(ir.species, r.Species)
		}
	}
	return ir
}

func (ir *Iris) Rows() []Flower { return append([]Flower(nil), ir.rows...) }
func (ir *Iris) Len() int { return len(ir.rows) }
func (ir *Iris) Species() []string { return append([]string(nil), ir.species...) }

func SampleGapminder() *Gapminder {
	f, err := sampleFS.Open("data/gapminder.csv")
	if err != nil {
		panic(fmt.Sprintf("embedded gapminder sample: %v", err))
	}
	defer func() { _ = f.Close() }()
	g, err := LoadGapminder(f)
	if err != nil {
		panic(fmt.Sprintf("embedded gapminder sample: %v", err))
	}
	return g
}

func SampleIris() *Iris {
	f, err := sampleFS.Open("data/iris.csv")
	if err != nil {
		panic(fmt.Sprintf("embedded iris sample: %v", err))
	}
	defer func() { _ = f.Close() }()
	ir, err := LoadIris(f)
	if err != nil {
		panic(fmt.Sprintf("embedded iris sample: %v", err))
	}
	return ir
}

func openOr[T any](path string, load func(io.Reader) (T, error), sample func() T) (T, error) {
	if path == "" {
		return sample(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	out, err := load(f)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", path, err)
	}
	return out, nil
}

// Names of the selectable datasets.
const (
	NameGapminder = "gapminder"
	NameIris      = "iris"
)

type Choice struct {
	Value string
	Label string
}

var choices = []Choice{
	{Value: NameGapminder, Label: "GapMinder"},
	{Value: NameIris, Label: "Iris Dataset"},
}

func Choices() []Choice { return append([]Choice(nil), choices...) }

// Label returns the display label for a dataset name, or "" if unknown.
func Label(name string) string {
	for _, c := range choices {
		if c.Value == name {
			return c.Label
		}
	}
	return ""
}

// Catalog holds every dataset loaded at process start.
type Catalog struct {
	Gapminder *Gapminder
	Iris      *Iris
}

// Open loads CSV files when paths are set and falls back to the packaged samples.
func Open(gapminderPath, irisPath string) (*Catalog, error) {
	g, err := openOr(gapminderPath, LoadGapminder, SampleGapminder)
	if err != nil {
		return nil, fmt.Errorf("gapminder: %w", err)
	}
	ir, err := openOr(irisPath, LoadIris, SampleIris)
	if err != nil {
		return nil, fmt.Errorf("iris: %w", err)
	}
	return &Catalog{Gapminder: g, Iris: ir}, nil
}

func (c *Catalog) Readiness() (bool, map[string]int) {
	if c == nil || c.Gapminder == nil || c.Iris == nil {
		return false, nil
	}
	rows := map[string]int{
		NameGapminder: c.Gapminder.Len(),
		NameIris:      c.Iris.Len(),
	}
	return rows[NameGapminder] > 0 && rows[NameIris] > 0, rows
}
