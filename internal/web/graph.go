package web

import (
	"context"
	"html/template"
	"slices"
	"strings"

	"github.com/mohammed-shakir/gapminder-dash/internal/aggregate"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	"github.com/mohammed-shakir/gapminder-dash/internal/filter"
	"github.com/mohammed-shakir/gapminder-dash/internal/geocode"
	"github.com/mohammed-shakir/gapminder-dash/internal/reactive"
	"github.com/mohammed-shakir/gapminder-dash/internal/render"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

// Widget inputs. The names double as data-input attributes in the templates.
const (
	inPopMin           = "pop-min"
	inPopMax           = "pop-max"
	inLifeMin          = "lifeexp-min"
	inLifeMax          = "lifeexp-max"
	inCountries        = "country-dropdown"
	inTableSort        = "table-sort"
	inTablePage        = "table-page"
	inExploreCountries = "explore-countries"
	inExploreYears     = "explore-years"
	// prefix of the per-column table filters, e.g. "table-filter-country"
	inTableFilter = "table-filter-"
	// set by the server from the session, never by the client
	inSubmission = "submission"
)

// Outputs. Only those listed in pageOutputs are sent to the browser.
const (
	outSpec           = "filter-spec"
	outRows           = "filtered-rows"
	outTable          = "gapminder-table"
	outDownload       = "download-href"
	outExploreRows    = "explore-rows"
	outExploreScatter = "explore-scatter"
	outExplorePie     = "explore-pie"
	outFields         = "submission-fields"
	outMap            = "location-map"
	outCountryRows    = "country-rows"
	outCountrySummary = "country-summary"
	outCountryCharts  = "country-charts"
)

const (
	msgNoData          = "No data submitted!"
	msgInvalidMap      = "Invalid coordinates for map"
	msgCountryNotFound = "Country not found in GapMinder dataset!"
)

var pageOutputs = map[string][]string{
	"about":   {outTable, outDownload},
	"explore": {outExploreScatter, outExplorePie},
	"output":  {outFields, outMap, outCountrySummary, outCountryCharts},
}

func tableFilterInputs() []string {
	names := make([]string, len(render.TableColumns))
	for i, c := range render.TableColumns {
		names[i] = inTableFilter + c.Key
	}
	return names
}

func (a *App) buildGraph() (*reactive.Graph, error) {
	nodes := []reactive.Node{
		{Name: inPopMin},
		{Name: inPopMax},
		{Name: inLifeMin},
		{Name: inLifeMax},
		{Name: inCountries},
		{Name: inTableSort},
		{Name: inTablePage},
		{Name: inExploreCountries},
		{Name: inExploreYears},
		{Name: inSubmission},

		{Name: outSpec, Deps: []string{inPopMin, inPopMax, inLifeMin, inLifeMax, inCountries}, Compute: a.filterSpec},
		{Name: outRows, Deps: []string{outSpec}, Compute: a.filteredRows},
		{Name: outTable, Deps: append([]string{outRows, inTableSort, inTablePage}, tableFilterInputs()...), Compute: a.table},
		{Name: outDownload, Deps: []string{outSpec}, Compute: downloadHref},

		{Name: outExploreRows, Deps: []string{inExploreCountries}, Compute: a.exploreRows},
		{Name: outExploreScatter, Deps: []string{outExploreRows, inExploreYears}, Compute: a.exploreScatter},
		{Name: outExplorePie, Deps: []string{outExploreRows}, Compute: a.explorePie},

		{Name: outFields, Deps: []string{inSubmission}, Compute: a.submissionFields},
		{Name: outMap, Deps: []string{inSubmission}, Compute: a.locationMap},
		{Name: outCountryRows, Deps: []string{inSubmission}, Compute: a.countryRows},
		{Name: outCountrySummary, Deps: []string{outCountryRows, inSubmission}, Compute: a.countrySummary},
		{Name: outCountryCharts, Deps: []string{outCountryRows, inSubmission}, Compute: a.countryCharts},
	}
	for _, name := range tableFilterInputs() {
		nodes = append(nodes, reactive.Node{Name: name})
	}
	return reactive.Build(nodes...)
}

// aboutInputs are the widget values the About page starts with.
func (a *App) aboutInputs() reactive.Values {
	d := a.defaults
	in := reactive.Values{
		inPopMin:    d.PopMin,
		inPopMax:    d.PopMax,
		inLifeMin:   d.LifeMin,
		inLifeMax:   d.LifeMax,
		inCountries: []string{},
		inTableSort: "",
		inTablePage: 0.0,
	}
	for _, name := range tableFilterInputs() {
		in[name] = ""
	}
	return in
}

func (a *App) exploreInputs() reactive.Values {
	years := a.cat.Gapminder.Years()
	var latest []string
	if len(years) > 0 {
		latest = []string{itoa(years[len(years)-1])}
	}
	return reactive.Values{
		inExploreCountries: []string{},
		inExploreYears:     latest,
	}
}

func (a *App) filterSpec(_ context.Context, in reactive.Values) (any, error) {
	s := a.defaults
	var err error
	bound := func(name, field string, def float64) float64 {
		if err != nil {
			return 0
		}
		raw := strings.TrimSpace(in.String(name))
		if raw == "" {
			return def
		}
		var f float64
		f, err = filter.ParseBound(field, raw)
		return f
	}
	s.PopMin = bound(inPopMin, filter.ParamPopMin, a.defaults.PopMin)
	s.PopMax = bound(inPopMax, filter.ParamPopMax, a.defaults.PopMax)
	s.LifeMin = bound(inLifeMin, filter.ParamLifeMin, a.defaults.LifeMin)
	s.LifeMax = bound(inLifeMax, filter.ParamLifeMax, a.defaults.LifeMax)
	if err != nil {
		return nil, err
	}
	s.Countries = in.Strings(inCountries)
	return s.Normalize(), nil
}

func (a *App) filteredRows(_ context.Context, in reactive.Values) (any, error) {
	rows := filter.Apply(a.cat.Gapminder.Rows(), in[outSpec].(filter.Spec))
	observability.ObserveFilterRows(len(rows))
	return rows, nil
}

func (a *App) table(_ context.Context, in reactive.Values) (any, error) {
	var filters []render.ColumnFilter
	for _, c := range render.TableColumns {
		if f, ok := render.ParseColumnFilter(c.Key, in.String(inTableFilter+c.Key)); ok {
			filters = append(filters, f)
		}
	}
	rows := render.FilterRows(in[outRows].([]dataset.Country), filters...)
	col, desc := render.ParseSort(in.String(inTableSort))
	t := render.NewTable(rows, col, desc, in.Int(inTablePage, 0))
	return a.fragment("table", t)
}

func downloadHref(_ context.Context, in reactive.Values) (any, error) {
	s := in[outSpec].(filter.Spec)
	return "/download/" + exportPath + "?" + s.Values().Encode(), nil
}

func (a *App) exploreRows(_ context.Context, in reactive.Values) (any, error) {
	countries := in.Strings(inExploreCountries)
	if len(countries) == 0 {
		return []dataset.Country{}, nil
	}
	s := filter.Unbounded()
	s.Countries = countries
	return filter.Apply(a.cat.Gapminder.Rows(), s.Normalize()), nil
}

func (a *App) exploreScatter(_ context.Context, in reactive.Values) (any, error) {
	years, err := in.Ints(inExploreYears)
	if err != nil {
		return nil, err
	}
	rows := in[outExploreRows].([]dataset.Country)
	if len(rows) == 0 {
		return a.alert("info", "Select one or more countries")
	}
	if len(years) == 0 {
		return a.alert("info", "Select one or more years")
	}
	slices.Sort(years)
	var picked []dataset.Country
	for _, r := range rows {
		if slices.Contains(years, r.Year) {
			picked = append(picked, r)
		}
	}
	return a.chart(render.LifeVsGDP(picked, years))
}

func (a *App) explorePie(_ context.Context, in reactive.Values) (any, error) {
	rows := in[outExploreRows].([]dataset.Country)
	if len(rows) == 0 {
		return a.alert("info", "Select one or more countries")
	}
	return a.chart(render.LatestGDPPie(rows))
}

func submissionOf(in reactive.Values) *session.Submission {
	sub, _ := in[inSubmission].(*session.Submission)
	return sub
}

type fieldsView struct {
	Lat, Lon, Dataset, Country string
}

func (a *App) submissionFields(_ context.Context, in reactive.Values) (any, error) {
	var v fieldsView
	if sub := submissionOf(in); sub != nil {
		v = fieldsView{
			Lat:     coord(sub.Lat, sub.LatText),
			Lon:     coord(sub.Lon, sub.LonText),
			Dataset: titleCase(sub.Dataset),
			Country: geocode.Display(sub.Country),
		}
	}
	return a.fragment("fields", v)
}

func (a *App) locationMap(_ context.Context, in reactive.Values) (any, error) {
	sub := submissionOf(in)
	if sub == nil {
		return a.alert("danger", msgNoData)
	}
	fig, err := render.LocationMap(sub.Lat, sub.Lon)
	if err != nil {
		return a.alert("danger", msgInvalidMap)
	}
	return a.fragment("map", fig)
}

func (a *App) countryRows(_ context.Context, in reactive.Values) (any, error) {
	sub := submissionOf(in)
	if sub == nil || sub.Dataset != dataset.NameGapminder {
		return []dataset.Country{}, nil
	}
	return aggregate.ForCountry(a.cat.Gapminder.Rows(), sub.Country), nil
}

type summaryView struct {
	GDP, Pop, LifeExp string
}

func (a *App) countrySummary(_ context.Context, in reactive.Values) (any, error) {
	var v summaryView
	if submissionOf(in) != nil {
		s := aggregate.Summarize(in[outCountryRows].([]dataset.Country))
		v = summaryView{GDP: s.GDPText(), Pop: s.PopText(), LifeExp: s.LifeExpText()}
	}
	return a.fragment("summary", v)
}

type chartCard struct {
	Title string
	SVG   template.HTML
}

func (a *App) countryCharts(_ context.Context, in reactive.Values) (any, error) {
	sub := submissionOf(in)
	if sub == nil {
		return a.alert("danger", msgNoData)
	}
	switch sub.Dataset {
	case dataset.NameGapminder:
		rows := in[outCountryRows].([]dataset.Country)
		if len(rows) == 0 {
			return a.alert("warning", msgCountryNotFound)
		}
		var cards []chartCard
		for _, m := range render.Metrics {
			fig := render.CountryTrend(rows, m)
			svg, err := a.chart(fig)
			if err != nil {
				return nil, err
			}
			cards = append(cards, chartCard{Title: fig.Title, SVG: svg})
		}
		return a.fragment("charts", cards)
	case dataset.NameIris:
		fig, err := render.IrisScatter(a.cat.Iris.Rows(), "sepal_length", "petal_length")
		if err != nil {
			return nil, err
		}
		svg, err := a.chart(fig)
		if err != nil {
			return nil, err
		}
		return a.fragment("charts", []chartCard{{SVG: svg}})
	}
	return a.alert("warning", "Unknown dataset "+sub.Dataset)
}
