// Package aggregate computes the derived metrics shown on the Output page.
package aggregate

import (
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

// NotAvailable is displayed in place of a metric that cannot be computed.
const NotAvailable = "N/A"

// Summary holds the totals for one country's rows. Available is false for an
// empty subset; the numeric fields are then meaningless and must not be shown.
type Summary struct {
	Rows        int
	TotalPop    int64
	TotalGDP    float64
	MeanLifeExp float64
	Available   bool
}

func Summarize(rows []dataset.Country) Summary {
	if len(rows) == 0 {
		return Summary{}
	}
	var s Summary
	var life float64
	for _, r := range rows {
		s.TotalPop += r.Pop
		s.TotalGDP += r.TotalGDP()
		life += r.LifeExp
	}
	s.Rows = len(rows)
	s.MeanLifeExp = life / float64(len(rows))
	s.Available = true
	return s
}

// ForCountry keeps the rows of one country in source order.
func ForCountry(rows []dataset.Country, country string) []dataset.Country {
	var out []dataset.Country
	for _, r := range rows {
		if r.Country == country {
			out = append(out, r)
		}
	}
	return out
}

// LatestByCountry keeps, per country, the row with the greatest year. Countries
// appear in order of first occurrence.
func LatestByCountry(rows []dataset.Country) []dataset.Country {
	pos := make(map[string]int)
	var out []dataset.Country
	for _, r := range rows {
		i, ok := pos[r.Country]
		if !ok {
			pos[r.Country] = len(out)
			out = append(out, r)
			continue
		}
		if r.Year > out[i].Year {
			out[i] = r
		}
	}
	return out
}
