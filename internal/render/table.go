package render

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gapminder-dash/internal/aggregate"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

const PageSize = 10

type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// TableColumns are the columns shown on the About page.
var TableColumns = []Column{
	{Key: "country", Label: "Country"},
	{Key: "continent", Label: "Continent"},
	{Key: "year", Label: "Year"},
	{Key: "pop", Label: "Population"},
	{Key: "lifeExp", Label: "Life Expectancy"},
}

// Table is one page of formatted cells.
type Table struct {
	Columns  []Column   `json:"columns"`
	Rows     [][]string `json:"rows"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
	PageSize int        `json:"pageSize"`
	Total    int        `json:"total"`
	SortBy   string     `json:"sortBy,omitempty"`
	Desc     bool       `json:"desc,omitempty"`
}

// ParseSort reads "col" or "-col"; unknown columns mean source order.
func ParseSort(s string) (col string, desc bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	}
	for _, c := range TableColumns {
		if c.Key == s {
			return s, desc
		}
	}
	return "", false
}

func compareBy(col string) func(a, b dataset.Country) int {
	switch col {
	case "country":
		return func(a, b dataset.Country) int { return strings.Compare(a.Country, b.Country) }
	case "continent":
		return func(a, b dataset.Country) int { return strings.Compare(a.Continent, b.Continent) }
	case "year":
		return func(a, b dataset.Country) int { return cmp.Compare(a.Year, b.Year) }
	case "pop":
		return func(a, b dataset.Country) int { return cmp.Compare(a.Pop, b.Pop) }
	case "lifeExp":
		return func(a, b dataset.Country) int { return cmp.Compare(a.LifeExp, b.LifeExp) }
	}
	return nil
}

func numericColumn(key string) bool {
	return key == "year" || key == "pop" || key == "lifeExp"
}

func isColumn(key string) bool {
	return slices.ContainsFunc(TableColumns, func(c Column) bool { return c.Key == key })
}

// ColumnFilter is the filter typed above one table column: an optional
// operator (=, !=, <, <=, >, >=) followed by a value. Without an operator
// text columns match by substring and numeric columns by equality.
type ColumnFilter struct {
	Key   string
	Op    string
	Value string
	num   float64
}

// longest operators first so "<=" is not read as "<"
var filterOps = []string{"<=", ">=", "!=", "<", ">", "="}

// ParseColumnFilter reports false for a blank expression, an unknown column
// or a numeric column whose value is not a number; such filters are ignored.
func ParseColumnFilter(key, expr string) (ColumnFilter, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || !isColumn(key) {
		return ColumnFilter{}, false
	}
	f := ColumnFilter{Key: key}
	for _, op := range filterOps {
		if strings.HasPrefix(expr, op) {
			f.Op = op
			expr = strings.TrimSpace(expr[len(op):])
			break
		}
	}
	f.Value = strings.Trim(expr, `"'`)
	if f.Value == "" {
		return ColumnFilter{}, false
	}
	if !numericColumn(key) {
		if f.Op == "" {
			f.Op = "contains"
		}
		return f, true
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(f.Value, ",", ""), 64)
	if err != nil {
		return ColumnFilter{}, false
	}
	f.num = n
	if f.Op == "" {
		f.Op = "="
	}
	return f, true
}

func (f ColumnFilter) Match(r dataset.Country) bool {
	var c int
	switch f.Key {
	case "country", "continent":
		s := r.Country
		if f.Key == "continent" {
			s = r.Continent
		}
		if f.Op == "contains" {
			return strings.Contains(s, f.Value)
		}
		c = strings.Compare(s, f.Value)
	case "year":
		c = cmp.Compare(float64(r.Year), f.num)
	case "pop":
		c = cmp.Compare(float64(r.Pop), f.num)
	case "lifeExp":
		c = cmp.Compare(r.LifeExp, f.num)
	}
	switch f.Op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return true
}

// FilterRows keeps the rows matching every filter, in order.
func FilterRows(rows []dataset.Country, filters ...ColumnFilter) []dataset.Country {
	if len(filters) == 0 {
		return rows
	}
	var out []dataset.Country
	for _, r := range rows {
		if !slices.ContainsFunc(filters, func(f ColumnFilter) bool { return !f.Match(r) }) {
			out = append(out, r)
		}
	}
	return out
}

// NewTable sorts (stably) and slices rows into a page. page is 0-based and clamped.
func NewTable(rows []dataset.Country, sortBy string, desc bool, page int) Table {
	t := Table{Columns: TableColumns, PageSize: PageSize, Total: len(rows)}
	sorted := rows
	if c := compareBy(sortBy); c != nil {
		sorted = slices.Clone(rows)
		slices.SortStableFunc(sorted, func(a, b dataset.Country) int {
			if desc {
				return c(b, a)
			}
			return c(a, b)
		})
		t.SortBy, t.Desc = sortBy, desc
	}

	t.Pages = max(1, (len(rows)+PageSize-1)/PageSize)
	t.Page = min(max(page, 0), t.Pages-1)
	lo := t.Page * PageSize
	hi := min(lo+PageSize, len(sorted))
	for _, r := range sorted[lo:hi] {
		t.Rows = append(t.Rows, []string{
			r.Country,
			r.Continent,
			strconv.Itoa(r.Year),
			aggregate.Number(float64(r.Pop), 0),
			strconv.FormatFloat(r.LifeExp, 'f', -1, 64),
		})
	}
	return t
}
