package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// GapminderHeader is the canonical column order of rows built in memory.
var GapminderHeader = []string{"country", "continent", "year", "lifeExp", "pop", "gdpPercap"}

var IrisHeader = []string{"sepal_length", "sepal_width", "petal_length", "petal_width", "species"}

// normalized header -> canonical column
var gapminderAliases = map[string]string{
	"country":        "country",
	"continent":      "continent",
	"year":           "year",
	"pop":            "pop",
	"population":     "pop",
	"lifeexp":        "lifeExp",
	"lifeexpectancy": "lifeExp",
	"gdppercap":      "gdpPercap",
	"gdppercapita":   "gdpPercap",
}

var irisAliases = map[string]string{
	"sepallength": "sepal_length",
	"sepalwidth":  "sepal_width",
	"petallength": "petal_length",
	"petalwidth":  "petal_width",
	"species":     "species",
	"variety":     "species",
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(s, "\ufeff") {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func columnIndex(header []string, aliases map[string]string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(required))
	for i, h := range header {
		if canon, ok := aliases[normalizeHeader(h)]; ok {
			if _, dup := idx[canon]; !dup {
				idx[canon] = i
			}
		}
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

// table reads the header and yields the remaining records with their 1-based
// row number. head, if set, sees the header before any row.
func table(r io.Reader, aliases map[string]string, required []string, head func(header []string, col map[string]int), row func(n int, rec []string, col map[string]int) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty csv: no header row")
		}
		return fmt.Errorf("read header: %w", err)
	}
	col, err := columnIndex(header, aliases, required)
	if err != nil {
		return err
	}
	if head != nil {
		head(header, col)
	}

	for n := 2; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", n, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if err := row(n, rec, col); err != nil {
			return err
		}
	}
}

type cells struct {
	n   int
	rec []string
	col map[string]int
	err error
}

func (c *cells) str(name string) string {
	i := c.col[name]
	if i >= len(c.rec) {
		c.fail(name, errors.New("missing value"))
		return ""
	}
	return strings.TrimSpace(c.rec[i])
}

func (c *cells) float(name string) float64 {
	s := c.str(name)
	if c.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.fail(name, err)
	}
	return f
}

// accepts "8425333" as well as "8425333.0"
func (c *cells) integer(name string) int64 {
	s := c.str(name)
	if c.err != nil {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.fail(name, err)
		return 0
	}
	return int64(math.Round(f))
}

func (c *cells) fail(name string, err error) {
	if c.err == nil {
		c.err = &ParseError{Row: c.n, Column: name, Err: err}
	}
}

// LoadGapminder keeps the source's column order and any extra columns so an
// export can reproduce them.
func LoadGapminder(r io.Reader) (*Gapminder, error) {
	var (
		rows   []Country
		layout Layout
		extras []int
	)
	head := func(header []string, col map[string]int) {
		layout = newLayout(header, col)
		extras = layout.extras()
	}
	err := table(r, gapminderAliases, GapminderHeader, head, func(n int, rec []string, col map[string]int) error {
		c := &cells{n: n, rec: rec, col: col}
		row := Country{
			Country:   c.str("country"),
			Continent: c.str("continent"),
			Year:      int(c.integer("year")),
			Pop:       c.integer("pop"),
			LifeExp:   c.float("lifeExp"),
			GDPPercap: c.float("gdpPercap"),
		}
		if c.err != nil {
			return c.err
		}
		if len(extras) > 0 {
			row.Extra = make([]string, len(extras))
			for k, i := range extras {
				if i < len(rec) {
					row.Extra[k] = rec[i]
				}
			}
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gapminder csv: %w", err)
	}
	g := NewGapminder(rows)
	g.layout = layout
	return g, nil
}

func LoadIris(r io.Reader) (*Iris, error) {
	var rows []Flower
	err := table(r, irisAliases, IrisHeader, nil, func(n int, rec []string, col map[string]int) error {
		c := &cells{n: n, rec: rec, col: col}
		row := Flower{
			SepalLength: c.float("sepal_length"),
			SepalWidth:  c.float("sepal_width"),
			PetalLength: c.float("petal_length"),
			PetalWidth:  c.float("petal_width"),
			Species:     c.str("species"),
		}
		if c.err != nil {
			return c.err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iris csv: %w", err)
	}
	return NewIris(rows), nil
}

// WriteGapminderCSV writes rows in the columns of layout, formatting floats
// losslessly. Extra cells are written back in place.
func WriteGapminderCSV(w io.Writer, layout Layout, rows []Country) error {
	if len(layout.header) == 0 {
		layout = CanonicalLayout()
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(layout.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(layout.header))
	for _, r := range rows {
		extra := 0
		for i, field := range layout.fields {
			if field == "" {
				rec[i] = ""
				if extra < len(r.Extra) {
					rec[i] = r.Extra[extra]
				}
				extra++
				continue
			}
			rec[i] = formatField(r, field)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatField(r Country, field string) string {
	switch field {
	case "country":
		return r.Country
	case "continent":
		return r.Continent
	case "year":
		return strconv.Itoa(r.Year)
	case "lifeExp":
		return strconv.FormatFloat(r.LifeExp, 'f', -1, 64)
	case "pop":
		return strconv.FormatInt(r.Pop, 10)
	case "gdpPercap":
		return strconv.FormatFloat(r.GDPPercap, 'f', -1, 64)
	}
	return ""
}
