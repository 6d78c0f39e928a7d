// Package filter selects the Gapminder rows matching a set of range and
// membership constraints.
package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

// Spec is a conjunction of inclusive ranges plus optional membership sets.
// Min greater than max is allowed and matches nothing.
type Spec struct {
	PopMin, PopMax   float64
	LifeMin, LifeMax float64
	// empty means unconstrained
	Countries []string
	Years     []int
}

// Unbounded matches every row of any realistic dataset.
func Unbounded() Spec {
	return Spec{PopMin: 0, PopMax: 1e10, LifeMin: 0, LifeMax: 100}
}

// FromBounds builds a spec whose ranges are exactly the dataset bounds.
func FromBounds(b dataset.Bounds) Spec {
	return Spec{
		PopMin:  float64(b.PopMin),
		PopMax:  float64(b.PopMax),
		LifeMin: b.LifeMin,
		LifeMax: b.LifeMax,
	}
}

// Match reports whether a single row satisfies every constraint.
func (s Spec) Match(r dataset.Country) bool {
	pop := float64(r.Pop)
	if pop < s.PopMin || pop > s.PopMax {
		return false
	}
	if r.LifeExp < s.LifeMin || r.LifeExp > s.LifeMax {
		return false
	}
	if len(s.Countries) > 0 && !slices.Contains(s.Countries, r.Country) {
		return false
	}
	if len(s.Years) > 0 && !slices.Contains(s.Years, r.Year) {
		return false
	}
	return true
}

// Apply returns the ordered subsequence of rows matched by s. The input is not modified.
func Apply(rows []dataset.Country, s Spec) []dataset.Country {
	out := make([]dataset.Country, 0, len(rows))
	for _, r := range rows {
		if s.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Normalize sorts and deduplicates the membership sets.
func (s Spec) Normalize() Spec {
	n := s
	n.Countries = compact(s.Countries)
	n.Years = compact(s.Years)
	return n
}

func compact[T int | string](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint is a stable hash of the normalized spec, independent of set order.
func Fingerprint(s Spec) string {
	n := s.Normalize()
	var b strings.Builder
	b.WriteString("pop=")
	b.WriteString(strconv.FormatFloat(n.PopMin, 'g', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(n.PopMax, 'g', -1, 64))
	b.WriteString(";life=")
	b.WriteString(strconv.FormatFloat(n.LifeMin, 'g', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(n.LifeMax, 'g', -1, 64))
	b.WriteString(";countries=")
	for i, c := range n.Countries {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c)
	}
	b.WriteString(";years=")
	for i, y := range n.Years {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(y))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
