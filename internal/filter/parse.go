package filter

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names shared by the About page form and the CSV download link.
const (
	ParamPopMin  = "pop_min"
	ParamPopMax  = "pop_max"
	ParamLifeMin = "lifeexp_min"
	ParamLifeMax = "lifeexp_max"
	ParamCountry = "country"
	ParamYear    = "year"
)

var ErrInvalidBound = errors.New("invalid filter bound")

// ValidationError names the offending field and the raw value.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q is not a number", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrInvalidBound, e.Err} }

// Parse reads a spec from form or query values. Missing or blank bounds fall
// back to defaults; non-numeric values are rejected rather than coerced.
func Parse(values url.Values, defaults Spec) (Spec, error) {
	s := defaults
	var err error
	if s.PopMin, err = bound(values, ParamPopMin, defaults.PopMin); err != nil {
		return Spec{}, err
	}
	if s.PopMax, err = bound(values, ParamPopMax, defaults.PopMax); err != nil {
		return Spec{}, err
	}
	if s.LifeMin, err = bound(values, ParamLifeMin, defaults.LifeMin); err != nil {
		return Spec{}, err
	}
	if s.LifeMax, err = bound(values, ParamLifeMax, defaults.LifeMax); err != nil {
		return Spec{}, err
	}

	if raw, ok := values[ParamCountry]; ok {
		s.Countries = nil
		for _, c := range raw {
			if c = strings.TrimSpace(c); c != "" {
				s.Countries = append(s.Countries, c)
			}
		}
	}
	if raw, ok := values[ParamYear]; ok {
		s.Years = nil
		for _, y := range raw {
			y = strings.TrimSpace(y)
			if y == "" {
				continue
			}
			n, err := strconv.Atoi(y)
			if err != nil {
				return Spec{}, &ValidationError{Field: ParamYear, Value: y, Err: err}
			}
			s.Years = append(s.Years, n)
		}
	}
	return s.Normalize(), nil
}

// ParseBound parses one numeric widget value.
func ParseBound(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: raw, Err: err}
	}
	if math.IsNaN(f) {
		return 0, &ValidationError{Field: field, Value: raw, Err: errors.New("NaN")}
	}
	return f, nil
}

func bound(values url.Values, field string, def float64) (float64, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return def, nil
	}
	return ParseBound(field, raw)
}

// Values encodes s with the same parameter names Parse reads.
func (s Spec) Values() url.Values {
	v := url.Values{}
	v.Set(ParamPopMin, strconv.FormatFloat(s.PopMin, 'f', -1, 64))
	v.Set(ParamPopMax, strconv.FormatFloat(s.PopMax, 'f', -1, 64))
	v.Set(ParamLifeMin, strconv.FormatFloat(s.LifeMin, 'f', -1, 64))
	v.Set(ParamLifeMax, strconv.FormatFloat(s.LifeMax, 'f', -1, 64))
	for _, c := range s.Countries {
		v.Add(ParamCountry, c)
	}
	for _, y := range s.Years {
		v.Add(ParamYear, strconv.Itoa(y))
	}
	return v
}
