package filter

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

func specs() []Spec {
	return []Spec{
		Unbounded(),
		{PopMin: 1e7, PopMax: 5e7, LifeMin: 40, LifeMax: 70},
		{PopMin: 0, PopMax: 1e10, LifeMin: 60, LifeMax: 100, Countries: []string{"Japan", "Canada"}},
		{PopMin: 0, PopMax: 1e10, LifeMin: 0, LifeMax: 100, Years: []int{1952, 2007}},
		{PopMin: 5e7, PopMax: 1e7, LifeMin: 0, LifeMax: 100},
		{PopMin: 0, PopMax: 1e10, LifeMin: 0, LifeMax: 100, Countries: []string{"Atlantis"}},
	}
}

func TestApply_SubsetSoundAndComplete(t *testing.T) {
	rows := dataset.SampleGapminder().Rows()
	for i, s := range specs() {
		got := Apply(rows, s)

		// ordered subsequence, every kept row matches
		j := 0
		for _, r := range got {
			for j < len(rows) && !cmp.Equal(rows[j], r) {
				if s.Match(rows[j]) {
					t.Fatalf("spec %d: matching row %+v was dropped", i, rows[j])
				}
				j++
			}
			if j == len(rows) {
				t.Fatalf("spec %d: %+v is not an ordered member of the input", i, r)
			}
			if !s.Match(r) {
				t.Fatalf("spec %d: row %+v does not match the filter", i, r)
			}
			j++
		}
		for ; j < len(rows); j++ {
			if s.Match(rows[j]) {
				t.Fatalf("spec %d: matching row %+v was dropped", i, rows[j])
			}
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	rows := dataset.SampleGapminder().Rows()
	for i, s := range specs() {
		once := Apply(rows, s)
		twice := Apply(once, s)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("spec %d not idempotent (-once +twice):\n%s", i, diff)
		}
	}
}

func TestApply_WideBoundsReturnEverything(t *testing.T) {
	rows := dataset.SampleGapminder().Rows()
	got := Apply(rows, Unbounded())
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Fatalf("wide bounds should keep all rows (-want +got):\n%s", diff)
	}
}

func TestApply_AfghanistanOnly(t *testing.T) {
	rows := dataset.SampleGapminder().Rows()
	s := Unbounded()
	s.Countries = []string{"Afghanistan"}

	got := Apply(rows, s)
	if len(got) != 12 {
		t.Fatalf("rows=%d want 12", len(got))
	}
	prev := 0
	for _, r := range got {
		if r.Country != "Afghanistan" {
			t.Fatalf("unexpected country %q", r.Country)
		}
		if r.Year <= prev {
			t.Fatalf("source order not preserved: %d after %d", r.Year, prev)
		}
		prev = r.Year
	}

	s.Countries = []string{"afghanistan"}
	if n := len(Apply(rows, s)); n != 0 {
		t.Fatalf("case-insensitive match returned %d rows", n)
	}
}

func TestApply_InvertedBoundsEmpty(t *testing.T) {
	rows := dataset.SampleGapminder().Rows()
	got := Apply(rows, Spec{PopMin: 1e10, PopMax: 0, LifeMin: 0, LifeMax: 100})
	if got == nil || len(got) != 0 {
		t.Fatalf("inverted bounds: got %v, want empty non-nil slice", got)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	rows := []dataset.Country{{Country: "A", Pop: 1, LifeExp: 1}, {Country: "B", Pop: 2, LifeExp: 2}}
	before := append([]dataset.Country(nil), rows...)
	_ = Apply(rows, Spec{PopMin: 2, PopMax: 2, LifeMin: 0, LifeMax: 10})
	if diff := cmp.Diff(before, rows); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestParse_DefaultsAndOverrides(t *testing.T) {
	def := Spec{PopMin: 10, PopMax: 20, LifeMin: 30, LifeMax: 40}

	got, err := Parse(url.Values{}, def)
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if diff := cmp.Diff(def, got); diff != "" {
		t.Fatalf("defaults (-want +got):\n%s", diff)
	}

	v := url.Values{
		ParamPopMin:  {" 1e6 "},
		ParamLifeMax: {""},
		ParamCountry: {"Japan", "", "Canada", "Japan"},
		ParamYear:    {"2007", "1952"},
	}
	got, err = Parse(v, def)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Spec{PopMin: 1e6, PopMax: 20, LifeMin: 30, LifeMax: 40, Countries: []string{"Canada", "Japan"}, Years: []int{1952, 2007}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parsed (-want +got):\n%s", diff)
	}
}

func TestParse_NonNumericIsValidationError(t *testing.T) {
	for _, field := range []string{ParamPopMin, ParamPopMax, ParamLifeMin, ParamLifeMax, ParamYear} {
		_, err := Parse(url.Values{field: {"abc"}}, Unbounded())
		if !errors.Is(err, ErrInvalidBound) {
			t.Fatalf("%s: want ErrInvalidBound, got %v", field, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != field || ve.Value != "abc" {
			t.Fatalf("%s: want ValidationError naming field, got %#v", field, err)
		}
	}
	if _, err := ParseBound(ParamPopMin, "NaN"); !errors.Is(err, ErrInvalidBound) {
		t.Fatalf("NaN should be rejected, got %v", err)
	}
}

func TestValuesRoundTrip(t *testing.T) {
	s := Spec{PopMin: 8425333, PopMax: 1.110396331e9, LifeMin: 28.801, LifeMax: 82.603, Countries: []string{"Brazil"}, Years: []int{2007}}
	got, err := Parse(s.Values(), Unbounded())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	a := Spec{PopMin: 1, PopMax: 2, LifeMin: 3, LifeMax: 4, Countries: []string{"B", "A", "A"}, Years: []int{2007, 1952}}
	b := Spec{PopMin: 1, PopMax: 2, LifeMin: 3, LifeMax: 4, Countries: []string{"A", "B"}, Years: []int{1952, 2007}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint should ignore set order and duplicates")
	}
	if len(Fingerprint(a)) != 16 {
		t.Fatalf("fingerprint %q should be 16 hex chars", Fingerprint(a))
	}
	c := b
	c.LifeMax = 5
	if Fingerprint(b) == Fingerprint(c) {
		t.Fatal("different bounds should change the fingerprint")
	}
}

func TestFromBounds_MatchesWholeDataset(t *testing.T) {
	g := dataset.SampleGapminder()
	got := Apply(g.Rows(), FromBounds(g.Bounds()))
	if len(got) != g.Len() {
		t.Fatalf("rows=%d want %d", len(got), g.Len())
	}
}
