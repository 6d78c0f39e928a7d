package aggregate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

func TestSummarize_EmptyIsNotAvailable(t *testing.T) {
	for _, rows := range [][]dataset.Country{nil, {}} {
		s := Summarize(rows)
		if s.Available {
			t.Fatal("empty subset must not be available")
		}
		for name, got := range map[string]string{"pop": s.PopText(), "gdp": s.GDPText(), "life": s.LifeExpText()} {
			if got != NotAvailable {
				t.Fatalf("%s=%q want %q", name, got, NotAvailable)
			}
		}
	}
}

func TestSummarize_Totals(t *testing.T) {
	rows := []dataset.Country{
		{Country: "X", Year: 1952, Pop: 1000, LifeExp: 40, GDPPercap: 2.5},
		{Country: "X", Year: 1957, Pop: 3000, LifeExp: 50, GDPPercap: 1},
	}
	s := Summarize(rows)
	if !s.Available || s.Rows != 2 {
		t.Fatalf("summary=%+v", s)
	}
	if s.TotalPop != 4000 {
		t.Fatalf("pop=%d want 4000", s.TotalPop)
	}
	if math.Abs(s.TotalGDP-5500) > 1e-9 {
		t.Fatalf("gdp=%v want 5500", s.TotalGDP)
	}
	if s.MeanLifeExp != 45 {
		t.Fatalf("life=%v want 45", s.MeanLifeExp)
	}
	if s.PopText() != "4,000" || s.GDPText() != "5,500.00" || s.LifeExpText() != "45.00" {
		t.Fatalf("formatted pop=%q gdp=%q life=%q", s.PopText(), s.GDPText(), s.LifeExpText())
	}
}

func TestSummarize_AfghanistanSample(t *testing.T) {
	rows := ForCountry(dataset.SampleGapminder().Rows(), "Afghanistan")
	if len(rows) != 12 {
		t.Fatalf("rows=%d want 12", len(rows))
	}
	s := Summarize(rows)
	if !s.Available || s.TotalPop <= 0 || s.TotalGDP <= 0 {
		t.Fatalf("summary=%+v", s)
	}
	if s.MeanLifeExp < 28 || s.MeanLifeExp > 44 {
		t.Fatalf("mean life expectancy %v out of range", s.MeanLifeExp)
	}
}

func TestForCountry_Unknown(t *testing.T) {
	if rows := ForCountry(dataset.SampleGapminder().Rows(), "Atlantis"); len(rows) != 0 {
		t.Fatalf("rows=%d want 0", len(rows))
	}
}

func TestLatestByCountry(t *testing.T) {
	rows := []dataset.Country{
		{Country: "B", Year: 1952, GDPPercap: 1},
		{Country: "A", Year: 2007, GDPPercap: 7},
		{Country: "B", Year: 2007, GDPPercap: 2},
		{Country: "A", Year: 1952, GDPPercap: 3},
	}
	want := []dataset.Country{
		{Country: "B", Year: 2007, GDPPercap: 2},
		{Country: "A", Year: 2007, GDPPercap: 7},
	}
	if diff := cmp.Diff(want, LatestByCountry(rows)); diff != "" {
		t.Fatalf("latest (-want +got):\n%s", diff)
	}
}

func TestNumber(t *testing.T) {
	if got := Number(1234567.891, 2); got != "1,234,567.89" {
		t.Fatalf("got %q", got)
	}
	if got := Number(1234567, 0); got != "1,234,567" {
		t.Fatalf("got %q", got)
	}
}
