package aggregate

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// PopText is the total population with thousands separators and no decimals.
func (s Summary) PopText() string {
	if !s.Available {
		return NotAvailable
	}
	return printer.Sprintf("%d", s.TotalPop)
}

func (s Summary) GDPText() string {
	if !s.Available {
		return NotAvailable
	}
	return printer.Sprintf("%.2f", s.TotalGDP)
}

func (s Summary) LifeExpText() string {
	if !s.Available {
		return NotAvailable
	}
	return printer.Sprintf("%.2f", s.MeanLifeExp)
}

// Number formats a value for tables and tooltips using the same grouping.
func Number(v float64, decimals int) string {
	return printer.Sprintf("%.*f", decimals, v)
}
