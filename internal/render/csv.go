package render

import (
	"io"

	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
)

// ExportFilename is the attachment name of the filtered table download.
const ExportFilename = "filtered_gapminder.csv"

// WriteCSV writes rows with the source dataset's columns, in the source's
// order, and a header row.
func WriteCSV(w io.Writer, layout dataset.Layout, rows []dataset.Country) error {
	return dataset.WriteGapminderCSV(w, layout, rows)
}
