// Package mapper converts geographic points to H3 cells.
package mapper

// Interface maps a point to the identifier of the cell containing it.
type Interface interface {
	CellForPoint(lat, lon float64, res int) (string, error)
}
