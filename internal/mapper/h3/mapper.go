package h3mapper

import (
	"errors"
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
)

var ErrInvalidPoint = errors.New("invalid coordinates")

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellForPoint returns the hex id of the cell containing (lat, lon) at res.
func (m *Mapper) CellForPoint(lat, lon float64, res int) (string, error) {
	if err := ValidateRes(res); err != nil {
		return "", err
	}
	if err := ValidatePoint(lat, lon); err != nil {
		return "", err
	}
	// v4 takes degrees
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

// CellCenter returns the centroid of a cell, used to snap cached lookups.
func (m *Mapper) CellCenter(cell string) (lat, lon float64, err error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return 0, 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, 0, fmt.Errorf("invalid h3 cell %q", cell)
	}
	ll, err := c.LatLng()
	if err != nil {
		return 0, 0, fmt.Errorf("h3 center: %w", err)
	}
	return ll.Lat, ll.Lng, nil
}

func ValidateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// ValidatePoint requires finite latitude in [-90,90] and longitude in [-180,180].
func ValidatePoint(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: not finite", ErrInvalidPoint)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v must be in [-90,90]", ErrInvalidPoint, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v must be in [-180,180]", ErrInvalidPoint, lon)
	}
	return nil
}
