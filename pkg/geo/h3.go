package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution levels used for spatial bucketing.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionHotspot groups waiting positions into ~460m cells (~0.74 km²).
	H3ResolutionHotspot = 8

	h3MinResolution = 0
	h3MaxResolution = 15
)

// ValidResolution clamps a resolution into the range H3 accepts.
func ValidResolution(resolution int) int {
	if resolution < h3MinResolution {
		return h3MinResolution
	}
	if resolution > h3MaxResolution {
		return h3MaxResolution
	}
	return resolution
}

// ValidLatLng reports whether the coordinate can be indexed.
func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 && !(lat == 0 && lng == 0)
}

// LatLngToCell converts latitude/longitude to an H3 cell index at the given resolution.
// Returns the zero cell for input H3 rejects.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), ValidResolution(resolution))
	if err != nil {
		return 0
	}
	return cell
}

// CellToLatLng returns the center coordinates of an H3 cell.
func CellToLatLng(cell h3.Cell) (lat, lng float64) {
	latLng, err := cell.LatLng()
	if err != nil {
		return 0, 0
	}
	return latLng.Lat, latLng.Lng
}

// CellToString converts an H3 cell to its hex string representation.
func CellToString(cell h3.Cell) string {
	return cell.String()
}
