package models

import "fmt"

// BoundingBoxDelta is the half-width, in degrees, of the box used for proximity filtering.
const BoundingBoxDelta = 0.1

// Limits for the filtered station listing.
const (
	DefaultStationLimit = 50
	MinStationLimit     = 1
	MaxStationLimit     = 1000
)

// StationFilter selects stations by exact provider/source and an optional
// bounding box around Lat/Lon. Lat and Lon are either both set or both nil.
type StationFilter struct {
	Provider string
	Source   Source
	Lat      *float64
	Lon      *float64
	Limit    int
}

// Key renders the filter as a stable cache key.
func (f StationFilter) Key() string {
	lat, lon := "-", "-"
	if f.Lat != nil && f.Lon != nil {
		lat = fmt.Sprintf("%g", *f.Lat)
		lon = fmt.Sprintf("%g", *f.Lon)
	}
	return fmt.Sprintf("stations:p=%s|s=%s|lat=%s|lon=%s|n=%d", f.Provider, f.Source, lat, lon, f.Limit)
}

// Page bounds an otherwise unbounded listing. A zero Limit means no limit.
type Page struct {
	Skip  int
	Limit int
}

// NearbyQuery asks for the stations closest to a point.
type NearbyQuery struct {
	Lat         float64
	Lon         float64
	MaxDistance float64 // metres
	Limit       int
}
