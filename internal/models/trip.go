package models

import "fmt"

// Trip planning limits.
const (
	DefaultTripBufferKm = 2.0
	MaxTripBufferKm     = 50.0
	TripStationLimit    = 500
)

// Coordinate is a point on a route.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Route is a driving route resolved by a directions provider.
type Route struct {
	Polyline     string
	DistanceText *string
	DurationText *string
	Path         []Coordinate
}

// TripRequest asks for the stations within BufferKm of the route between two places.
// A zero BufferKm means DefaultTripBufferKm.
type TripRequest struct {
	Origin      string  `json:"origin" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
	BufferKm    float64 `json:"bufferKm"`
}

// Key renders the request as a cache key.
func (r TripRequest) Key() string {
	return fmt.Sprintf("trip:%s:%s:%g", r.Origin, r.Destination, r.BufferKm)
}

// TripRoute summarises the route of a trip plan.
type TripRoute struct {
	Polyline     string  `json:"polyline"`
	DistanceText *string `json:"distanceText"`
	DurationText *string `json:"durationText"`
}

// TripPlan is the route together with the stations along it, in route order.
type TripPlan struct {
	Route    TripRoute     `json:"route"`
	Stations []StationView `json:"stations"`
}
