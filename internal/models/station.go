package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Source identifies which upstream produced a station record.
type Source string

const (
	SourceGooglePlaces  Source = "GooglePlacesV1"
	SourceOpenChargeMap Source = "OpenChargeMap"
	SourceStatiq        Source = "StatiqScrape"
	SourceBEE           Source = "BEE"
)

// UnknownName is stored when an upstream record carries no display name.
const UnknownName = "Unknown"

// Station is the canonical charging-station record shared by every source.
// Latitude and Longitude are mandatory; a record without them never reaches the store.
type Station struct {
	Name        string    `json:"name" validate:"required"`
	Address     *string   `json:"address"`
	Latitude    float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Provider    string    `json:"provider" validate:"required"`
	Source      Source    `json:"source" validate:"required,oneof=GooglePlacesV1 OpenChargeMap StatiqScrape BEE"`
	PlaceID     *string   `json:"place_id,omitempty"`
	City        *string   `json:"city,omitempty"`
	Is24x7      *bool     `json:"is_24x7,omitempty"`
	Chargers    []Charger `json:"chargers,omitempty" validate:"omitempty,dive"`
	LastUpdated time.Time `json:"last_updated"`
}

// Charger is a single connector reported by the BEE station API.
type Charger struct {
	ID              int64    `json:"id"`
	ChargerType     string   `json:"charger_type"`
	RatedCapacityKW *float64 `json:"rated_capacity_kw,omitempty"`
	PowerType       string   `json:"power_type,omitempty"`
	Status          string   `json:"status,omitempty"`
	TariffRate      *float64 `json:"tariff_rate,omitempty"`
}

// IdentityKind tells the store which unique key a station is upserted on.
type IdentityKind int

const (
	// IdentityPlaceID keys on the upstream's own stable identifier.
	IdentityPlaceID IdentityKind = iota + 1
	// IdentityNameLocation keys on the (name, latitude, longitude) triple.
	IdentityNameLocation
)

// Identity returns the natural key the station is written under.
func (s Station) Identity() IdentityKind {
	if s.PlaceID != nil && *s.PlaceID != "" {
		return IdentityPlaceID
	}
	return IdentityNameLocation
}

var validate = validator.New()

// Validate checks the invariants every stored station must satisfy.
func (s Station) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrapf(err, "models: invalid station %q", s.Name)
	}
	return nil
}

// StationView is the API projection of a station. The store id is rendered as a
// string and last_updated is never exposed.
type StationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Provider  string    `json:"provider"`
	Source    Source    `json:"source"`
	PlaceID   *string   `json:"place_id,omitempty"`
	City      *string   `json:"city,omitempty"`
	Is24x7    *bool     `json:"is_24x7,omitempty"`
	Chargers  []Charger `json:"chargers,omitempty"`
	Distance  *float64  `json:"distance_m,omitempty"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
