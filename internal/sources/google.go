package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

const (
	defaultGoogleURL  = "https://places.googleapis.com/v1/places:searchNearby"
	googleFieldMask   = "places.displayName,places.location,places.formattedAddress,places.id"
	googleRadius      = 10000 // metres
	googleMaxResults  = 20
	googleStationType = "electric_vehicle_charging_station"
)

// City is a search centre for the Google grid.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// DefaultCities are the metro areas scanned by the Google source.
var DefaultCities = []City{
	{Name: "Delhi", Lat: 28.6139, Lon: 77.2090},
	{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777},
	{Name: "Bangalore", Lat: 12.9716, Lon: 77.5946},
	{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867},
	{Name: "Chennai", Lat: 13.0827, Lon: 80.2707},
	{Name: "Jaipur", Lat: 26.9124, Lon: 75.7873},
	{Name: "Ahmedabad", Lat: 23.0225, Lon: 72.5714},
}

var gridOffsets = []float64{-0.1, 0, 0.1}

// GooglePlace is one element of a searchNearby response.
type GooglePlace struct {
	ID               string             `json:"id"`
	FormattedAddress string             `json:"formattedAddress"`
	DisplayName      *GoogleDisplayName `json:"displayName"`
	Location         *GoogleLatLng      `json:"location"`
}

// GoogleDisplayName is the localized name of a place.
type GoogleDisplayName struct {
	Text string `json:"text"`
}

// GoogleLatLng is a place location.
type GoogleLatLng struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type gridCell struct {
	city string
	lat  float64
	lon  float64
}

// Google walks a 3x3 grid around each city with the Places nearby search.
type Google struct {
	apiKey   string
	provider string
	url      string
	up       *upstream
	cells    []gridCell
	pos      int
}

// NewGoogle creates the Google Places source. Every record is attributed to provider.
func NewGoogle(apiKey, provider string, cities []City, opts ...Option) *Google {
	o := buildOptions(defaultGoogleURL, time.Second, opts)
	if provider == "" {
		provider = "Ather Grid"
	}

	cells := make([]gridCell, 0, len(cities)*len(gridOffsets)*len(gridOffsets))
	for _, c := range cities {
		for _, dlat := range gridOffsets {
			for _, dlon := range gridOffsets {
				cells = append(cells, gridCell{city: c.Name, lat: c.Lat + dlat, lon: c.Lon + dlon})
			}
		}
	}

	return &Google{
		apiKey:   apiKey,
		provider: provider,
		url:      o.baseURL,
		up:       newUpstream("google", o),
		cells:    cells,
	}
}

// Tag implements Source.
func (g *Google) Tag() models.Source { return models.SourceGooglePlaces }

// Next implements Source.
func (g *Google) Next(ctx context.Context) (Page[GooglePlace], error) {
	for g.pos < len(g.cells) {
		cell := g.cells[g.pos]
		g.pos++
		unit := fmt.Sprintf("%s(%.4f,%.4f)", cell.city, cell.lat, cell.lon)
		more := g.pos < len(g.cells)

		places, malformed, err := g.searchNearby(ctx, cell)
		if err != nil {
			return Page[GooglePlace]{Unit: unit, More: more}, err
		}
		if len(places) == 0 && malformed == 0 {
			continue
		}
		return Page[GooglePlace]{Unit: unit, Records: places, Malformed: malformed, More: more}, nil
	}
	return Page[GooglePlace]{}, nil
}

type searchNearbyRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

func (g *Google) searchNearby(ctx context.Context, cell gridCell) ([]GooglePlace, int, error) {
	payload := searchNearbyRequest{
		IncludedTypes:  []string{googleStationType},
		MaxResultCount: googleMaxResults,
	}
	payload.LocationRestriction.Circle.Center.Latitude = cell.lat
	payload.LocationRestriction.Circle.Center.Longitude = cell.lon
	payload.LocationRestriction.Circle.Radius = googleRadius

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "google: marshal request")
	}

	respBody, err := g.up.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", g.apiKey)
		req.Header.Set("X-Goog-FieldMask", googleFieldMask)
		return req, nil
	})
	if err != nil {
		return nil, 0, err
	}

	var result struct {
		Places []json.RawMessage `json:"places"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, 0, eris.Wrap(err, "google: unmarshal response")
	}

	places, malformed := decodeEach[GooglePlace](result.Places)
	return places, malformed, nil
}

// Normalize implements Source.
func (g *Google) Normalize(p GooglePlace) (models.Station, error) {
	return NormalizeGooglePlace(p, g.provider)
}

// NormalizeGooglePlace maps a place to a station keyed by its place id.
func NormalizeGooglePlace(p GooglePlace, provider string) (models.Station, error) {
	if p.ID == "" {
		return models.Station{}, reject("google: place without id")
	}
	if p.Location == nil || p.Location.Latitude == nil || p.Location.Longitude == nil {
		return models.Station{}, reject("google: place %s without location", p.ID)
	}

	name := models.UnknownName
	if p.DisplayName != nil && p.DisplayName.Text != "" {
		name = p.DisplayName.Text
	}

	return finish(models.Station{
		Name:      name,
		Address:   models.StringPtr(p.FormattedAddress),
		Latitude:  *p.Location.Latitude,
		Longitude: *p.Location.Longitude,
		Provider:  provider,
		Source:    models.SourceGooglePlaces,
		PlaceID:   models.StringPtr(p.ID),
	})
}
