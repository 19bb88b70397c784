package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

const (
	defaultBEEURL = "https://evyatra.beeindia.gov.in/bee-ev-backend/getPCSdetailsbystationid"
	beeProvider   = "BEE"
)

// BEEStation is the value of a station-details response.
type BEEStation struct {
	ID          int64        `json:"id"`
	StationName string       `json:"station_name"`
	Address     string       `json:"address"`
	Lat         *Coord       `json:"lat"`
	Lng         *Coord       `json:"lng"`
	CompanyName string       `json:"companyname"`
	CityName    string       `json:"city_name"`
	Is24x7      string       `json:"is_tweenty_four_seven"`
	Chargers    []BEECharger `json:"charger"`
}

// Coord is a coordinate the BEE API sends either as a number or as a numeric string.
type Coord float64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coord) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(strings.Trim(string(b), `"`), 64)
	if err != nil {
		return eris.Wrapf(err, "bee: bad coordinate %s", b)
	}
	*c = Coord(v)
	return nil
}

// BEECharger is one connector of a BEE station.
type BEECharger struct {
	ID            int64    `json:"id"`
	ChargerType   string   `json:"chargerType"`
	RatedCapacity *float64 `json:"ratedCapacity"`
	PowerType     string   `json:"power_type"`
	WkStatus      string   `json:"wkStatus"`
	TariffRate    *float64 `json:"tariff_rate"`
}

// BEE requests station details one id at a time over an inclusive id range.
type BEE struct {
	url  string
	up   *upstream
	next int
	last int
}

// NewBEE creates the BEE EV Yatra source for ids first..last.
func NewBEE(first, last int, opts ...Option) *BEE {
	o := buildOptions(defaultBEEURL, 250*time.Millisecond, opts)
	return &BEE{url: o.baseURL, up: newUpstream("bee", o), next: first, last: last}
}

// Tag implements Source.
func (b *BEE) Tag() models.Source { return models.SourceBEE }

// Next implements Source. Ids without a station are skipped.
func (b *BEE) Next(ctx context.Context) (Page[BEEStation], error) {
	for b.next <= b.last {
		id := b.next
		b.next++
		unit := "station_id=" + strconv.Itoa(id)
		more := b.next <= b.last

		station, malformed, err := b.fetch(ctx, id)
		if err != nil {
			return Page[BEEStation]{Unit: unit, More: more}, err
		}
		if malformed {
			return Page[BEEStation]{Unit: unit, Malformed: 1, More: more}, nil
		}
		if station == nil {
			continue
		}
		return Page[BEEStation]{Unit: unit, Records: []BEEStation{*station}, More: more}, nil
	}
	return Page[BEEStation]{}, nil
}

func (b *BEE) fetch(ctx context.Context, id int) (*BEEStation, bool, error) {
	body, err := json.Marshal(map[string]int{"station_id": id})
	if err != nil {
		return nil, false, eris.Wrap(err, "bee: marshal request")
	}

	respBody, err := b.up.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, false, err
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, false, eris.Wrapf(err, "bee: unmarshal response for station %d", id)
	}
	if len(envelope.Value) == 0 || string(envelope.Value) == "null" {
		return nil, false, nil
	}

	var station BEEStation
	if err := json.Unmarshal(envelope.Value, &station); err != nil {
		return nil, true, nil
	}
	if station.ID == 0 {
		station.ID = int64(id)
	}
	return &station, false, nil
}

// Normalize implements Source.
func (b *BEE) Normalize(s BEEStation) (models.Station, error) {
	return NormalizeBEEStation(s)
}

// NormalizeBEEStation maps a BEE station to a station keyed by "bee-<id>".
func NormalizeBEEStation(s BEEStation) (models.Station, error) {
	if s.Lat == nil || s.Lng == nil {
		return models.Station{}, reject("bee: station %d without location", s.ID)
	}

	name := s.StationName
	if name == "" {
		name = models.UnknownName
	}
	provider := beeProvider
	if s.CompanyName != "" {
		provider = s.CompanyName
	}
	is24x7 := s.Is24x7 == "t"

	chargers := make([]models.Charger, 0, len(s.Chargers))
	for _, c := range s.Chargers {
		chargers = append(chargers, models.Charger{
			ID:              c.ID,
			ChargerType:     c.ChargerType,
			RatedCapacityKW: c.RatedCapacity,
			PowerType:       c.PowerType,
			Status:          c.WkStatus,
			TariffRate:      c.TariffRate,
		})
	}

	return finish(models.Station{
		Name:      name,
		Address:   models.StringPtr(s.Address),
		Latitude:  float64(*s.Lat),
		Longitude: float64(*s.Lng),
		Provider:  provider,
		Source:    models.SourceBEE,
		PlaceID:   models.StringPtr("bee-" + strconv.FormatInt(s.ID, 10)),
		City:      models.StringPtr(s.CityName),
		Is24x7:    &is24x7,
		Chargers:  chargers,
	})
}
