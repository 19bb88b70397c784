package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

const defaultOCMURL = "https://api.openchargemap.io/v3/poi/"

// OCMPOI is one point of interest in the compact OpenChargeMap output.
type OCMPOI struct {
	ID           int              `json:"ID"`
	AddressInfo  *OCMAddressInfo  `json:"AddressInfo"`
	OperatorInfo *OCMOperatorInfo `json:"OperatorInfo"`
}

// OCMAddressInfo is the location block of a POI.
type OCMAddressInfo struct {
	Title        string   `json:"Title"`
	AddressLine1 string   `json:"AddressLine1"`
	Town         string   `json:"Town"`
	Latitude     *float64 `json:"Latitude"`
	Longitude    *float64 `json:"Longitude"`
}

// OCMOperatorInfo names the network operating a POI.
type OCMOperatorInfo struct {
	Title string `json:"Title"`
}

// OCMConfig bounds the OpenChargeMap crawl.
type OCMConfig struct {
	APIKey      string
	CountryCode string
	BatchSize   int
	MaxOffset   int
}

// OpenChargeMap pages through the POI endpoint by offset.
type OpenChargeMap struct {
	cfg    OCMConfig
	url    string
	up     *upstream
	offset int
	done   bool
}

// NewOpenChargeMap creates the OpenChargeMap source.
func NewOpenChargeMap(cfg OCMConfig, opts ...Option) *OpenChargeMap {
	o := buildOptions(defaultOCMURL, time.Second, opts)
	if cfg.CountryCode == "" {
		cfg.CountryCode = "IN"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = 20000
	}
	return &OpenChargeMap{cfg: cfg, url: o.baseURL, up: newUpstream("openchargemap", o)}
}

// Tag implements Source.
func (c *OpenChargeMap) Tag() models.Source { return models.SourceOpenChargeMap }

// Next implements Source. A failed page is skipped and the offset still advances.
func (c *OpenChargeMap) Next(ctx context.Context) (Page[OCMPOI], error) {
	if c.done || c.offset > c.cfg.MaxOffset {
		return Page[OCMPOI]{}, nil
	}

	offset := c.offset
	c.offset += c.cfg.BatchSize
	unit := "offset=" + strconv.Itoa(offset)
	more := c.offset <= c.cfg.MaxOffset

	raws, err := c.fetch(ctx, offset)
	if err != nil {
		return Page[OCMPOI]{Unit: unit, More: more}, err
	}
	if len(raws) == 0 {
		c.done = true
		return Page[OCMPOI]{Unit: unit}, nil
	}

	pois, malformed := decodeEach[OCMPOI](raws)
	return Page[OCMPOI]{Unit: unit, Records: pois, Malformed: malformed, More: more}, nil
}

func (c *OpenChargeMap) fetch(ctx context.Context, offset int) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("output", "json")
	params.Set("countrycode", c.cfg.CountryCode)
	params.Set("maxresults", strconv.Itoa(c.cfg.BatchSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("compact", "true")
	params.Set("verbose", "false")
	params.Set("key", c.cfg.APIKey)

	body, err := c.up.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+params.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, eris.Wrap(err, "openchargemap: unmarshal response")
	}
	return raws, nil
}

// Normalize implements Source.
func (c *OpenChargeMap) Normalize(p OCMPOI) (models.Station, error) {
	return NormalizeOCM(p)
}

// NormalizeOCM maps a POI to a station keyed by name and location.
func NormalizeOCM(p OCMPOI) (models.Station, error) {
	info := p.AddressInfo
	if info == nil || info.Latitude == nil || info.Longitude == nil {
		return models.Station{}, reject("openchargemap: poi %d without location", p.ID)
	}

	name := info.Title
	if name == "" {
		name = models.UnknownName
	}
	provider := string(models.SourceOpenChargeMap)
	if p.OperatorInfo != nil && p.OperatorInfo.Title != "" {
		provider = p.OperatorInfo.Title
	}

	return finish(models.Station{
		Name:      name,
		Address:   models.StringPtr(info.AddressLine1),
		Latitude:  *info.Latitude,
		Longitude: *info.Longitude,
		Provider:  provider,
		Source:    models.SourceOpenChargeMap,
		City:      models.StringPtr(info.Town),
	})
}
