package sources

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"ev-charging-api/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const (
	defaultStatiqURL      = "https://www.statiq.in/charging-stations-map"
	DefaultStatiqSelector = ".station-card"
	statiqProvider        = "Statiq"
)

// StatiqCard holds the raw data-* attributes of one station element.
// Values stay strings until normalization.
type StatiqCard struct {
	Name    string
	Lat     string
	Lng     string
	Address string
}

// Statiq scrapes station cards from a rendered map page. The page is fetched
// once and yields a single unit.
type Statiq struct {
	url      string
	selector string
	up       *upstream
	fetched  bool
}

// NewStatiq creates the Statiq scraper. An empty selector uses DefaultStatiqSelector.
func NewStatiq(selector string, opts ...Option) *Statiq {
	o := buildOptions(defaultStatiqURL, 0, opts)
	if selector == "" {
		selector = DefaultStatiqSelector
	}
	return &Statiq{url: o.baseURL, selector: selector, up: newUpstream("statiq", o)}
}

// Tag implements Source.
func (s *Statiq) Tag() models.Source { return models.SourceStatiq }

// Next implements Source.
func (s *Statiq) Next(ctx context.Context) (Page[StatiqCard], error) {
	if s.fetched {
		return Page[StatiqCard]{}, nil
	}
	s.fetched = true

	body, err := s.up.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html")
		return req, nil
	})
	if err != nil {
		return Page[StatiqCard]{Unit: s.url}, err
	}

	cards, err := ParseStatiqCards(body, s.selector)
	if err != nil {
		return Page[StatiqCard]{Unit: s.url}, err
	}
	return Page[StatiqCard]{Unit: s.url, Records: cards}, nil
}

// ParseStatiqCards extracts every element matching selector from an HTML document.
func ParseStatiqCards(html []byte, selector string) ([]StatiqCard, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "statiq: parse html")
	}

	cards := make([]StatiqCard, 0)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		cards = append(cards, StatiqCard{
			Name:    strings.TrimSpace(sel.AttrOr("data-name", "")),
			Lat:     strings.TrimSpace(sel.AttrOr("data-lat", "")),
			Lng:     strings.TrimSpace(sel.AttrOr("data-lng", "")),
			Address: strings.TrimSpace(sel.AttrOr("data-address", "")),
		})
	})
	return cards, nil
}

// Normalize implements Source.
func (s *Statiq) Normalize(c StatiqCard) (models.Station, error) {
	return NormalizeStatiqCard(c)
}

// NormalizeStatiqCard parses the card coordinates; cards without them are rejected.
func NormalizeStatiqCard(c StatiqCard) (models.Station, error) {
	lat, err := strconv.ParseFloat(c.Lat, 64)
	if err != nil {
		return models.Station{}, reject("statiq: card %q has bad latitude %q", c.Name, c.Lat)
	}
	lon, err := strconv.ParseFloat(c.Lng, 64)
	if err != nil {
		return models.Station{}, reject("statiq: card %q has bad longitude %q", c.Name, c.Lng)
	}

	name := c.Name
	if name == "" {
		name = models.UnknownName
	}

	return finish(models.Station{
		Name:      name,
		Address:   models.StringPtr(c.Address),
		Latitude:  lat,
		Longitude: lon,
		Provider:  statiqProvider,
		Source:    models.SourceStatiq,
	})
}
