package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

// ErrRejected marks a raw record that cannot become a valid station.
var ErrRejected = errors.New("sources: record rejected")

// Page is one unit of upstream work: a grid cell, an offset page, a station id
// or a scraped document.
type Page[R any] struct {
	Unit      string
	Records   []R
	Malformed int  // elements that failed to decode
	More      bool // false once the source is exhausted
}

// Source is a lazy, finite sequence of raw records from one upstream.
//
// Next returns an empty page only once the source is exhausted; empty
// intermediate units are skipped. A failed unit is returned as an error and the
// source has already advanced past it, so the caller decides from More whether
// to keep going.
type Source[R any] interface {
	Tag() models.Source
	Next(ctx context.Context) (Page[R], error)
	Normalize(raw R) (models.Station, error)
}

// Option configures a source client.
type Option func(*options)

type options struct {
	baseURL        string
	http           *http.Client
	delay          time.Duration
	breakerTimeout time.Duration
}

// WithBaseURL overrides the upstream endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.http = hc
	}
}

// WithBreakerTimeout sets how long an open circuit breaker refuses requests
// before letting a trial request through.
func WithBreakerTimeout(d time.Duration) Option {
	return func(o *options) {
		o.breakerTimeout = d
	}
}

// WithDelay sets the fixed pause between one response and the next request. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

func buildOptions(baseURL string, delay time.Duration, opts []Option) options {
	o := options{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		delay:   delay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func reject(format string, args ...any) error {
	return eris.Wrapf(ErrRejected, format, args...)
}

// finish stamps the write time and validates the canonical record.
func finish(s models.Station) (models.Station, error) {
	s.LastUpdated = time.Now().UTC()
	if err := s.Validate(); err != nil {
		return models.Station{}, eris.Wrapf(ErrRejected, "%v", err)
	}
	return s, nil
}

// decodeEach decodes every element on its own so one bad element does not
// spoil the page.
func decodeEach[R any](raws []json.RawMessage) ([]R, int) {
	records := make([]R, 0, len(raws))
	malformed := 0
	for _, raw := range raws {
		var r R
		if err := json.Unmarshal(raw, &r); err != nil {
			malformed++
			continue
		}
		records = append(records, r)
	}
	return records, malformed
}
