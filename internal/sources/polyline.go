package sources

import (
	"ev-charging-api/internal/models"

	"github.com/rotisserie/eris"
)

// DecodePolyline decodes a Google encoded polyline (precision 1e5) into coordinates.
func DecodePolyline(encoded string) ([]models.Coordinate, error) {
	var (
		path     []models.Coordinate
		lat, lon int64
	)
	for i := 0; i < len(encoded); {
		dlat, next, err := decodePolylineValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dlon, next, err := decodePolylineValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dlat
		lon += dlon
		path = append(path, models.Coordinate{Lat: float64(lat) / 1e5, Lon: float64(lon) / 1e5})
	}
	return path, nil
}

func decodePolylineValue(s string, i int) (int64, int, error) {
	var (
		result int64
		shift  uint
	)
	for {
		if i >= len(s) {
			return 0, i, eris.New("polyline: truncated input")
		}
		b := int64(s[i]) - 63
		i++
		if b < 0 || b > 63 {
			return 0, i, eris.Errorf("polyline: invalid character %q at %d", s[i-1], i-1)
		}

		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
		if shift > 60 {
			return 0, i, eris.New("polyline: value overflows")
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}
