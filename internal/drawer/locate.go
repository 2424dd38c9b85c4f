package drawer

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrLocationDenied      = errors.New("drawer: location permission denied")
	ErrLocationUnavailable = errors.New("drawer: location unavailable")
	ErrLocationTimeout     = errors.New("drawer: location lookup timed out")
	ErrLocationUnsupported = errors.New("drawer: location not supported")
	ErrLocationInvalid     = errors.New("drawer: invalid coordinates")
)

const mapsBase = "https://maps.google.com/?q="

// Position is what the browser reports after a geolocation attempt. Code carries the
// browser error ("1" denied, "2" unavailable, "3" timeout, "unsupported") when the
// lookup failed.
type Position struct {
	Latitude  *float64
	Longitude *float64
	Code      string
}

// Locate turns a position into a map link for the address field. ctx bounds the wait;
// an expired context reports ErrLocationTimeout.
func Locate(ctx context.Context, p Position) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrLocationTimeout
	}
	switch strings.ToLower(strings.TrimSpace(p.Code)) {
	case "":
	case "1", "denied", "permission_denied":
		return "", ErrLocationDenied
	case "3", "timeout":
		return "", ErrLocationTimeout
	case "unsupported":
		return "", ErrLocationUnsupported
	default:
		return "", ErrLocationUnavailable
	}
	if p.Latitude == nil || p.Longitude == nil {
		return "", ErrLocationInvalid
	}
	lat, lng := *p.Latitude, *p.Longitude
	if !valid(lat, -90, 90) || !valid(lng, -180, 180) {
		return "", ErrLocationInvalid
	}
	return MapLink(lat, lng), nil
}

// MapLink renders coordinates with six decimals.
func MapLink(lat, lng float64) string {
	return mapsBase + strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lng, 'f', 6, 64)
}

func valid(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

// NoticeKey maps a location error to its translation key.
func NoticeKey(err error) string {
	switch {
	case errors.Is(err, ErrLocationDenied):
		return "notice.location_denied"
	case errors.Is(err, ErrLocationTimeout):
		return "notice.location_timeout"
	case errors.Is(err, ErrLocationUnsupported):
		return "notice.location_unsupported"
	default:
		return "notice.location_failed"
	}
}
