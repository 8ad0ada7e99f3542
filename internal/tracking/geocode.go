package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/kelvins/geocoder"
)

// Geocoder turns coordinates into a human-readable address.
type Geocoder interface {
	Reverse(ctx context.Context, at Coordinates) (string, error)
}

var errNoAddress = errors.New("no address for coordinates")

// GoogleGeocoder uses the Google Maps reverse geocoding API.
type GoogleGeocoder struct{}

var setKey sync.Once

// NewGoogleGeocoder configures the geocoder package with apiKey.
// The key is process-wide in that package, so only the first call sets it.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	setKey.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &GoogleGeocoder{}
}

// Reverse returns the formatted address of the closest match.
func (g *GoogleGeocoder) Reverse(ctx context.Context, at Coordinates) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
	})
	if err != nil {
		return "", err
	}
	if len(addresses) == 0 {
		return "", errNoAddress
	}
	return addresses[0].FormattedAddress, nil
}
