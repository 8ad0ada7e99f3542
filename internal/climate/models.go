package climate

import (
	"errors"
	"math"
	"strings"
)

var (
	// ErrUpstreamUnavailable is returned when the device service cannot be reached
	// or answers with a non-success status.
	ErrUpstreamUnavailable = errors.New("device service unavailable")

	// ErrNoData is returned when the device service answers successfully but has
	// no sample for the requested device.
	ErrNoData = errors.New("no measurement data")

	// ErrUnknownDevice is returned when a device name does not resolve to an id.
	ErrUnknownDevice = errors.New("unknown device")
)

// UnknownRegion groups devices that arrive without a parent name.
const UnknownRegion = "Unknown"

// Device is a single climate-monitoring station as listed by the device service.
type Device struct {
	Name       string `json:"name"`
	RegionName string `json:"region"`
	ExternalID string `json:"externalId"`
}

// Measurement is the latest sample reported by a device.
// A nil field means the device did not report it.
type Measurement struct {
	Timestamp     string   `json:"timestamp"`
	UV            *float64 `json:"uv"`
	Lux           *float64 `json:"lux"`
	Temperature   *float64 `json:"temperature"`
	Pressure      *float64 `json:"pressure"`
	Humidity      *float64 `json:"humidity"`
	PM1           *float64 `json:"pm1"`
	PM2_5         *float64 `json:"pm2_5"`
	PM10          *float64 `json:"pm10"`
	WindSpeed     *float64 `json:"windSpeed"`
	Rain          *float64 `json:"rain"`
	WindDirection *float64 `json:"windDirection"`
}

// Sample is the raw shape of one element of the device service "latest" array.
type Sample struct {
	Time          string   `json:"time"`
	UV            *float64 `json:"uv"`
	Lux           *float64 `json:"lux"`
	Temperature   *float64 `json:"temperature"`
	Pressure      *float64 `json:"pressure"`
	Humidity      *float64 `json:"humidity"`
	PM1           *float64 `json:"pm1"`
	PM2_5         *float64 `json:"pm2_5"`
	PM10          *float64 `json:"pm10"`
	Speed         *float64 `json:"speed"`
	Rain          *float64 `json:"rain"`
	WindDirection *float64 `json:"wind_direction"`
}

// Normalize converts a raw sample into a Measurement. Missing keys stay nil.
func (s Sample) Normalize() Measurement {
	return Measurement{
		Timestamp:     strings.ReplaceAll(s.Time, "T", " "),
		UV:            s.UV,
		Lux:           s.Lux,
		Temperature:   s.Temperature,
		Pressure:      s.Pressure,
		Humidity:      s.Humidity,
		PM1:           s.PM1,
		PM2_5:         s.PM2_5,
		PM10:          s.PM10,
		WindSpeed:     s.Speed,
		Rain:          s.Rain,
		WindDirection: s.WindDirection,
	}
}

// present reports whether an optional reading carries a usable number.
func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v)
}

// Float returns a pointer to v. Handy for building measurements by hand.
func Float(v float64) *float64 {
	return &v
}
