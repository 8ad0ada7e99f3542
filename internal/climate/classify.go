package climate

// Condition is a weather condition inferred from a single sample.
type Condition string

const (
	ConditionNone    Condition = ""
	ConditionSnow    Condition = "Possibly Snowing ❄️"
	ConditionFog     Condition = "Foggy 🌫️"
	ConditionCloudy  Condition = "Cloudy ☁️"
	ConditionSunny   Condition = "Sunny ☀️"
	nothingDetected            = "Nothing detected ❌"
)

// UV index labels.
const (
	UVBlank    = " "
	UVLow      = "Low 🟢"
	UVModerate = "Moderate 🟡"
	UVHigh     = "High 🟠"
	UVVeryHigh = "Very High 🔴"
	UVExtreme  = "Extreme 🟣"
)

// Particulate matter labels, ordered from best to worst.
const (
	AirNA                 = "N/A"
	AirGood               = "Good 🟢"
	AirModerate           = "Moderate 🟡"
	AirUnhealthySensitive = "Unhealthy for Sensitive Groups 🟠"
	AirUnhealthy          = "Unhealthy 🟠"
	AirVeryUnhealthy      = "Very Unhealthy 🔴"
	AirHazardous          = "Hazardous 🔴"
)

// Pollutant names a particulate size class.
type Pollutant string

const (
	PM1   Pollutant = "PM1.0"
	PM2_5 Pollutant = "PM2.5"
	PM10  Pollutant = "PM10"
)

var airLevels = []string{
	AirGood,
	AirModerate,
	AirUnhealthySensitive,
	AirUnhealthy,
	AirVeryUnhealthy,
	AirHazardous,
}

// Inclusive upper bounds in µg/m³ per band; anything above the last is hazardous.
var pollutantBounds = map[Pollutant][]float64{
	PM1:   {50, 100, 150, 200, 300},
	PM2_5: {12, 36, 56, 151, 251},
	PM10:  {54, 154, 254, 354, 504},
}

// UVBand maps a UV index reading to its exposure band.
func UVBand(uv *float64) string {
	if !present(uv) {
		return UVBlank
	}
	switch v := *uv; {
	case v < 3:
		return UVLow
	case v < 6:
		return UVModerate
	case v < 8:
		return UVHigh
	case v <= 10:
		return UVVeryHigh
	default:
		return UVExtreme
	}
}

// ParticulateBand maps a particulate concentration to an air quality band.
// Bounds are checked in ascending order and are inclusive.
func ParticulateBand(value *float64, p Pollutant) string {
	if !present(value) {
		return AirNA
	}
	for i, limit := range pollutantBounds[p] {
		if *value <= limit {
			return airLevels[i]
		}
	}
	return airLevels[len(airLevels)-1]
}

// DetectCondition runs the weather decision list. The first rule whose
// fields are all present and satisfied wins; a rule with a missing field is
// skipped.
func DetectCondition(m Measurement) Condition {
	switch {
	case all(m.Temperature, m.Humidity) &&
		*m.Temperature < 1 && *m.Humidity > 85:
		return ConditionSnow
	case all(m.Lux, m.Humidity, m.PM2_5) &&
		*m.Lux < 100 && *m.Humidity > 90 && *m.PM2_5 > 40:
		return ConditionFog
	case all(m.Lux, m.UV) &&
		*m.Lux < 300 && *m.UV < 2:
		return ConditionCloudy
	case all(m.Lux, m.UV) &&
		*m.Lux > 5 && *m.UV > 3:
		return ConditionSunny
	}
	return ConditionNone
}

// WeatherCondition renders DetectCondition for display. Comparisons leave
// an undetected condition blank so the line can be dropped.
func WeatherCondition(m Measurement, forComparison bool) string {
	c := DetectCondition(m)
	if c == ConditionNone && !forComparison {
		return nothingDetected
	}
	return string(c)
}

func all(vals ...*float64) bool {
	for _, v := range vals {
		if !present(v) {
			return false
		}
	}
	return true
}
