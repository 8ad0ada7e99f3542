package climate

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

// Placeholders for readings a device did not report.
const (
	reportPlaceholder  = "NA"
	comparePlaceholder = "N/A"
)

const impairedNotice = "⚠️ Note: At this moment this device has technical issues."

// Formatter renders measurements into chat reports.
type Formatter struct {
	html     bool
	impaired map[string]struct{}
}

// NewFormatter creates a Formatter. When html is true, labels are wrapped in
// <b> tags and device names are escaped for Telegram's HTML parse mode.
// Devices listed in impaired get a technical-issues footer.
func NewFormatter(html bool, impaired []string) *Formatter {
	set := make(map[string]struct{}, len(impaired))
	for _, name := range impaired {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return &Formatter{html: html, impaired: set}
}

// HTML reports whether the formatter emits HTML markup.
func (f *Formatter) HTML() bool {
	return f.html
}

// KnownIssue reports whether a device is on the impaired list.
func (f *Formatter) KnownIssue(device string) bool {
	_, ok := f.impaired[device]
	return ok
}

// FormatSingle renders the latest measurement of one device. The line layout
// is the same whether or not every field is present.
func (f *Formatter) FormatSingle(m Measurement, device string) string {
	var b strings.Builder

	b.WriteString(f.bold("𝗟𝗮𝘁𝗲𝘀𝘁 𝗠𝗲𝗮𝘀𝘂𝗿𝗲𝗺𝗲𝗻𝘁") + "\n")
	b.WriteString("🔹 " + f.bold("Device:") + " " + f.bold(f.escape(device)) + "\n")
	b.WriteString("🔹 " + f.bold("Timestamp:") + " " + f.timestamp(m.Timestamp, reportPlaceholder) + "\n\n")

	b.WriteString(f.bold(" 𝗟𝗶𝗴𝗵𝘁 𝗮𝗻𝗱 𝗨𝗩 𝗜𝗻𝗳𝗼𝗿𝗺𝗮𝘁𝗶𝗼𝗻") + "\n")
	fmt.Fprintf(&b, "☀️ %s %s (%s)\n", f.bold("UV Index:"), number(m.UV, false, reportPlaceholder), UVBand(m.UV))
	fmt.Fprintf(&b, "🔆 %s %s lux\n\n", f.bold("Light Intensity:"), number(m.Lux, false, reportPlaceholder))

	b.WriteString(f.bold(" 𝗘𝗻𝘃𝗶𝗿𝗼𝗻𝗺𝗲𝗻𝘁𝗮𝗹 𝗖𝗼𝗻𝗱𝗶𝘁𝗶𝗼𝗻𝘀") + "\n")
	fmt.Fprintf(&b, "🌡️ %s %s°C\n", f.bold("Temperature:"), number(m.Temperature, true, reportPlaceholder))
	fmt.Fprintf(&b, "⏲️ %s %s hPa\n", f.bold("Atmospheric Pressure:"), number(m.Pressure, false, reportPlaceholder))
	fmt.Fprintf(&b, "💧 %s %s%%\n\n", f.bold("Humidity:"), number(m.Humidity, false, reportPlaceholder))

	b.WriteString(f.bold(" 𝗔𝗶𝗿 𝗤𝘂𝗮𝗹𝗶𝘁𝘆 𝗟𝗲𝘃𝗲𝗹𝘀") + "\n")
	fmt.Fprintf(&b, "🫁 %s %s µg/m³ (%s)\n", f.bold("PM1.0:"), number(m.PM1, false, reportPlaceholder), ParticulateBand(m.PM1, PM1))
	fmt.Fprintf(&b, "💨 %s %s µg/m³ (%s)\n", f.bold("PM2.5:"), number(m.PM2_5, false, reportPlaceholder), ParticulateBand(m.PM2_5, PM2_5))
	fmt.Fprintf(&b, "🌫️ %s %s µg/m³ (%s)\n\n", f.bold("PM10:"), number(m.PM10, false, reportPlaceholder), ParticulateBand(m.PM10, PM10))

	b.WriteString(f.bold("𝗪𝗲𝗮𝘁𝗵𝗲𝗿 𝗖𝗼𝗻𝗱𝗶𝘁𝗶𝗼𝗻") + "\n")
	fmt.Fprintf(&b, "🌪️ %s %s m/s\n", f.bold("Wind Speed:"), number(m.WindSpeed, false, reportPlaceholder))
	fmt.Fprintf(&b, "🌧️ %s %s mm\n", f.bold("Rainfall:"), number(m.Rain, false, reportPlaceholder))
	fmt.Fprintf(&b, "🧭 %s %s\n\n", f.bold("Wind Direction:"), number(m.WindDirection, false, reportPlaceholder))

	fmt.Fprintf(&b, "🔍 %s %s\n", f.bold("Detected Weather Condition:"), WeatherCondition(m, false))

	if f.KnownIssue(device) {
		b.WriteString("\n" + impairedNotice)
	}
	return b.String()
}

// FormatComparison renders two devices side by side with a per-field winner
// and a closing summary.
func (f *Formatter) FormatComparison(name1 string, m1 Measurement, name2 string, m2 Measurement) string {
	d1, d2 := f.escape(name1), f.escape(name2)
	cmp := comparer{name1: d1, name2: d2}

	t1, t2 := rounded(m1.Temperature), rounded(m2.Temperature)

	var b strings.Builder

	b.WriteString(f.bold("𝗪𝗲𝗮𝘁𝗵𝗲𝗿 𝗖𝗼𝗺𝗽𝗮𝗿𝗶𝘀𝗼𝗻") + "\n")
	b.WriteString("🔹 " + f.bold("Devices:") + " " + f.bold(d1) + " vs " + f.bold(d2) + "\n")
	b.WriteString("🔹 " + f.bold("Timestamp:") + " " + f.timestamp(m1.Timestamp, comparePlaceholder) +
		" vs " + f.timestamp(m2.Timestamp, comparePlaceholder) + "\n\n")

	b.WriteString(f.bold(" 𝗟𝗶𝗴𝗵𝘁 𝗮𝗻𝗱 𝗨𝗩 𝗜𝗻𝗳𝗼𝗿𝗺𝗮𝘁𝗶𝗼𝗻") + "\n")
	fmt.Fprintf(&b, "☀️ %s %s (%s vs %s)\n", f.bold("UV Index:"), cmp.line(m1.UV, m2.UV, "", "sunnier"), UVBand(m1.UV), UVBand(m2.UV))
	fmt.Fprintf(&b, "🔆 %s %s\n\n", f.bold("Light Intensity:"), cmp.line(m1.Lux, m2.Lux, "lux", "brighter"))

	b.WriteString(f.bold(" 𝗘𝗻𝘃𝗶𝗿𝗼𝗻𝗺𝗲𝗻𝘁𝗮𝗹 𝗖𝗼𝗻𝗱𝗶𝘁𝗶𝗼𝗻𝘀") + "\n")
	fmt.Fprintf(&b, "🌡️ %s %s\n", f.bold("Temperature:"), cmp.line(t1, t2, "°C", "warmer"))
	fmt.Fprintf(&b, "⏲️ %s %s\n", f.bold("Atmospheric Pressure:"), cmp.line(m1.Pressure, m2.Pressure, "hPa", "higher"))
	fmt.Fprintf(&b, "💧 %s %s\n\n", f.bold("Humidity:"), cmp.line(m1.Humidity, m2.Humidity, "%", "more humid"))

	b.WriteString(f.bold(" 𝗔𝗶𝗿 𝗤𝘂𝗮𝗹𝗶𝘁𝘆 𝗟𝗲𝘃𝗲𝗹𝘀") + "\n")
	fmt.Fprintf(&b, "🫁 %s %s (%s vs %s)\n", f.bold("PM1.0:"), cmp.line(m1.PM1, m2.PM1, "µg/m³", "more polluted"),
		ParticulateBand(m1.PM1, PM1), ParticulateBand(m2.PM1, PM1))
	fmt.Fprintf(&b, "💨 %s %s (%s vs %s)\n", f.bold("PM2.5:"), cmp.line(m1.PM2_5, m2.PM2_5, "µg/m³", "more polluted"),
		ParticulateBand(m1.PM2_5, PM2_5), ParticulateBand(m2.PM2_5, PM2_5))
	fmt.Fprintf(&b, "🌫️ %s %s (%s vs %s)\n\n", f.bold("PM10:"), cmp.line(m1.PM10, m2.PM10, "µg/m³", "more polluted"),
		ParticulateBand(m1.PM10, PM10), ParticulateBand(m2.PM10, PM10))

	b.WriteString(f.bold("𝗪𝗲𝗮𝘁𝗵𝗲𝗿 𝗖𝗼𝗻𝗱𝗶𝘁𝗶𝗼𝗻") + "\n")
	fmt.Fprintf(&b, "🌪️ %s %s\n", f.bold("Wind Speed:"), cmp.line(m1.WindSpeed, m2.WindSpeed, "m/s", "windier"))
	fmt.Fprintf(&b, "🌧️ %s %s\n", f.bold("Rainfall:"), cmp.line(m1.Rain, m2.Rain, "mm", "wetter"))
	fmt.Fprintf(&b, "🧭 %s %s vs %s\n", f.bold("Wind Direction:"),
		number(m1.WindDirection, false, comparePlaceholder), number(m2.WindDirection, false, comparePlaceholder))

	w1, w2 := WeatherCondition(m1, true), WeatherCondition(m2, true)
	if w1 != "" || w2 != "" {
		fmt.Fprintf(&b, "🔍 %s %s vs %s\n", f.bold("Detected Weather Condition:"), w1, w2)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "🔹 %s %s\n", f.bold("Summary:"), summarize(d1, d2, t1, t2, m1, m2))
	return b.String()
}

// comparer annotates a pair of readings with the device holding the
// strictly greater value. It never inverts ordering; callers pick a
// descriptor that reads correctly for "greater".
type comparer struct {
	name1, name2 string
}

func (c comparer) line(v1, v2 *float64, unit, desc string) string {
	s1 := withUnit(number(v1, false, comparePlaceholder), unit)
	s2 := withUnit(number(v2, false, comparePlaceholder), unit)

	var verdict string
	switch {
	case !present(v1) || !present(v2):
		verdict = comparePlaceholder
	case *v1 > *v2:
		verdict = c.name1 + " is " + desc
	case *v2 > *v1:
		verdict = c.name2 + " is " + desc
	default:
		verdict = "Equal"
	}
	return fmt.Sprintf("%s vs %s (%s)", s1, s2, verdict)
}

func summarize(name1, name2 string, t1, t2 *float64, m1, m2 Measurement) string {
	var parts []string

	if present(t1) && present(t2) {
		switch {
		case *t1 > *t2:
			parts = append(parts, name1+" is warmer")
		case *t2 > *t1:
			parts = append(parts, name2+" is warmer")
		}
	}
	if present(m1.UV) && present(m2.UV) {
		switch {
		case *m1.UV > *m2.UV:
			parts = append(parts, name1+" is sunnier")
		case *m2.UV > *m1.UV:
			parts = append(parts, name2+" is sunnier")
		}
	}
	if present(m1.PM2_5) && present(m2.PM2_5) {
		switch {
		case *m1.PM2_5 < *m2.PM2_5:
			parts = append(parts, name1+" has cleaner air")
		case *m2.PM2_5 < *m1.PM2_5:
			parts = append(parts, name2+" has cleaner air")
		}
	}

	if len(parts) == 0 {
		return "Conditions are similar!"
	}
	return strings.Join(parts, ", ")
}

func (f *Formatter) bold(s string) string {
	if !f.html {
		return s
	}
	return "<b>" + s + "</b>"
}

func (f *Formatter) escape(s string) string {
	if !f.html {
		return s
	}
	return html.EscapeString(s)
}

func (f *Formatter) timestamp(ts, placeholder string) string {
	if ts == "" {
		return placeholder
	}
	return f.escape(ts)
}

// number renders an optional reading. Temperatures are rounded half to even.
func number(v *float64, round bool, placeholder string) string {
	if !present(v) {
		return placeholder
	}
	x := *v
	if round {
		x = math.RoundToEven(x) + 0 // avoid "-0"
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func rounded(v *float64) *float64 {
	if !present(v) {
		return nil
	}
	return Float(math.RoundToEven(*v))
}

func withUnit(s, unit string) string {
	if unit == "" {
		return s
	}
	return s + " " + unit
}
