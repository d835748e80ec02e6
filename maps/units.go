package maps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var metersPerUnit = map[string]float64{
	"m":      1,
	"km":     1000,
	"mi":     1609.344,
	"ft":     0.3048,
	"meters": 1,
	"metres": 1,
}

// ParseDistance converts a human readable distance such as "500 m",
// "2.3 km" or "1,204 km" to metres. A bare number is read as kilometres.
func ParseDistance(text string) (float64, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty distance")
	}

	number := fields[0]
	unit := "km"
	if len(fields) > 1 {
		unit = fields[1]
	} else {
		// "500m" style, unit glued to the number
		i := strings.IndexFunc(number, func(r rune) bool {
			return (r < '0' || r > '9') && r != '.' && r != ','
		})
		if i > 0 {
			number, unit = number[:i], number[i:]
		}
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", text, err)
	}

	factor, ok := metersPerUnit[unit]
	if !ok {
		return 0, fmt.Errorf("unknown distance unit %q in %q", unit, text)
	}

	return value * factor, nil
}

// FormatDuration words a travel time the way the provider does, e.g.
// "6 mins" or "1 hour 5 mins". Durations under a minute read as "1 min".
func FormatDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	hours, minutes := minutes/60, minutes%60
	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "min"))
	}

	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

const earthRadiusMeters = 6371000.0

// Haversine is the great-circle distance between two points in metres.
func Haversine(a, b LatLng) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
