package waze

import (
	"regexp"
	"strconv"
	"strings"
)

// coordinatePattern accepts "lat,lon" with optional signs and whitespace
// after the comma. The latitude must carry a decimal part.
var coordinatePattern = regexp.MustCompile(`^([-+]?)(\d{1,2})(\.\d+),(\s*)([-+]?\d{1,3}(\.\d+)?)$`)

// ParseCoordinates parses a "lat,lon" string. ok is false for anything
// the search server has to resolve instead.
func ParseCoordinates(s string) (Coordinates, bool) {
	s = strings.TrimSpace(s)
	if !coordinatePattern.MatchString(s) {
		return Coordinates{}, false
	}

	latStr, lonStr, _ := strings.Cut(s, ",")
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lon: lon}, true
}

// waypoint renders coordinates the way the routing server expects them.
func (c Coordinates) waypoint() string {
	return "x:" + strconv.FormatFloat(c.Lon, 'f', -1, 64) + " y:" + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}
