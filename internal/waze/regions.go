package waze

import (
	"fmt"
	"strings"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type regionServers struct {
	routing string
	search  string
	base    Coordinates
}

// servers holds the per-region endpoints. The base coordinates bias the
// address search towards the region.
var servers = map[string]regionServers{
	"US": {
		routing: "RoutingManager/routingRequest",
		search:  "SearchServer/mozi",
		base:    Coordinates{Lat: 40.713, Lon: -74.006},
	},
	"EU": {
		routing: "row-RoutingManager/routingRequest",
		search:  "row-SearchServer/mozi",
		base:    Coordinates{Lat: 47.498, Lon: 19.040},
	},
	"IL": {
		routing: "il-RoutingManager/routingRequest",
		search:  "il-SearchServer/mozi",
		base:    Coordinates{Lat: 31.768, Lon: 35.214},
	},
	"AU": {
		routing: "row-RoutingManager/routingRequest",
		search:  "row-SearchServer/mozi",
		base:    Coordinates{Lat: -35.281, Lon: 149.128},
	},
}

// NormalizeRegion upper-cases a region code and maps NA onto US.
func NormalizeRegion(region string) (string, error) {
	r := strings.ToUpper(strings.TrimSpace(region))
	if r == "NA" {
		r = "US"
	}
	if _, ok := servers[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRegion, region)
	}
	return r, nil
}
