package waze

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type searchResult struct {
	City     string       `json:"city"`
	Location *Coordinates `json:"location"`
}

type routingResponse struct {
	Error        json.RawMessage `json:"error"`
	Alternatives []alternative   `json:"alternatives"`
	Response     json.RawMessage `json:"response"`
}

type alternative struct {
	Response *routeSummary `json:"response"`
}

type routeSummary struct {
	RouteName      string    `json:"routeName"`
	ShortRouteName string    `json:"shortRouteName"`
	Results        []segment `json:"results"`
}

type segment struct {
	CrossTime                *float64 `json:"crossTime"`
	CrossTimeWithoutRealTime *float64 `json:"crossTimeWithoutRealTime"`
	Length                   *float64 `json:"length"`
}

// summaries extracts the route summaries. A single route may come back as
// an object or as a one-element list under "response".
func (r routingResponse) summaries() ([]routeSummary, error) {
	if len(r.Error) > 0 && !bytes.Equal(r.Error, []byte("null")) {
		var msg string
		if err := json.Unmarshal(r.Error, &msg); err != nil {
			msg = string(r.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrRouting, msg)
	}

	if len(r.Alternatives) > 0 {
		out := make([]routeSummary, 0, len(r.Alternatives))
		for i, alt := range r.Alternatives {
			if alt.Response == nil {
				return nil, fmt.Errorf("%w: alternative %d has no response", ErrMalformedResponse, i)
			}
			out = append(out, *alt.Response)
		}
		return out, nil
	}

	raw := bytes.TrimSpace(r.Response)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing response", ErrMalformedResponse)
	}

	if raw[0] == '[' {
		var list []routeSummary
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: decoding response list: %w", ErrMalformedResponse, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty response list", ErrMalformedResponse)
		}
		return list[:1], nil
	}

	var single routeSummary
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrMalformedResponse, err)
	}
	return []routeSummary{single}, nil
}

// total adds up the segments of a route. Cross times are seconds and
// lengths are metres.
func (s routeSummary) total(realtime bool) (Route, error) {
	name := s.RouteName
	if name == "" {
		name = s.ShortRouteName
	}
	if name == "" {
		name = unknownRouteName
	}

	if s.Results == nil {
		return Route{}, fmt.Errorf("%w: route %q has no results", ErrMalformedResponse, name)
	}

	var seconds, metres float64
	for i, seg := range s.Results {
		crossTime := seg.CrossTime
		if !realtime {
			crossTime = seg.CrossTimeWithoutRealTime
		}
		if crossTime == nil || seg.Length == nil {
			return Route{}, fmt.Errorf("%w: route %q segment %d lacks cross time or length", ErrMalformedResponse, name, i)
		}
		seconds += *crossTime
		metres += *seg.Length
	}

	return Route{
		Name:            name,
		DurationMinutes: seconds / 60.0,
		DistanceKM:      metres / 1000.0,
	}, nil
}
