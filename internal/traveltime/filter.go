package traveltime

import "strings"

// FilterRoutes applies the include filter and then the exclude filter to
// the candidates. Matching is a case-insensitive substring test on the
// route name; an empty filter is ignored. Order is preserved and the input
// slice is never modified.
func FilterRoutes(candidates []RouteCandidate, include, exclude string) []RouteCandidate {
	filtered := make([]RouteCandidate, 0, len(candidates))
	for _, c := range candidates {
		name := strings.ToLower(c.Name)
		if include != "" && !strings.Contains(name, strings.ToLower(include)) {
			continue
		}
		if exclude != "" && strings.Contains(name, strings.ToLower(exclude)) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// SelectRoute returns the first candidate. The engine's order is its
// preference, so candidates are never re-sorted.
func SelectRoute(candidates []RouteCandidate) (RouteCandidate, bool) {
	if len(candidates) == 0 {
		return RouteCandidate{}, false
	}
	return candidates[0], true
}
