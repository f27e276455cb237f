// Package waze is a client for the Waze live-map routing service.
//
// The service is undocumented; the client speaks the same endpoints the
// live map uses:
//   - <region>SearchServer/mozi turns a free-text address into coordinates
//   - <region>RoutingManager/routingRequest returns up to three alternative
//     routes, each a list of road segments with cross times and lengths
//
// Endpoints that are already "lat,lon" strings skip the search call.
// Address lookups can be cached through a GeocodeCache.
//
// Errors returned by the client wrap ErrRouting when the service refused
// or could not answer, and ErrMalformedResponse when it answered with a
// body that lacks the expected keys.
package waze
