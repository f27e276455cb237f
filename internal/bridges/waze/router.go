package waze

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
	wazeapi "github.com/nerrad567/gray-logic-traveltime/internal/waze"
)

// RouteClient is the part of the Waze client the bridge routes through.
type RouteClient interface {
	CalcAllRoutes(ctx context.Context, req wazeapi.Request) ([]wazeapi.Route, error)
}

// Router adapts the Waze client to traveltime.Router.
type Router struct {
	client RouteClient
}

// NewRouter wraps a Waze client.
func NewRouter(client RouteClient) *Router {
	return &Router{client: client}
}

// Routes implements traveltime.Router. Malformed responses are reported as
// traveltime.ErrMalformedResponse and every other failure as
// traveltime.ErrRoutingFailed.
func (r *Router) Routes(ctx context.Context, req traveltime.RouteRequest) ([]traveltime.RouteCandidate, error) {
	routes, err := r.client.CalcAllRoutes(ctx, wazeapi.Request{
		Origin:                 req.Origin,
		Destination:            req.Destination,
		Region:                 req.Region,
		VehicleType:            req.VehicleType,
		Realtime:               req.Realtime,
		AvoidTollRoads:         req.AvoidTollRoads,
		AvoidSubscriptionRoads: req.AvoidSubscriptionRoads,
		AvoidFerries:           req.AvoidFerries,
	})
	if err != nil {
		if errors.Is(err, wazeapi.ErrMalformedResponse) {
			return nil, fmt.Errorf("%w: %w", traveltime.ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("%w: %w", traveltime.ErrRoutingFailed, err)
	}

	candidates := make([]traveltime.RouteCandidate, len(routes))
	for i, route := range routes {
		candidates[i] = traveltime.RouteCandidate{
			Name:            route.Name,
			DurationMinutes: route.DurationMinutes,
			DistanceKM:      route.DistanceKM,
		}
	}
	return candidates, nil
}
