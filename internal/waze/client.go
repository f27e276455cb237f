package waze

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the live-map host.
	DefaultBaseURL = "https://www.waze.com/"

	// defaultPaths is the number of alternatives requested.
	defaultPaths = 3

	// routingServerTimeoutMillis is passed to the routing server as its own
	// computation budget.
	routingServerTimeoutMillis = 60000

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20

	// defaultHTTPTimeout applies when the caller does not supply a client.
	defaultHTTPTimeout = 60 * time.Second

	userAgent = "Mozilla/5.0"

	unknownRouteName = "unknown"
)

// vehicleTypes are the vehicle types the routing server accepts. Anything
// else, including cars, is sent as the default vehicle.
var vehicleTypes = map[string]bool{
	"TAXI":       true,
	"MOTORCYCLE": true,
}

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request is one routing query.
type Request struct {
	// Origin and Destination are "lat,lon" strings or free-text addresses.
	Origin      string
	Destination string

	Region                 string
	VehicleType            string
	Realtime               bool
	AvoidTollRoads         bool
	AvoidSubscriptionRoads bool
	AvoidFerries           bool

	// Paths is the number of alternatives to request. Zero means three.
	Paths int
}

// Route is one alternative returned by the routing server.
type Route struct {
	Name            string
	DurationMinutes float64
	DistanceKM      float64
}

// Options configures a Client.
type Options struct {
	// BaseURL overrides DefaultBaseURL. It must end with a slash.
	BaseURL string

	// HTTPClient is used for all requests. Nil means a client with a 60s
	// timeout.
	HTTPClient *http.Client

	// Cache stores address lookups. Nil disables caching.
	Cache GeocodeCache

	// Logger receives debug output. Nil means silent.
	Logger Logger
}

// Client queries the Waze routing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      GeocodeCache
	logger     Logger
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		logger:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c
}

// CalcAllRoutes returns every alternative between the request endpoints in
// the order the server ranked them. Alternatives sharing a name keep the
// first occurrence.
func (c *Client) CalcAllRoutes(ctx context.Context, req Request) ([]Route, error) {
	region, err := NormalizeRegion(req.Region)
	if err != nil {
		return nil, err
	}

	from, err := c.locate(ctx, region, req.Origin)
	if err != nil {
		return nil, err
	}
	to, err := c.locate(ctx, region, req.Destination)
	if err != nil {
		return nil, err
	}

	summaries, err := c.route(ctx, region, from, to, req)
	if err != nil {
		return nil, err
	}

	routes := make([]Route, 0, len(summaries))
	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		route, err := s.total(req.Realtime)
		if err != nil {
			return nil, err
		}
		if seen[route.Name] {
			continue
		}
		seen[route.Name] = true
		routes = append(routes, route)
	}

	c.logger.Debug("waze routes calculated",
		"region", region,
		"origin", req.Origin,
		"destination", req.Destination,
		"routes", len(routes),
	)
	return routes, nil
}

// Geocode resolves a free-text address to coordinates using the region's
// search server.
func (c *Client) Geocode(ctx context.Context, region, address string) (Coordinates, error) {
	r, err := NormalizeRegion(region)
	if err != nil {
		return Coordinates{}, err
	}
	return c.geocode(ctx, r, address)
}

// locate turns an endpoint into coordinates.
func (c *Client) locate(ctx context.Context, region, endpoint string) (Coordinates, error) {
	if coords, ok := ParseCoordinates(endpoint); ok {
		return coords, nil
	}
	return c.geocode(ctx, region, endpoint)
}

func (c *Client) geocode(ctx context.Context, region, address string) (Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinates{}, fmt.Errorf("%w: empty address", ErrRouting)
	}

	if c.cache != nil {
		coords, ok, err := c.cache.Get(ctx, region, address)
		if err != nil {
			c.logger.Warn("geocode cache lookup failed", "address", address, "error", err)
		} else if ok {
			return coords, nil
		}
	}

	srv := servers[region]
	params := url.Values{}
	params.Set("q", address)
	params.Set("lang", "eng")
	params.Set("origin", "livemap")
	params.Set("lat", strconv.FormatFloat(srv.base.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(srv.base.Lon, 'f', -1, 64))

	body, err := c.get(ctx, srv.search, params)
	if err != nil {
		return Coordinates{}, err
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Coordinates{}, fmt.Errorf("%w: decoding search response: %w", ErrMalformedResponse, err)
	}

	for _, r := range results {
		if r.City == "" || r.Location == nil {
			continue
		}
		coords := Coordinates{Lat: r.Location.Lat, Lon: r.Location.Lon}
		if c.cache != nil {
			if err := c.cache.Put(ctx, region, address, coords); err != nil {
				c.logger.Warn("geocode cache store failed", "address", address, "error", err)
			}
		}
		return coords, nil
	}

	return Coordinates{}, fmt.Errorf("%w: cannot get coordinates for %q", ErrRouting, address)
}

func (c *Client) route(ctx context.Context, region string, from, to Coordinates, req Request) ([]routeSummary, error) {
	paths := req.Paths
	if paths <= 0 {
		paths = defaultPaths
	}

	params := url.Values{}
	params.Set("from", from.waypoint())
	params.Set("to", to.waypoint())
	params.Set("at", "0")
	params.Set("returnJSON", "true")
	params.Set("returnGeometries", "true")
	params.Set("returnInstructions", "true")
	params.Set("timeout", strconv.Itoa(routingServerTimeoutMillis))
	params.Set("nPaths", strconv.Itoa(paths))
	params.Set("options", routeOptions(req))
	if vt := strings.ToUpper(req.VehicleType); vehicleTypes[vt] {
		params.Set("vehicleType", vt)
	}
	if !req.AvoidSubscriptionRoads {
		params.Set("subscription", "*")
	}

	body, err := c.get(ctx, servers[region].routing, params)
	if err != nil {
		return nil, err
	}

	var resp routingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding routing response: %w", ErrMalformedResponse, err)
	}
	return resp.summaries()
}

func routeOptions(req Request) string {
	return "AVOID_TRAILS:t" +
		",AVOID_TOLL_ROADS:" + flag(req.AvoidTollRoads) +
		",AVOID_FERRIES:" + flag(req.AvoidFerries)
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

// get performs a GET against a server path and returns the body of a 2xx
// response.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrRouting, err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouting, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRouting, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrRouting, path, resp.StatusCode)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrRouting)
	}
	return body, nil
}
