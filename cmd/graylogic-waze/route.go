package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-traveltime/internal/bridges/waze"
	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
	wazeapi "github.com/nerrad567/gray-logic-traveltime/internal/waze"
)

// routeOptions holds the flags of the route command.
type routeOptions struct {
	from                   string
	to                     string
	region                 string
	realtime               bool
	vehicleType            string
	avoidTollRoads         bool
	avoidSubscriptionRoads bool
	avoidFerries           bool
	units                  string
	include                string
	exclude                string
	baseURL                string
	timeout                time.Duration
}

func (o *routeOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.from, "from", "", `origin, "lat,lon" or an address`)
	fs.StringVar(&o.to, "to", "", `destination, "lat,lon" or an address`)
	fs.StringVar(&o.region, "region", "EU", "routing region: "+strings.Join(traveltime.Regions, ", "))
	fs.BoolVar(&o.realtime, "realtime", true, "use live traffic")
	fs.StringVar(&o.vehicleType, "vehicle-type", traveltime.VehicleCar, "vehicle type: "+strings.Join(traveltime.VehicleTypes, ", "))
	fs.BoolVar(&o.avoidTollRoads, "avoid-toll-roads", false, "avoid toll roads")
	fs.BoolVar(&o.avoidSubscriptionRoads, "avoid-subscription-roads", false, "avoid roads needing a vignette or subscription")
	fs.BoolVar(&o.avoidFerries, "avoid-ferries", false, "avoid ferries")
	fs.StringVar(&o.units, "units", string(traveltime.UnitsMetric), "distance units: metric or imperial")
	fs.StringVar(&o.include, "include", "", "only consider routes whose name contains this")
	fs.StringVar(&o.exclude, "exclude", "", "ignore routes whose name contains this")
	fs.StringVar(&o.baseURL, "base-url", wazeapi.DefaultBaseURL, "Waze live-map host")
	fs.DurationVar(&o.timeout, "timeout", traveltime.DefaultRequestTimeout, "routing call timeout")
}

// options converts the flags into sensor options.
func (o *routeOptions) options() (traveltime.Options, error) {
	opts := traveltime.Options{
		Origin:                 strings.TrimSpace(o.from),
		Destination:            strings.TrimSpace(o.to),
		Region:                 strings.ToUpper(strings.TrimSpace(o.region)),
		Realtime:               o.realtime,
		VehicleType:            strings.ToLower(strings.TrimSpace(o.vehicleType)),
		AvoidTollRoads:         o.avoidTollRoads,
		AvoidSubscriptionRoads: o.avoidSubscriptionRoads,
		AvoidFerries:           o.avoidFerries,
		Units:                  traveltime.Units(strings.ToLower(o.units)),
		IncludeFilter:          strings.TrimSpace(o.include),
		ExcludeFilter:          strings.TrimSpace(o.exclude),
		Timeout:                o.timeout,
	}
	if err := opts.Validate(); err != nil {
		return traveltime.Options{}, err
	}
	for _, endpoint := range []string{opts.Origin, opts.Destination} {
		if traveltime.IsEntityReference(endpoint) {
			return traveltime.Options{}, fmt.Errorf("%q is an entity reference; the route command only accepts coordinates or addresses", endpoint)
		}
	}
	return opts, nil
}

// newRouteCommand builds the one-shot route query.
func newRouteCommand(ctx context.Context) *cobra.Command {
	o := &routeOptions{}

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Query the routing engine once and print every candidate route",
		Example: `  graylogic-waze route --from "51.5007,-0.1246" --to "Heathrow Airport" --region EU
  graylogic-waze route --from "40.7128,-74.0060" --to "40.7580,-73.9855" --region US --units imperial --exclude toll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := o.options()
			if err != nil {
				return err
			}
			client := wazeapi.New(wazeapi.Options{
				BaseURL:    o.baseURL,
				HTTPClient: &http.Client{Timeout: opts.RequestTimeout()},
			})
			return queryRoutes(ctx, cmd.OutOrStdout(), waze.NewRouter(client), opts)
		},
	}
	o.addFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// queryRoutes runs one routing call and prints the candidates, marking the
// route a sensor with the same options would select.
func queryRoutes(ctx context.Context, out io.Writer, router traveltime.Router, opts traveltime.Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout())
	defer cancel()

	candidates, err := router.Routes(ctx, opts.RouteRequest(opts.Origin, opts.Destination))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no routes found between %q and %q", opts.Origin, opts.Destination)
	}

	filtered := traveltime.FilterRoutes(candidates, opts.IncludeFilter, opts.ExcludeFilter)
	kept := make(map[string]bool, len(filtered))
	for _, c := range filtered {
		kept[c.Name] = true
	}
	selected, ok := traveltime.SelectRoute(filtered)

	unit := traveltime.DistanceUnit(opts.Units)
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("", "ROUTE", "DURATION (min)", "DISTANCE ("+unit+")", "STATUS")

	for _, c := range candidates {
		mark, status := "", ""
		switch {
		case ok && c.Name == selected.Name:
			mark, status = "*", "selected"
		case !kept[c.Name]:
			status = "filtered"
		}
		table.AddRow(
			mark,
			c.Name,
			fmt.Sprintf("%.1f", c.DurationMinutes),
			fmt.Sprintf("%.2f", traveltime.ConvertDistance(c.DistanceKM, opts.Units)),
			status,
		)
	}

	fmt.Fprintln(out, table)
	if !ok {
		fmt.Fprintln(out, "no route matches the include/exclude filters")
	}
	return nil
}
