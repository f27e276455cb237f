// Package influxdb writes travel-time readings to InfluxDB v2.
//
// Each committed sensor reading becomes one travel_time point tagged with
// the sensor, route, units and the geohash cells of the resolved endpoints:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // time series are optional
//	}
//	defer client.Close()
//
//	client.WriteTravelTime(influxdb.TravelTimePoint{
//	    SensorID:        "commute",
//	    DurationMinutes: 24.5,
//	    Distance:        13.2,
//	    Units:           "metric",
//	})
package influxdb
