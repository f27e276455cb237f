// Package traveltime implements the travel-time sensors published by the
// Waze bridge.
//
// A sensor owns one Resolver/Refresher pair. On every refresh cycle the
// Resolver turns the configured origin and destination into location
// strings, the Refresher asks the routing engine for candidate routes,
// narrows them with the include/exclude filters, picks the first survivor
// and commits its duration, distance and name together.
//
// A failed cycle never clobbers the last good reading: routing errors,
// malformed responses and empty filter results are logged and the previous
// Result stays in place.
//
// Usage:
//
//	resolver := traveltime.NewResolver(registry)
//	refresher := traveltime.NewRefresher(resolver, router)
//	sensor := traveltime.NewSensor("commute", "Commute", opts, refresher)
//	report := sensor.OnStart(ctx)
//	state := sensor.CurrentState()
package traveltime
