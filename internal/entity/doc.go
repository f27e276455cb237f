// Package entity keeps the last known state of the tracked entities that
// travel-time sensors can use as origin or destination.
//
// Entities (people, device trackers, zones, text inputs) are published by
// the core on graylogic/core/entity/{entity_id}/state. The Registry caches
// them in memory for the resolver and writes each update through to a
// Repository, so a restart can resolve endpoints before the broker has
// replayed its retained messages.
package entity
