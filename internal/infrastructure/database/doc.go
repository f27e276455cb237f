// Package database provides the SQLite store of the Waze bridge.
//
// The bridge keeps three tables: committed travel-time readings, the last
// known state of tracked entities, and cached address lookups. Schema
// changes ship as embedded YYYYMMDD_HHMMSS_name.up.sql/.down.sql pairs that
// the migrations package registers at init time.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/waze.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
