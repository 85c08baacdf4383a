// Package database provides SQLite-based storage for nucheck.
//
// A single file, nucheck.db in the data directory, stores:
//   - a kv table of preferences; the filter state lives under the key
//     "w3cvalidator-filterstate"
//   - a validation_runs table with every validation attempt, its markup,
//     the raw checker messages and per-level counts
//
// DB implements filter.KeyValue, so a filter.Store can persist straight to it.
//
// SQLite is accessed through modernc.org/sqlite, which needs no cgo.
package database
