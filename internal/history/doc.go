// Package history persists run and match records in SQLite.
//
// The Store manages the database connection, schema initialization, and the
// queries behind the history and status commands. Each poll inserts a run
// row up front, records one match row per dispatched entry, and finalizes
// the run with its counters when the pass ends.
//
// The database is an audit trail, not operational state: polling never
// depends on it, and callers treat store failures as warnings. Schema
// changes bump the version in schema.go; users delete the database file to
// adopt the new schema.
package history
