// Package config loads, normalizes, and validates torrentrss configuration
// data.
//
// Configuration lives in a single JSON file. Loading validates the raw
// document against an embedded JSON Schema before decoding, expands user
// paths (including tilde shortcuts), applies repository defaults, and runs
// semantic checks the schema cannot express, such as compiling every
// subscription pattern and requiring its episode capture group. Updated
// last-seen episode numbers are written back through Save, which round-trips
// the user's document and touches only the number fields.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, compiled patterns, and clear validation errors.
package config
