// Package schedule turns a journey timetable and a price series into the
// per-vehicle slot grid consumed by the optimiser. It also provides the
// charging-window day helpers and CSV ingest of the raw inputs.
package schedule
