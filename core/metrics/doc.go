// Package metrics defines the sinks that record planning outcomes. A sink
// receives one DayRecord per settled charging day and, when it implements
// RangeRecorder, one RangeRecord per rolling range run. Sinks are built from
// configuration through a factory registry; several configured sinks are
// combined into a MultiSink.
package metrics
