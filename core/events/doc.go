// Package events defines the planning events emitted on the event bus.
//
// Available event types:
//   - AttemptEvent: one rung of the fallback ladder was tried for a day
//   - DayEvent: a charging day was settled at a given level
//   - RangeEvent: a rolling range run finished
package events
