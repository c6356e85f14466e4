package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// GridEntry is one line of the parameter sweep log.
type GridEntry struct {
	RunID        string
	Scenario     string
	Category     model.Category
	SlowKW       float64
	FastKW       float64
	FastChargers int
	CapacityKW   float64
	EnergyKWh    float64
	Cost         float64
	Levels       map[model.Level]int
	BreachSlots  int
	Duration     time.Duration
	Err          string
}

var gridHeader = []string{
	"run_id", "scenario", "category", "slow_kw", "fast_kw", "fast_chargers", "capacity_kw",
	"energy_kwh", "cost", "main", "tonext", "breach", "magic", "empty", "breach_slots", "duration_s", "error",
}

// GridWriter appends sweep entries as CSV lines. It is safe for concurrent
// use by the scenarios of a sweep.
type GridWriter struct {
	mu    sync.Mutex
	cw    *csv.Writer
	wrote bool
}

// NewGridWriter returns a writer on w. When appending to an existing log the
// header is skipped.
func NewGridWriter(w io.Writer, appending bool) *GridWriter {
	return &GridWriter{cw: csv.NewWriter(w), wrote: appending}
}

// Write appends one entry and flushes it.
func (g *GridWriter) Write(e GridEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.wrote {
		if err := g.cw.Write(gridHeader); err != nil {
			return err
		}
		g.wrote = true
	}
	rec := []string{
		e.RunID,
		e.Scenario,
		e.Category.String(),
		formatFloat(e.SlowKW),
		formatFloat(e.FastKW),
		strconv.Itoa(e.FastChargers),
		formatFloat(e.CapacityKW),
		formatFloat(e.EnergyKWh),
		formatFloat(e.Cost),
	}
	for _, l := range model.Levels {
		rec = append(rec, strconv.Itoa(e.Levels[l]))
	}
	rec = append(rec, strconv.Itoa(e.BreachSlots), strconv.FormatFloat(e.Duration.Seconds(), 'f', 3, 64), e.Err)
	if err := g.cw.Write(rec); err != nil {
		return err
	}
	g.cw.Flush()
	return g.cw.Error()
}
