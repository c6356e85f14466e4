package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/kilianp07/depotcharge/core/model"
)

// ErrNoPrice is returned when a slot of the grid precedes the price series.
var ErrNoPrice = errors.New("schedule: no price for slot")

// Config shapes the slot grid.
type Config struct {
	// SlotDuration is the length of one time slot.
	SlotDuration time.Duration
	// WindowStart is the offset from midnight at which a charging day starts.
	WindowStart time.Duration
	// Leeway is the time before a departure during which the vehicle can no
	// longer charge.
	Leeway time.Duration
}

// DefaultConfig returns half-hour slots, an 11:00 window start and a
// 30 minute departure leeway.
func DefaultConfig() Config {
	return Config{SlotDuration: 30 * time.Minute, WindowStart: 11 * time.Hour, Leeway: 30 * time.Minute}
}

// SetDefaults fills zero fields with the default values.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.SlotDuration <= 0 {
		c.SlotDuration = d.SlotDuration
	}
	if c.WindowStart == 0 {
		c.WindowStart = d.WindowStart
	}
	if c.Leeway == 0 {
		c.Leeway = d.Leeway
	}
}

// Validate checks that the grid parameters are consistent.
func (c Config) Validate() error {
	if c.SlotDuration <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	if (24*time.Hour)%c.SlotDuration != 0 {
		return fmt.Errorf("slot duration %s does not divide a day", c.SlotDuration)
	}
	if c.WindowStart < 0 || c.WindowStart >= 24*time.Hour {
		return fmt.Errorf("window start %s outside [0,24h)", c.WindowStart)
	}
	if c.Leeway < 0 {
		return fmt.Errorf("leeway must not be negative")
	}
	return nil
}

// SlotHours returns the slot length in hours.
func (c Config) SlotHours() float64 { return c.SlotDuration.Hours() }

// Build produces one row per (slot, vehicle) for every charging window touched
// by a journey. Rows are ordered by slot then vehicle. A vehicle is
// unavailable from Leeway before each departure until its return, and the
// journey energy is booked as battery use on the first slot starting after
// the return minus one slot. The BAU price of a slot is its position within
// the window so the cheapest slot is always the earliest one.
func Build(journeys []model.Journey, prices []model.PricePoint, cfg Config) ([]model.Row, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(journeys) == 0 {
		return nil, nil
	}
	for _, j := range journeys {
		if err := j.Validate(); err != nil {
			return nil, err
		}
	}

	dateSet := make(map[time.Time]struct{})
	for _, j := range journeys {
		dateSet[DayOf(j.Start, cfg.WindowStart)] = struct{}{}
		dateSet[DayOf(j.End, cfg.WindowStart)] = struct{}{}
	}
	dates := lo.Keys(dateSet)
	sort.Slice(dates, func(i, k int) bool { return dates[i].Before(dates[k]) })

	sorted := append([]model.PricePoint(nil), prices...)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].From.Before(sorted[k].From) })

	type slot struct {
		at  time.Time
		opt float64
		bau float64
	}
	perDay := int((24 * time.Hour) / cfg.SlotDuration)
	var grid []slot
	for _, d := range dates {
		from, _ := Window(d, cfg.WindowStart)
		for k := 0; k < perDay; k++ {
			at := from.Add(time.Duration(k) * cfg.SlotDuration)
			p, ok := priceAt(sorted, at)
			if !ok {
				return nil, fmt.Errorf("%w %s", ErrNoPrice, at.Format(time.RFC3339))
			}
			grid = append(grid, slot{at: at, opt: p, bau: float64(k) / float64(perDay)})
		}
	}

	byVehicle := lo.GroupBy(journeys, func(j model.Journey) model.VehicleID { return j.VehicleID })
	vehicles := lo.Keys(byVehicle)
	sort.Slice(vehicles, func(i, k int) bool { return vehicles[i] < vehicles[k] })

	rows := make([]model.Row, len(grid)*len(vehicles))
	for vi, id := range vehicles {
		trips := byVehicle[id]
		sort.Slice(trips, func(i, k int) bool { return trips[i].Start.Before(trips[k].Start) })
		avail := make([]bool, len(grid))
		use := make([]float64, len(grid))
		for i := range avail {
			avail[i] = true
		}
		for _, j := range trips {
			leave := j.Start.Add(-cfg.Leeway)
			booked := false
			for i, s := range grid {
				if !s.at.Before(leave) && s.at.Before(j.End) {
					avail[i] = false
				}
				if !booked && s.at.After(j.End.Add(-cfg.SlotDuration)) {
					use[i] -= j.EnergyKWh
					booked = true
				}
			}
		}
		session := 0
		prev := false
		for i, s := range grid {
			r := model.Row{Slot: s.at, VehicleID: id, Available: avail[i], BatteryUseKWh: use[i]}
			r.Prices[model.CategoryOpt] = s.opt
			r.Prices[model.CategoryBAU] = s.bau
			if avail[i] {
				if !prev {
					session++
				}
				r.Session = session
			}
			prev = avail[i]
			rows[i*len(vehicles)+vi] = r
		}
	}
	return rows, nil
}

// priceAt returns the price of the last point starting at or before t.
func priceAt(sorted []model.PricePoint, t time.Time) (float64, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].From.After(t) })
	if i == 0 {
		return 0, false
	}
	return sorted[i-1].Price, true
}
