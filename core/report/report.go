// Package report derives energy, cost and state of charge profiles from a
// planned range.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/optimiser"
	"github.com/kilianp07/depotcharge/core/schedule"
)

// breachTolerance is the energy above the site limit tolerated before a slot
// is flagged as a breach.
const breachTolerance = 0.01

// ProfileRow is one (slot, vehicle) entry of the range profile.
type ProfileRow struct {
	Slot         time.Time       `json:"slot"`
	VehicleID    model.VehicleID `json:"vehicle_id"`
	EnergyKWh    float64         `json:"energy_kwh"`
	DeliveredKWh float64         `json:"delivered_kwh"`
	Price        float64         `json:"price"`
	Cost         float64         `json:"cost"`
	SOCPercent   float64         `json:"soc_percent"`
	Level        model.Level     `json:"level"`
}

// SiteRow aggregates all vehicles for one slot.
type SiteRow struct {
	Slot         time.Time `json:"slot"`
	EnergyKWh    float64   `json:"energy_kwh"`
	DeliveredKWh float64   `json:"delivered_kwh"`
	Cost         float64   `json:"cost"`
	MeanPrice    float64   `json:"mean_price"`
	MeanSOC      float64   `json:"mean_soc"`
	Charging     int       `json:"charging"`
	Breach       bool      `json:"breach"`
}

// DaySummary aggregates one charging day.
type DaySummary struct {
	Date         time.Time   `json:"date"`
	Level        model.Level `json:"level"`
	EnergyKWh    float64     `json:"energy_kwh"`
	DeliveredKWh float64     `json:"delivered_kwh"`
	Cost         float64     `json:"cost"`
	Note         string      `json:"note,omitempty"`
}

// Summary is the full report of one scenario.
type Summary struct {
	Category     model.Category      `json:"category"`
	EnergyKWh    float64             `json:"energy_kwh"`
	DeliveredKWh float64             `json:"delivered_kwh"`
	Cost         float64             `json:"cost"`
	Levels       map[model.Level]int `json:"levels"`
	BreachSlots  int                 `json:"breach_slots"`
	Profile      []ProfileRow        `json:"-"`
	Site         []SiteRow           `json:"-"`
	Days         []DaySummary        `json:"days"`
}

// Input is what Summarise needs besides the range result.
type Input struct {
	Rows     []model.Row
	Result   *optimiser.RangeResult
	Fleet    model.Fleet
	Scenario optimiser.Scenario
	// SlotHours converts site capacity to energy.
	SlotHours   float64
	WindowStart time.Duration
	// Initial is the relative charge at the start of the range.
	Initial optimiser.State
}

type rowKey struct {
	slot int64
	id   model.VehicleID
}

// Summarise joins input rows with the planned output and computes the range,
// site, day and global summaries. Input rows without a planned output count
// as zero energy.
func Summarise(in Input) (*Summary, error) {
	if in.Result == nil {
		return nil, fmt.Errorf("report: nil range result")
	}
	planned := make(map[rowKey]model.OutputRow, len(in.Result.Rows))
	for _, o := range in.Result.Rows {
		planned[rowKey{o.Slot.Unix(), o.VehicleID}] = o
	}

	rows := append([]model.Row(nil), in.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Slot.Equal(rows[j].Slot) {
			return rows[i].Slot.Before(rows[j].Slot)
		}
		return rows[i].VehicleID < rows[j].VehicleID
	})

	s := &Summary{Category: in.Scenario.Category, Levels: in.Result.LevelCounts()}
	rel := make(map[model.VehicleID]float64, len(in.Fleet))
	for id := range in.Fleet {
		rel[id] = in.Initial.Of(id)
	}
	var day time.Time
	for _, r := range rows {
		// carry the state over day boundaries the way the driver does
		if d := schedule.DayOf(r.Slot, in.WindowStart); !d.Equal(day) {
			if !day.IsZero() {
				for id := range rel {
					rel[id] = optimiser.Settle(rel[id])
				}
			}
			day = d
		}
		v, ok := in.Fleet[r.VehicleID]
		if !ok {
			return nil, fmt.Errorf("report: vehicle %s not in fleet", r.VehicleID)
		}
		o := planned[rowKey{r.Slot.Unix(), r.VehicleID}]
		p := ProfileRow{
			Slot:         r.Slot,
			VehicleID:    r.VehicleID,
			EnergyKWh:    o.EnergyKWh,
			DeliveredKWh: o.EnergyKWh * v.Efficiency,
			Price:        in.Scenario.Price(r),
			Level:        o.Level,
		}
		p.Cost = p.EnergyKWh * p.Price
		rel[r.VehicleID] += p.DeliveredKWh + r.BatteryUseKWh
		p.SOCPercent = (v.BatteryKWh + rel[r.VehicleID]) * 100 / v.BatteryKWh
		s.Profile = append(s.Profile, p)
	}

	s.Site = siteProfile(s.Profile, in)
	s.BreachSlots = lo.CountBy(s.Site, func(r SiteRow) bool { return r.Breach })
	s.EnergyKWh = lo.SumBy(s.Profile, func(p ProfileRow) float64 { return p.EnergyKWh })
	s.DeliveredKWh = lo.SumBy(s.Profile, func(p ProfileRow) float64 { return p.DeliveredKWh })
	s.Cost = lo.SumBy(s.Profile, func(p ProfileRow) float64 { return p.Cost })
	s.Days = daySummaries(s.Profile, in)
	return s, nil
}

func siteProfile(profile []ProfileRow, in Input) []SiteRow {
	groups := lo.GroupBy(profile, func(p ProfileRow) int64 { return p.Slot.Unix() })
	slots := lo.Keys(groups)
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	out := make([]SiteRow, 0, len(slots))
	for _, k := range slots {
		g := groups[k]
		r := SiteRow{Slot: g[0].Slot}
		for _, p := range g {
			r.EnergyKWh += p.EnergyKWh
			r.DeliveredKWh += p.DeliveredKWh
			r.Cost += p.Cost
			r.MeanPrice += p.Price
			r.MeanSOC += p.SOCPercent
			if p.EnergyKWh > 0 {
				r.Charging++
			}
		}
		r.MeanPrice /= float64(len(g))
		r.MeanSOC /= float64(len(g))
		if kw, ok := in.Scenario.Capacity.Limit(r.Slot); ok {
			r.Breach = r.EnergyKWh > kw*in.SlotHours+breachTolerance
		}
		out = append(out, r)
	}
	return out
}

func daySummaries(profile []ProfileRow, in Input) []DaySummary {
	byDate := make(map[int64]*DaySummary)
	out := make([]DaySummary, 0, len(in.Result.Days))
	for _, d := range in.Result.Days {
		out = append(out, DaySummary{Date: d.Date, Level: d.Level, Note: d.Note})
	}
	for i := range out {
		byDate[out[i].Date.Unix()] = &out[i]
	}
	for _, p := range profile {
		d, ok := byDate[schedule.DayOf(p.Slot, in.WindowStart).Unix()]
		if !ok {
			continue
		}
		d.EnergyKWh += p.EnergyKWh
		d.DeliveredKWh += p.DeliveredKWh
		d.Cost += p.Cost
	}
	return out
}
