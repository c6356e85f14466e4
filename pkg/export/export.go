// Package export writes planning results as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/optimiser"
	"github.com/kilianp07/depotcharge/core/report"
)

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAll(w io.Writer, header []string, n int, record func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRowsCSV writes the planned energy of each (slot, vehicle).
func WriteRowsCSV(w io.Writer, rows []model.OutputRow) error {
	header := []string{"slot", "vehicle_id", "category", "energy_kwh", "power_kw", "fast_tier", "level"}
	return writeAll(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.Slot.Format(time.RFC3339),
			string(r.VehicleID),
			r.Category.String(),
			formatFloat(r.EnergyKWh),
			formatFloat(r.PowerKW),
			strconv.FormatBool(r.FastTier),
			r.Level.String(),
		}
	})
}

// WriteLevelsCSV writes the level each charging day was settled at.
func WriteLevelsCSV(w io.Writer, levels []optimiser.DayLevel) error {
	return writeAll(w, []string{"date", "level"}, len(levels), func(i int) []string {
		return []string{levels[i].Date.Format(time.DateOnly), levels[i].Level.String()}
	})
}

// WriteProfileCSV writes the per vehicle range profile.
func WriteProfileCSV(w io.Writer, profile []report.ProfileRow) error {
	header := []string{"slot", "vehicle_id", "energy_kwh", "delivered_kwh", "price", "cost", "soc_percent", "level"}
	return writeAll(w, header, len(profile), func(i int) []string {
		p := profile[i]
		return []string{
			p.Slot.Format(time.RFC3339),
			string(p.VehicleID),
			formatFloat(p.EnergyKWh),
			formatFloat(p.DeliveredKWh),
			formatFloat(p.Price),
			formatFloat(p.Cost),
			strconv.FormatFloat(p.SOCPercent, 'f', 2, 64),
			p.Level.String(),
		}
	})
}

// WriteSiteCSV writes the site profile.
func WriteSiteCSV(w io.Writer, site []report.SiteRow) error {
	header := []string{"slot", "energy_kwh", "delivered_kwh", "cost", "mean_price", "mean_soc", "charging", "breach"}
	return writeAll(w, header, len(site), func(i int) []string {
		s := site[i]
		return []string{
			s.Slot.Format(time.RFC3339),
			formatFloat(s.EnergyKWh),
			formatFloat(s.DeliveredKWh),
			formatFloat(s.Cost),
			formatFloat(s.MeanPrice),
			strconv.FormatFloat(s.MeanSOC, 'f', 2, 64),
			strconv.Itoa(s.Charging),
			strconv.FormatBool(s.Breach),
		}
	})
}
