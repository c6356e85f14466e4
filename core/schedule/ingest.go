package schedule

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// ParseTime accepts RFC3339 timestamps and the common spreadsheet layouts.
// Timestamps without a zone are interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// readRecords reads a CSV with a header row and checks the header names.
func readRecords(r io.Reader, header ...string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = len(header)
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header %s", strings.Join(header, ","))
		}
		return nil, err
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(head[i]), h) {
			return nil, fmt.Errorf("column %d: expected %q got %q", i+1, h, head[i])
		}
	}
	return cr.ReadAll()
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ReadJourneys parses vehicle_id,start,end,energy_kwh records.
func ReadJourneys(r io.Reader, loc *time.Location) ([]model.Journey, error) {
	recs, err := readRecords(r, "vehicle_id", "start", "end", "energy_kwh")
	if err != nil {
		return nil, fmt.Errorf("read journeys: %w", err)
	}
	out := make([]model.Journey, 0, len(recs))
	for i, rec := range recs {
		line := i + 2
		start, err := ParseTime(rec[1], loc)
		if err != nil {
			return nil, fmt.Errorf("journeys line %d: %w", line, err)
		}
		end, err := ParseTime(rec[2], loc)
		if err != nil {
			return nil, fmt.Errorf("journeys line %d: %w", line, err)
		}
		e, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("journeys line %d: energy: %w", line, err)
		}
		j := model.Journey{VehicleID: model.VehicleID(strings.TrimSpace(rec[0])), Start: start, End: end, EnergyKWh: e}
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("journeys line %d: %w", line, err)
		}
		out = append(out, j)
	}
	return out, nil
}

// ReadPrices parses from,price records.
func ReadPrices(r io.Reader, loc *time.Location) ([]model.PricePoint, error) {
	recs, err := readRecords(r, "from", "price")
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	out := make([]model.PricePoint, 0, len(recs))
	for i, rec := range recs {
		t, err := ParseTime(rec[0], loc)
		if err != nil {
			return nil, fmt.Errorf("prices line %d: %w", i+2, err)
		}
		p, err := parseFloat(rec[1])
		if err != nil {
			return nil, fmt.Errorf("prices line %d: price: %w", i+2, err)
		}
		out = append(out, model.PricePoint{From: t, Price: p})
	}
	return out, nil
}

// ReadCapacity parses from,available_kw records into a capacity series.
// Slots absent from the file use defaultKW.
func ReadCapacity(r io.Reader, loc *time.Location, defaultKW float64) (model.Capacity, error) {
	recs, err := readRecords(r, "from", "available_kw")
	if err != nil {
		return model.Capacity{}, fmt.Errorf("read capacity: %w", err)
	}
	c := model.ConstantCapacity(defaultKW)
	for i, rec := range recs {
		t, err := ParseTime(rec[0], loc)
		if err != nil {
			return model.Capacity{}, fmt.Errorf("capacity line %d: %w", i+2, err)
		}
		kw, err := parseFloat(rec[1])
		if err != nil {
			return model.Capacity{}, fmt.Errorf("capacity line %d: available_kw: %w", i+2, err)
		}
		if kw < 0 {
			return model.Capacity{}, fmt.Errorf("capacity line %d: negative capacity", i+2)
		}
		c.Set(t, kw)
	}
	return c, nil
}
