package model

import (
	"fmt"
	"sort"
	"time"
)

// VehicleID identifies a vehicle of the depot fleet.
type VehicleID string

// Vehicle represents an electric vehicle parked at the depot between journeys.
type Vehicle struct {
	ID         VehicleID
	Model      string  // vehicle model, key of the VehicleSpec lookup
	BatteryKWh float64 // usable battery capacity in kWh
	Efficiency float64 // charging efficiency in (0,1]
	// MaxPowerKW caps the power the vehicle accepts. Zero means the charger
	// power applies.
	MaxPowerKW float64
}

// VehicleSpec holds the physical parameters shared by a vehicle model.
type VehicleSpec struct {
	BatteryKWh float64 `json:"battery_kwh"`
	Efficiency float64 `json:"efficiency"`
	MaxPowerKW float64 `json:"max_power_kw"`
}

// Validate checks that the vehicle configuration is sound.
// In particular BatteryKWh must be positive.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.BatteryKWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive", v.ID)
	}
	if v.Efficiency <= 0 || v.Efficiency > 1 {
		return fmt.Errorf("vehicle %s: efficiency must be in (0,1]", v.ID)
	}
	if v.MaxPowerKW < 0 {
		return fmt.Errorf("vehicle %s: max power must not be negative", v.ID)
	}
	return nil
}

// Fleet indexes vehicles by identifier.
type Fleet map[VehicleID]Vehicle

// NewFleet builds a fleet from the given vehicles, resolving model specs for
// vehicles that do not carry their own capacity or efficiency.
func NewFleet(vehicles []Vehicle, specs map[string]VehicleSpec) (Fleet, error) {
	f := make(Fleet, len(vehicles))
	for _, v := range vehicles {
		if spec, ok := specs[v.Model]; ok {
			if v.BatteryKWh == 0 {
				v.BatteryKWh = spec.BatteryKWh
			}
			if v.Efficiency == 0 {
				v.Efficiency = spec.Efficiency
			}
			if v.MaxPowerKW == 0 {
				v.MaxPowerKW = spec.MaxPowerKW
			}
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if _, dup := f[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle %s", v.ID)
		}
		f[v.ID] = v
	}
	return f, nil
}

// IDs returns the vehicle identifiers in lexical order.
func (f Fleet) IDs() []VehicleID {
	ids := make([]VehicleID, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Journey is a single trip of one vehicle. Journeys are the only source of
// battery discharge.
type Journey struct {
	VehicleID VehicleID
	Start     time.Time
	End       time.Time
	EnergyKWh float64 // energy required to complete the trip
}

// Validate checks the journey boundaries and energy.
func (j Journey) Validate() error {
	if j.VehicleID == "" {
		return fmt.Errorf("journey without vehicle")
	}
	if !j.End.After(j.Start) {
		return fmt.Errorf("journey of %s ends before it starts", j.VehicleID)
	}
	if j.EnergyKWh < 0 {
		return fmt.Errorf("journey of %s has negative energy", j.VehicleID)
	}
	return nil
}
