package optimiser

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/depotcharge/core/lpmodel"
	"github.com/kilianp07/depotcharge/core/model"
)

// Magic returns the day plan that brings every vehicle back to full by
// spreading the missing energy equally over its available slots. It ignores
// charger power and site capacity, so the plan may not be physically
// realisable; it exists so a range run always carries on. Vehicles never
// available during the day cannot be charged and are listed in the note.
func (e *Engine) Magic(in DayInput) (*DayResult, error) {
	vehicles, err := e.layout(in)
	if err != nil {
		return nil, err
	}
	h := e.params.SlotHours()
	energies := make([]float64, len(in.Rows))
	var stranded []string
	for _, vd := range vehicles {
		need := -in.Entering.Of(vd.vehicle.ID)
		var avail []int
		for _, i := range vd.idx {
			need -= in.Rows[i].BatteryUseKWh
			if in.Rows[i].Available {
				avail = append(avail, i)
			}
		}
		if need <= 0 {
			continue
		}
		if len(avail) == 0 {
			stranded = append(stranded, string(vd.vehicle.ID))
			continue
		}
		per := need / vd.vehicle.Efficiency / float64(len(avail))
		for _, i := range avail {
			energies[i] = per
		}
	}

	res := &DayResult{
		Date:     in.Date,
		Category: in.Scenario.Category,
		Level:    model.LevelMagic,
		Rows:     make([]model.OutputRow, len(in.Rows)),
		EndState: make(map[model.VehicleID]float64, len(vehicles)),
		Status:   lpmodel.Feasible,
	}
	for i, r := range in.Rows {
		res.Rows[i] = model.OutputRow{
			Slot:      r.Slot,
			VehicleID: r.VehicleID,
			Category:  in.Scenario.Category,
			EnergyKWh: energies[i],
			PowerKW:   energies[i] / h,
			Level:     model.LevelMagic,
		}
	}
	res.fill(in, energies, vehicles)
	res.Note = fmt.Sprintf("%s %s: Magic! charging applied, %.2f kWh ignoring power and capacity limits",
		in.Date.Format(time.DateOnly), in.Scenario.Category, res.EnergyKWh)
	if len(stranded) > 0 {
		res.Note += fmt.Sprintf("; never available: %s", strings.Join(stranded, ","))
	}
	return res, nil
}
