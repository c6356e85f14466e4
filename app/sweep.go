package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/depotcharge/config"
	"github.com/kilianp07/depotcharge/pkg/export"
)

// Sweep plans every configured scenario concurrently, at most
// sweep.parallelism at a time, and appends one grid line per scenario and
// category to w. A failing scenario is logged in the grid and does not stop
// the others; the first failure is returned once all scenarios finished.
func (s *Service) Sweep(ctx context.Context, in *Inputs, w io.Writer, appending bool) ([]*Plan, error) {
	scenarios := s.cfg.Sweep.Scenarios
	if len(scenarios) == 0 {
		scenarios = []config.ScenarioConfig{{Name: "base"}}
	}
	grid := export.NewGridWriter(w, appending)
	plans := make([]*Plan, len(scenarios))
	errs := make([]error, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Sweep.Parallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			cfg := sc.Apply(s.cfg)
			start := time.Now()
			plan, err := s.plan(gctx, cfg, sc.Name, in)
			if err != nil {
				errs[i] = fmt.Errorf("scenario %s: %w", sc.Name, err)
				s.log.Errorf("%v", errs[i])
				return grid.Write(export.GridEntry{
					Scenario:     sc.Name,
					SlowKW:       cfg.Optimiser.SlowKW,
					FastKW:       cfg.Optimiser.FastKW,
					FastChargers: cfg.Optimiser.FastChargers,
					CapacityKW:   cfg.Site.CapacityKW,
					Duration:     time.Since(start),
					Err:          err.Error(),
				})
			}
			plans[i] = plan
			for _, cat := range plan.Categories() {
				res := plan.Scenarios[cat]
				if err := grid.Write(export.GridEntry{
					RunID:        plan.RunID,
					Scenario:     sc.Name,
					Category:     cat,
					SlowKW:       cfg.Optimiser.SlowKW,
					FastKW:       cfg.Optimiser.FastKW,
					FastChargers: cfg.Optimiser.FastChargers,
					CapacityKW:   cfg.Site.CapacityKW,
					EnergyKWh:    res.Summary.EnergyKWh,
					Cost:         res.Summary.Cost,
					Levels:       res.Summary.Levels,
					BreachSlots:  res.Summary.BreachSlots,
					Duration:     res.Elapsed,
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return plans, err
	}
	for _, err := range errs {
		if err != nil {
			return plans, err
		}
	}
	return plans, nil
}
