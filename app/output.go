package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/pkg/export"
)

// Write stores the plan below dir, one file set per category:
// <cat>_rows.csv, <cat>_levels.csv, <cat>_profile.csv, <cat>_site.csv and
// <cat>_bad_days.txt, plus <cat>_summary.json, <cat>_site.html and
// <cat>_last_day.lp when enabled. It returns the written paths.
func (s *Service) Write(plan *Plan, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	put := func(name string, fn func(w io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, cat := range plan.Categories() {
		sc := plan.Scenarios[cat]
		prefix := strings.ToLower(cat.String()) + "_"
		steps := []struct {
			name string
			fn   func(w io.Writer) error
		}{
			{"rows.csv", func(w io.Writer) error { return export.WriteRowsCSV(w, sc.Result.Rows) }},
			{"levels.csv", func(w io.Writer) error { return export.WriteLevelsCSV(w, sc.Result.Levels) }},
			{"profile.csv", func(w io.Writer) error { return export.WriteProfileCSV(w, sc.Summary.Profile) }},
			{"site.csv", func(w io.Writer) error { return export.WriteSiteCSV(w, sc.Summary.Site) }},
			{"bad_days.txt", func(w io.Writer) error {
				_, err := io.WriteString(w, sc.Result.BadDays)
				return err
			}},
		}
		if plan.Config.Output.JSON {
			steps = append(steps, struct {
				name string
				fn   func(w io.Writer) error
			}{"summary.json", func(w io.Writer) error { return export.WriteJSON(w, sc.Summary) }})
		}
		if plan.Config.Output.Charts {
			title := fmt.Sprintf("%s %s site profile", plan.Config.Site.Name, cat)
			limit := siteLimit(sc.Capacity, plan.Config.Schedule.SlotDuration)
			steps = append(steps, struct {
				name string
				fn   func(w io.Writer) error
			}{"site.html", func(w io.Writer) error { return export.WriteSiteChartHTML(w, title, sc.Summary.Site, limit) }})
		}
		if plan.Config.Output.WriteLP && sc.Result.LastProblem != nil {
			steps = append(steps, struct {
				name string
				fn   func(w io.Writer) error
			}{"last_day.lp", sc.Result.LastProblem.WriteLP})
		}
		for _, st := range steps {
			if err := put(prefix+st.name, st.fn); err != nil {
				return written, err
			}
		}
	}
	s.log.Infof("wrote %d files to %s", len(written), dir)
	return written, nil
}

// Headline is a one-line digest of a category result.
func Headline(cat model.Category, sc *Scenario) string {
	sum := sc.Summary
	return fmt.Sprintf("%-4s energy %.1f kWh, cost %.2f, main %d tonext %d breach %d magic %d empty %d, breach slots %d (%s)",
		cat, sum.EnergyKWh, sum.Cost,
		sum.Levels[model.LevelMain], sum.Levels[model.LevelTonext], sum.Levels[model.LevelBreach],
		sum.Levels[model.LevelMagic], sum.Levels[model.LevelEmpty], sum.BreachSlots, sc.Elapsed.Round(time.Millisecond))
}

// siteLimit returns the site energy limit per slot, negative when the site is
// unconstrained.
func siteLimit(c model.Capacity, slot time.Duration) func(time.Time) float64 {
	return func(t time.Time) float64 {
		kw, ok := c.Limit(t)
		if !ok {
			return -1
		}
		return kw * slot.Hours()
	}
}
