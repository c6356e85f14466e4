package schedule

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/kilianp07/depotcharge/core/model"
)

// DayOf returns the charging-window date of ts. A charging window starts at
// windowStart on its date and lasts 24 hours, so a slot before windowStart
// belongs to the previous date. The result is midnight in ts' location.
func DayOf(ts time.Time, windowStart time.Duration) time.Time {
	shifted := ts.Add(-windowStart)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// Window returns the half-open bounds of the charging window of date.
func Window(date time.Time, windowStart time.Duration) (time.Time, time.Time) {
	from := date.Add(windowStart)
	return from, date.AddDate(0, 0, 1).Add(windowStart)
}

// Dates returns the distinct charging-window dates present in rows, sorted.
func Dates(rows []model.Row, windowStart time.Duration) []time.Time {
	days := lo.UniqBy(lo.Map(rows, func(r model.Row, _ int) time.Time {
		return DayOf(r.Slot, windowStart)
	}), func(t time.Time) int64 { return t.Unix() })
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// DateRange enumerates every date from first to last inclusive.
func DateRange(first, last time.Time) []time.Time {
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// SliceDay returns the rows belonging to the charging window of date, keeping
// their order.
func SliceDay(rows []model.Row, date time.Time, windowStart time.Duration) []model.Row {
	from, to := Window(date, windowStart)
	return lo.Filter(rows, func(r model.Row, _ int) bool {
		return !r.Slot.Before(from) && r.Slot.Before(to)
	})
}

// GroupByDay indexes rows by charging-window date.
func GroupByDay(rows []model.Row, windowStart time.Duration) map[time.Time][]model.Row {
	return lo.GroupBy(rows, func(r model.Row) time.Time { return DayOf(r.Slot, windowStart) })
}
