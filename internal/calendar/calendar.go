package calendar

import (
	"time"

	"studio-schedule-service/internal/models"
)

// GridSize is the fixed number of cells in a month view: 6 full weeks,
// padded into the neighboring months.
const GridSize = 42

// Day is one grid cell. Start is local midnight, End the next midnight.
type Day struct {
	Start   time.Time
	End     time.Time
	InMonth bool
}

// Instance is a block materialized onto a concrete date. For recurring
// blocks Start/End carry the expanded times for that date; for
// non-recurring blocks they are the block's own range.
type Instance struct {
	Block *models.AvailabilityBlock
	Start time.Time
	End   time.Time
}

// MonthGrid builds the 42-cell grid for a month. Weeks start on Sunday,
// so the 1st of the month lands at the index equal to its weekday.
func MonthGrid(year int, month time.Month, loc *time.Location) []Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))

	days := make([]Day, 0, GridSize)
	for i := 0; i < GridSize; i++ {
		start := gridStart.AddDate(0, 0, i)
		days = append(days, Day{
			Start:   start,
			End:     start.AddDate(0, 0, 1),
			InMonth: start.Month() == month && start.Year() == year,
		})
	}

	return days
}

// Materialize marks every grid day with the block instances covering it.
// The result is index-aligned with days.
func Materialize(days []Day, blocks []*models.AvailabilityBlock) [][]Instance {
	result := make([][]Instance, len(days))

	for i, day := range days {
		for _, block := range blocks {
			if inst, ok := instanceOn(block, day); ok {
				result[i] = append(result[i], inst)
			}
		}
	}

	return result
}

// Expand materializes blocks into concrete instances over [from, to],
// for conflict checking. Day iteration runs over the dates the range
// touches in from's location.
func Expand(blocks []*models.AvailabilityBlock, from, to time.Time) []Instance {
	loc := from.Location()
	first := truncateToDate(from, loc)
	last := truncateToDate(to, loc)

	var instances []Instance
	for _, block := range blocks {
		if !block.IsRecurring {
			if block.Overlaps(from, to) {
				instances = append(instances, Instance{Block: block, Start: block.Start, End: block.End})
			}
			continue
		}

		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			day := Day{Start: d, End: d.AddDate(0, 0, 1)}
			if inst, ok := instanceOn(block, day); ok {
				instances = append(instances, inst)
			}
		}
	}

	return instances
}

func instanceOn(block *models.AvailabilityBlock, day Day) (Instance, bool) {
	if block.IsRecurring {
		if block.RecurrenceDay == nil || int(day.Start.Weekday()) != *block.RecurrenceDay {
			return Instance{}, false
		}
		if block.AllDay {
			return Instance{Block: block, Start: day.Start, End: day.End}, true
		}
		return Instance{Block: block, Start: onDate(day.Start, block.Start), End: onDate(day.Start, block.End)}, true
	}

	// Day bounds sit at local midnight: a block covers the day when its
	// range reaches past the day's start and begins before the next
	// midnight.
	if block.Start.Before(day.End) && !block.End.Before(day.Start) {
		return Instance{Block: block, Start: block.Start, End: block.End}, true
	}

	return Instance{}, false
}

// onDate transplants the time-of-day of t onto the date of day.
func onDate(day, t time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}

func truncateToDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
