package calendar

import (
	"testing"
	"time"

	"studio-schedule-service/internal/models"
)

func TestMonthGrid_Always42Cells(t *testing.T) {
	months := []struct {
		year  int
		month time.Month
	}{
		{2026, time.February},  // 28 days
		{2024, time.February},  // 29 days
		{2026, time.April},     // 30 days
		{2026, time.July},      // 31 days
		{2026, time.September}, // 1st on a Tuesday
	}

	for _, m := range months {
		days := MonthGrid(m.year, m.month, time.UTC)
		if len(days) != GridSize {
			t.Fatalf("%d-%s: expected %d cells, got %d", m.year, m.month, GridSize, len(days))
		}

		first := time.Date(m.year, m.month, 1, 0, 0, 0, 0, time.UTC)
		idx := int(first.Weekday())
		if !days[idx].Start.Equal(first) {
			t.Fatalf("%d-%s: expected the 1st at index %d, got %s", m.year, m.month, idx, days[idx].Start)
		}
		if !days[idx].InMonth {
			t.Fatalf("%d-%s: the 1st is marked out of month", m.year, m.month)
		}
	}
}

func TestMonthGrid_PaddingCellsOutOfMonth(t *testing.T) {
	// July 2026: the 1st is a Wednesday, so cells 0-2 belong to June.
	days := MonthGrid(2026, time.July, time.UTC)

	for i := 0; i < 3; i++ {
		if days[i].InMonth {
			t.Fatalf("cell %d should be a June padding cell", i)
		}
	}
	if !days[3].InMonth {
		t.Fatalf("cell 3 should be July 1st")
	}
}

func TestMaterialize_NonRecurringIntersection(t *testing.T) {
	days := MonthGrid(2026, time.March, time.UTC)

	// Spans March 10th 22:00 through March 12th 02:00: must mark the
	// 10th, 11th and 12th, nothing else.
	block := &models.AvailabilityBlock{
		ID:    "b1",
		OrgID: "org1",
		Type:  models.BlockTimeOff,
		Start: time.Date(2026, time.March, 10, 22, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 12, 2, 0, 0, 0, time.UTC),
	}

	marked := Materialize(days, []*models.AvailabilityBlock{block})

	var got []time.Time
	for i, instances := range marked {
		if len(instances) > 0 {
			got = append(got, days[i].Start)
		}
	}

	want := []time.Time{
		time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC),
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d marked days, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("marked day %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestMaterialize_RecurringSundays(t *testing.T) {
	// July 2026: the 1st falls on a Wednesday. A weekly Sunday block must
	// mark every Sunday cell, including padding cells from June and August.
	days := MonthGrid(2026, time.July, time.UTC)

	sunday := 0
	block := &models.AvailabilityBlock{
		ID:            "b1",
		OrgID:         "org1",
		Type:          models.BlockHoliday,
		AllDay:        true,
		IsRecurring:   true,
		RecurrenceDay: &sunday,
	}

	marked := Materialize(days, []*models.AvailabilityBlock{block})

	count := 0
	for i, instances := range marked {
		isSunday := days[i].Start.Weekday() == time.Sunday
		if isSunday && len(instances) != 1 {
			t.Fatalf("Sunday cell %d not marked", i)
		}
		if !isSunday && len(instances) != 0 {
			t.Fatalf("non-Sunday cell %d marked", i)
		}
		if len(instances) > 0 {
			count++
		}
	}

	// 42 cells starting on a Sunday-aligned boundary always hold 6 Sundays.
	if count != 6 {
		t.Fatalf("expected 6 marked Sundays, got %d", count)
	}
}

func TestMaterialize_AllDayInstanceCoversDay(t *testing.T) {
	days := MonthGrid(2026, time.July, time.UTC)

	monday := 1
	block := &models.AvailabilityBlock{
		ID:            "b1",
		IsRecurring:   true,
		AllDay:        true,
		RecurrenceDay: &monday,
	}

	marked := Materialize(days, []*models.AvailabilityBlock{block})

	for i, instances := range marked {
		for _, inst := range instances {
			if !inst.Start.Equal(days[i].Start) || !inst.End.Equal(days[i].End) {
				t.Fatalf("all-day instance on cell %d does not span the day: [%s, %s]", i, inst.Start, inst.End)
			}
		}
	}
}

func TestExpand_RecurringWithTimeOfDay(t *testing.T) {
	// Weekly Tuesday block 09:00-12:00, expanded over one week.
	tuesday := 2
	block := &models.AvailabilityBlock{
		ID:            "b1",
		IsRecurring:   true,
		RecurrenceDay: &tuesday,
		Start:         time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC),
		End:           time.Date(2026, time.January, 6, 12, 0, 0, 0, time.UTC),
	}

	from := time.Date(2026, time.July, 6, 0, 0, 0, 0, time.UTC) // a Monday
	to := time.Date(2026, time.July, 12, 23, 0, 0, 0, time.UTC)

	instances := Expand([]*models.AvailabilityBlock{block}, from, to)
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}

	wantStart := time.Date(2026, time.July, 7, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, time.July, 7, 12, 0, 0, 0, time.UTC)
	if !instances[0].Start.Equal(wantStart) || !instances[0].End.Equal(wantEnd) {
		t.Fatalf("expected [%s, %s], got [%s, %s]", wantStart, wantEnd, instances[0].Start, instances[0].End)
	}
}

func TestExpand_NonRecurringOutsideRange(t *testing.T) {
	block := &models.AvailabilityBlock{
		ID:    "b1",
		Start: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}

	from := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

	if got := Expand([]*models.AvailabilityBlock{block}, from, to); len(got) != 0 {
		t.Fatalf("expected no instances, got %d", len(got))
	}
}
