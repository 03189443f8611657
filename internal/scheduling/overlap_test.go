package scheduling_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func block(wd scheduling.Weekday, start, end string) scheduling.ScheduleBlock {
	s, _ := scheduling.ParseClock(start)
	e, _ := scheduling.ParseClock(end)
	return scheduling.ScheduleBlock{ID: uuid.New(), Weekday: wd, Start: s, End: e, Active: true}
}

func clock(s string) scheduling.Clock {
	c, err := scheduling.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func TestHasOverlap(t *testing.T) {
	morning := block(scheduling.Monday, "08:00", "12:00")
	blocks := []scheduling.ScheduleBlock{morning}

	tests := []struct {
		name       string
		weekday    scheduling.Weekday
		start, end string
		want       bool
	}{
		{"inside", scheduling.Monday, "09:00", "10:00", true},
		{"covers", scheduling.Monday, "07:00", "13:00", true},
		{"straddles start", scheduling.Monday, "07:00", "08:30", true},
		{"straddles end", scheduling.Monday, "11:30", "13:00", true},
		{"identical", scheduling.Monday, "08:00", "12:00", true},
		{"adjacent after", scheduling.Monday, "12:00", "14:00", false},
		{"adjacent before", scheduling.Monday, "06:00", "08:00", false},
		{"other weekday", scheduling.Tuesday, "09:00", "10:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduling.HasOverlap(blocks, tt.weekday, clock(tt.start), clock(tt.end), uuid.Nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasOverlapIgnoresExcludedAndInactive(t *testing.T) {
	morning := block(scheduling.Monday, "08:00", "12:00")
	inactive := block(scheduling.Monday, "14:00", "18:00")
	inactive.Active = false
	blocks := []scheduling.ScheduleBlock{morning, inactive}

	assert.False(t, scheduling.HasOverlap(blocks, scheduling.Monday, clock("09:00"), clock("10:00"), morning.ID))
	assert.False(t, scheduling.HasOverlap(blocks, scheduling.Monday, clock("15:00"), clock("16:00"), uuid.Nil))
}

func TestServiceHasOverlap(t *testing.T) {
	f := newFixture(t)

	overlap, err := f.svc.HasOverlap(context.Background(), f.doctor.ID, scheduling.Monday, clock("11:00"), clock("13:00"), uuid.Nil)
	assert.NoError(t, err)
	assert.True(t, overlap)

	overlap, err = f.svc.HasOverlap(context.Background(), f.doctor.ID, scheduling.Monday, clock("12:00"), clock("13:00"), uuid.Nil)
	assert.NoError(t, err)
	assert.False(t, overlap)
}
