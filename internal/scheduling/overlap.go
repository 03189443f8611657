package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// overlaps is the half-open interval test for [s1,e1) and [s2,e2).
func overlaps(s1, e1, s2, e2 Clock) bool {
	return s1 < e2 && s2 < e1
}

// HasOverlap reports whether [start,end) conflicts with any active block in
// blocks for the same weekday. A block whose ID equals exclude is ignored.
// Adjacent blocks (one ends where the other starts) do not conflict.
func HasOverlap(blocks []ScheduleBlock, weekday Weekday, start, end Clock, exclude uuid.UUID) bool {
	for _, b := range blocks {
		if !b.Active || b.Weekday != weekday {
			continue
		}
		if exclude != uuid.Nil && b.ID == exclude {
			continue
		}
		if overlaps(b.Start, b.End, start, end) {
			return true
		}
	}
	return false
}

// HasOverlap loads the doctor's active blocks for weekday and checks the
// candidate interval against them.
func (s *Service) HasOverlap(ctx context.Context, doctorID uuid.UUID, weekday Weekday, start, end Clock, exclude uuid.UUID) (bool, error) {
	blocks, err := s.repo.FindBlocksByDoctorAndWeekday(ctx, doctorID, weekday)
	if err != nil {
		return false, fmt.Errorf("load schedule blocks: %w", err)
	}
	return HasOverlap(blocks, weekday, start, end, exclude), nil
}
