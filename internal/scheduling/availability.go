package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ComputeSlots walks every active block from its start to its end in
// SlotLength steps and keeps the times no occupying appointment holds. The
// result is ascending and free of duplicates. Cancelled appointments do not
// occupy a slot.
func ComputeSlots(blocks []ScheduleBlock, booked []Appointment) []Clock {
	occupied := make(map[Clock]struct{}, len(booked))
	for _, a := range booked {
		if a.Status == StatusCancelled {
			continue
		}
		occupied[a.Time] = struct{}{}
	}

	seen := make(map[Clock]struct{})
	slots := make([]Clock, 0)
	for _, b := range blocks {
		if !b.Active {
			continue
		}
		for t := b.Start; t < b.End; t = t.Add(SlotLength) {
			if _, taken := occupied[t]; taken {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// AvailableSlots returns the bookable times for a doctor on date. A doctor
// with no blocks that weekday gets an empty list.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Clock, error) {
	date = Date(date, nil)

	blocks, err := s.repo.FindBlocksByDoctorAndWeekday(ctx, doctorID, WeekdayOf(date))
	if err != nil {
		return nil, fmt.Errorf("load schedule blocks: %w", err)
	}
	if len(blocks) == 0 {
		return []Clock{}, nil
	}

	booked, err := s.repo.FindByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	return ComputeSlots(blocks, booked), nil
}
