package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	earliestBlockStart = NewClock(6, 0)
	latestBlockEnd     = NewClock(22, 0)
)

// defaultWindows is the working day given to a newly onboarded doctor,
// Monday to Friday.
var defaultWindows = [][2]Clock{
	{NewClock(8, 0), NewClock(12, 0)},
	{NewClock(14, 0), NewClock(18, 0)},
}

func validateBlockRange(start, end Clock) error {
	if !start.Valid() || !end.Valid() || start >= end {
		return ErrInvalidTimeRange
	}
	if start < earliestBlockStart || end > latestBlockEnd {
		return ErrInvalidTimeRange
	}
	if !start.Aligned() || !end.Aligned() {
		return ErrInvalidTimeRange
	}
	return nil
}

// AddScheduleBlock creates a weekly availability block after checking it
// does not overlap the doctor's active blocks on that weekday. Concurrent
// additions for the same doctor and weekday are serialized by the locker,
// and the store rejects an overlapping insert even without it.
func (s *Service) AddScheduleBlock(ctx context.Context, doctorID uuid.UUID, weekday Weekday, start, end Clock) (*ScheduleBlock, error) {
	if !weekday.Valid() {
		return nil, ErrInvalidWeekday
	}
	if err := validateBlockRange(start, end); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, passOrWrap(err, "load doctor")
	}

	var created *ScheduleBlock
	key := fmt.Sprintf("schedule:%s:%d", doctorID, weekday)
	err := s.withSlotLock(ctx, key, func(lockCtx context.Context) error {
		overlap, err := s.HasOverlap(lockCtx, doctorID, weekday, start, end, uuid.Nil)
		if err != nil {
			return err
		}
		if overlap {
			return ErrScheduleOverlap.WithMessage(fmt.Sprintf("%s %s-%s overlaps an existing block", weekday, start, end))
		}
		b, err := s.repo.CreateBlock(lockCtx, ScheduleBlock{
			DoctorID: doctorID,
			Weekday:  weekday,
			Start:    start,
			End:      end,
			Active:   true,
		})
		if err != nil {
			return passOrWrap(err, "create schedule block")
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("schedule block added",
		zap.String("doctor_id", doctorID.String()),
		zap.String("weekday", weekday.String()),
		zap.String("start", start.String()),
		zap.String("end", end.String()),
	)
	return created, nil
}

// RemoveScheduleBlock deactivates a block. Appointments already booked in it
// are left untouched.
func (s *Service) RemoveScheduleBlock(ctx context.Context, blockID uuid.UUID) error {
	b, err := s.repo.GetBlock(ctx, blockID)
	if err != nil {
		return passOrWrap(err, "load schedule block")
	}
	if !b.Active {
		return nil
	}
	if err := s.repo.DeactivateBlock(ctx, blockID); err != nil {
		return passOrWrap(err, "deactivate schedule block")
	}
	return nil
}

// ListScheduleBlocks returns a doctor's active blocks.
func (s *Service) ListScheduleBlocks(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, passOrWrap(err, "load doctor")
	}
	blocks, err := s.repo.ListBlocksByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}

// ProvisionDefaultSchedule gives a newly onboarded doctor the default
// Monday-Friday schedule. Windows that would overlap an existing block are
// skipped, so running it twice is harmless.
func (s *Service) ProvisionDefaultSchedule(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error) {
	created := make([]ScheduleBlock, 0, 10)
	for wd := Monday; wd <= Friday; wd++ {
		for _, w := range defaultWindows {
			b, err := s.AddScheduleBlock(ctx, doctorID, wd, w[0], w[1])
			if errors.Is(err, ErrScheduleOverlap) {
				continue
			}
			if err != nil {
				return created, err
			}
			created = append(created, *b)
		}
	}
	return created, nil
}
