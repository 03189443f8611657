package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minReasonLength = 10
	maxReasonLength = 500

	// Appointments may be booked at most this many calendar months ahead.
	bookingHorizonMonths = 6
)

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrInvalidReason.WithMessage("reason is required")
	}
	if n := utf8.RuneCountInString(reason); n < minReasonLength || n > maxReasonLength {
		return ErrInvalidReason
	}
	return nil
}

// validateDate rejects days before today and days past the booking horizon.
// Both arguments are calendar days at midnight UTC.
func validateDate(date, today time.Time) error {
	if date.Before(today) {
		return ErrInvalidDate.WithMessage("date is in the past")
	}
	if date.After(addMonths(today, bookingHorizonMonths)) {
		return ErrInvalidDate.WithMessage("date is more than six months ahead")
	}
	return nil
}

// addMonths moves t forward by months calendar months. A day that does not
// exist in the target month is clamped to its last day, so Aug 31 plus six
// months is Feb 28 (or 29), never early March.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func validateTime(at Clock) error {
	if !at.Valid() || !at.Aligned() {
		return ErrInvalidTime
	}
	return nil
}

// checkParticipants loads the patient and the doctor and requires the
// doctor to be active.
func (s *Service) checkParticipants(ctx context.Context, patientID, doctorID uuid.UUID) (*Patient, *Doctor, error) {
	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, nil, ErrDoctorInactive
	}

	return patient, doctor, nil
}

// checkSlot runs the occupancy checks for (date, at): the patient is free,
// the doctor works then, and the doctor's slot is free. exclude is the
// appointment being moved, if any.
func (s *Service) checkSlot(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, at Clock, exclude uuid.UUID) error {
	mine, err := s.repo.FindByPatientAndSlot(ctx, patientID, date, at)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check patient slot: %w", err)
	}
	if mine != nil && mine.ID != exclude {
		return ErrPatientDoubleBooked
	}

	blocks, err := s.repo.FindBlocksByDoctorAndWeekday(ctx, doctorID, WeekdayOf(date))
	if err != nil {
		return fmt.Errorf("load schedule blocks: %w", err)
	}
	if len(blocks) == 0 {
		return ErrNoScheduleForDay.WithMessage(fmt.Sprintf("doctor does not work on %s", WeekdayOf(date)))
	}
	inside := false
	for _, b := range blocks {
		if b.Active && b.Contains(at) {
			inside = true
			break
		}
	}
	if !inside {
		return ErrOutsideWorkingHours.WithMessage(fmt.Sprintf("%s is outside the doctor's working hours", at))
	}

	taken, err := s.repo.FindByDoctorAndSlot(ctx, doctorID, date, at)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check doctor slot: %w", err)
	}
	if taken != nil && taken.ID != exclude {
		return ErrSlotAlreadyTaken
	}

	return nil
}

// slotKey identifies a doctor's slot for the distributed lock.
func slotKey(doctorID uuid.UUID, date time.Time, at Clock) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, FormatDate(date), at)
}
