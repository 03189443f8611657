package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// transition describes one operation of the appointment state machine.
type transition struct {
	name   string
	from   []Status
	to     Status
	denied *Error
}

var (
	cancelTransition     = transition{name: "cancel", from: activeStatuses, to: StatusCancelled, denied: ErrCannotCancel}
	rescheduleTransition = transition{name: "reschedule", from: activeStatuses, to: StatusRescheduled, denied: ErrCannotReschedule}
	attendTransition     = transition{name: "attend", from: activeStatuses, to: StatusAttended, denied: ErrInvalidStateForAttend}
)

func (t transition) allows(s Status) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

func (t transition) deny(appt *Appointment) error {
	return t.denied.WithMessage(fmt.Sprintf("cannot %s appointment %s in status %s", t.name, appt.ID, appt.Status))
}

// CanTransition reports whether an appointment in status from may move to to.
func CanTransition(from, to Status) bool {
	for _, t := range []transition{cancelTransition, rescheduleTransition, attendTransition} {
		if t.to == to && t.allows(from) {
			return true
		}
	}
	return false
}

// load fetches the appointment and applies the transition guard.
func (s *Service) load(ctx context.Context, id uuid.UUID, t transition) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, passOrWrap(err, "load appointment")
	}
	if !t.allows(appt.Status) {
		return nil, t.deny(appt)
	}
	return appt, nil
}

// CancelAppointment moves a SCHEDULED or RESCHEDULED appointment to
// CANCELLED, freeing its slot.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	appt, err := s.load(ctx, id, cancelTransition)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, cancelTransition.from, StatusCancelled, reason)
	if err != nil {
		// The status changed between the read and the conditional update.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, cancelTransition.deny(appt)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.afterTransition(ctx, appt, updated, "appointment cancelled"+describeReason(reason))
	if patient, err := s.repo.GetPatient(ctx, updated.PatientID); err == nil {
		s.notify(ctx, patient.UserID, NotifyAlert, "Appointment on "+describeSlot(updated.Date, updated.Time)+" was cancelled")
	}
	return updated, nil
}

// RescheduleAppointment moves an active appointment to a new date and time.
// The new slot goes through the same checks as a new booking, with the
// appointment itself excluded from the occupancy checks.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate time.Time, newTime Clock, reason *string) (*Appointment, error) {
	appt, err := s.load(ctx, id, rescheduleTransition)
	if err != nil {
		return nil, err
	}

	newDate = Date(newDate, nil)
	if err := validateDate(newDate, s.today()); err != nil {
		return nil, err
	}
	if err := validateTime(newTime); err != nil {
		return nil, err
	}
	if _, _, err := s.checkParticipants(ctx, appt.PatientID, appt.DoctorID); err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.withSlotLock(ctx, slotKey(appt.DoctorID, newDate, newTime), func(lockCtx context.Context) error {
		if err := s.checkSlot(lockCtx, appt.PatientID, appt.DoctorID, newDate, newTime, appt.ID); err != nil {
			return err
		}
		moved, err := s.repo.RescheduleIfFree(lockCtx, appt.ID, rescheduleTransition.from, newDate, newTime, reason)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return rescheduleTransition.deny(appt)
			}
			return passOrWrap(err, "reschedule appointment")
		}
		updated = moved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, appt, updated, fmt.Sprintf("moved from %s to %s%s",
		describeSlot(appt.Date, appt.Time), describeSlot(updated.Date, updated.Time), describeReason(reason)))
	if patient, err := s.repo.GetPatient(ctx, updated.PatientID); err == nil {
		s.notify(ctx, patient.UserID, NotifyInfo, "Appointment rescheduled to "+describeSlot(updated.Date, updated.Time))
	}
	return updated, nil
}

// MarkAttended closes an active appointment as ATTENDED.
func (s *Service) MarkAttended(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	appt, err := s.load(ctx, id, attendTransition)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, attendTransition.from, StatusAttended, notes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, attendTransition.deny(appt)
		}
		return nil, fmt.Errorf("mark attended: %w", err)
	}

	s.afterTransition(ctx, appt, updated, "patient attended")
	return updated, nil
}

func (s *Service) afterTransition(ctx context.Context, before, after *Appointment, description string) {
	prev := before.Status
	s.recordHistory(ctx, after.ID, &prev, after.Status, description)
	s.metrics.ObserveTransition(string(after.Status))
	s.log.Info("appointment status changed",
		zap.String("appointment_id", after.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(after.Status)),
	)
}

func describeReason(reason *string) string {
	if reason == nil || *reason == "" {
		return ""
	}
	return ": " + *reason
}
