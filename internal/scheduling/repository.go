package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lookups return ErrPatientNotFound, ErrDoctorNotFound, ErrBlockNotFound or
// ErrAppointmentNotFound when the row does not exist.

type PatientRepository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

type DoctorRepository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

type BlockRepository interface {
	GetBlock(ctx context.Context, id uuid.UUID) (*ScheduleBlock, error)
	// FindBlocksByDoctorAndWeekday returns active blocks ordered by start.
	FindBlocksByDoctorAndWeekday(ctx context.Context, doctorID uuid.UUID, weekday Weekday) ([]ScheduleBlock, error)
	// ListBlocksByDoctor returns active blocks ordered by weekday and start.
	ListBlocksByDoctor(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error)
	CreateBlock(ctx context.Context, b ScheduleBlock) (*ScheduleBlock, error)
	DeactivateBlock(ctx context.Context, id uuid.UUID) error
}

type AppointmentRepository interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Non-cancelled appointments only.
	FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	FindByDoctorAndSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at Clock) (*Appointment, error)
	FindByPatientAndSlot(ctx context.Context, patientID uuid.UUID, date time.Time, at Clock) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	// CreateIfFree inserts a SCHEDULED appointment in one atomic step. It
	// returns ErrSlotAlreadyTaken when the doctor already has a non-cancelled
	// appointment at that slot, ErrPatientDoubleBooked when the patient does.
	CreateIfFree(ctx context.Context, req BookingRequest) (*Appointment, error)

	// RescheduleIfFree moves an appointment whose status is one of from to a
	// new slot and marks it RESCHEDULED, with the same slot guarantees as
	// CreateIfFree. It returns ErrAppointmentNotFound if no row matched.
	RescheduleIfFree(ctx context.Context, id uuid.UUID, from []Status, date time.Time, at Clock, notes *string) (*Appointment, error)

	// UpdateStatus sets status (and notes when non-nil) if the current status
	// is one of from. It returns ErrAppointmentNotFound if no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, notes *string) (*Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}

type HistoryRepository interface {
	InsertHistory(ctx context.Context, h HistoryEntry) error
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	PatientRepository
	DoctorRepository
	BlockRepository
	AppointmentRepository
	HistoryRepository
}

// Notifier delivers a message to a user. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind NotificationKind, message string) error
}
