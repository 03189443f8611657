package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status of an appointment.
//
//	SCHEDULED   → RESCHEDULED | CANCELLED | ATTENDED
//	RESCHEDULED → RESCHEDULED | CANCELLED | ATTENDED
//	CANCELLED, ATTENDED are terminal
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCancelled   Status = "CANCELLED"
	StatusAttended    Status = "ATTENDED"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusAttended
}

// activeStatuses are the statuses that occupy a slot.
var activeStatuses = []Status{StatusScheduled, StatusRescheduled}

type NotificationKind string

const (
	NotifyInfo         NotificationKind = "INFO"
	NotifyReminder     NotificationKind = "REMINDER"
	NotifyAlert        NotificationKind = "ALERT"
	NotifyConfirmation NotificationKind = "CONFIRMATION"
)

type Specialty struct {
	ID   uuid.UUID
	Name string
}

type Patient struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
}

type Doctor struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	SpecialtyID *uuid.UUID
	Active      bool
	CreatedAt   time.Time
}

// ScheduleBlock is a recurring weekly interval [Start, End) during which a
// doctor accepts appointments.
type ScheduleBlock struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Weekday   Weekday
	Start     Clock
	End       Clock
	Active    bool
	CreatedAt time.Time
}

// Contains reports whether t falls inside the block.
func (b ScheduleBlock) Contains(t Clock) bool {
	return b.Start <= t && t < b.End
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	Date       time.Time // calendar day, midnight UTC
	Time       Clock
	Reason     string
	Status     Status
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	RemindedAt *time.Time
}

// HistoryEntry records one status transition of an appointment.
type HistoryEntry struct {
	ID             int64
	AppointmentID  uuid.UUID
	PreviousStatus *Status
	NewStatus      Status
	ChangedAt      time.Time
	Description    string
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      NotificationKind
	Message   string
	CreatedAt time.Time
}

// BookingRequest carries the caller's input for a new appointment.
type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      Clock
	Reason    string
	Notes     *string
}
