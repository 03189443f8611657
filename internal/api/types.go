package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Reason    string  `json:"reason"`
	Notes     *string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Date   string  `json:"date"`
	Time   string  `json:"time"`
	Reason *string `json:"reason,omitempty"`
}

type CancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type AttendRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type AddScheduleBlockRequest struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	RemindedAt *time.Time `json:"reminded_at,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		DoctorID:   a.DoctorID,
		Date:       scheduling.FormatDate(a.Date),
		Time:       a.Time.String(),
		Reason:     a.Reason,
		Status:     string(a.Status),
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		RemindedAt: a.RemindedAt,
	}
}

type ScheduleBlockResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Weekday  int       `json:"weekday"`
	Day      string    `json:"day"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Active   bool      `json:"active"`
}

func toBlockResponse(b *scheduling.ScheduleBlock) ScheduleBlockResponse {
	return ScheduleBlockResponse{
		ID:       b.ID,
		DoctorID: b.DoctorID,
		Weekday:  int(b.Weekday),
		Day:      b.Weekday.String(),
		Start:    b.Start.String(),
		End:      b.End.String(),
		Active:   b.Active,
	}
}

func toBlockResponses(blocks []scheduling.ScheduleBlock) []ScheduleBlockResponse {
	out := make([]ScheduleBlockResponse, len(blocks))
	for i := range blocks {
		out[i] = toBlockResponse(&blocks[i])
	}
	return out
}

type HistoryEntryResponse struct {
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
	Description    string    `json:"description"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
