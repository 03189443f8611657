package scheduling

import "errors"

// Kind groups error codes into the four classes callers act on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidInput
	KindConflict
	KindInvalidStateTransition
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindInvalidStateTransition:
		return "invalid_state_transition"
	}
	return "unknown"
}

type Code string

const (
	CodePatientNotFound       Code = "PATIENT_NOT_FOUND"
	CodeDoctorNotFound        Code = "DOCTOR_NOT_FOUND"
	CodeAppointmentNotFound   Code = "APPOINTMENT_NOT_FOUND"
	CodeBlockNotFound         Code = "SCHEDULE_BLOCK_NOT_FOUND"
	CodeInvalidReason         Code = "INVALID_REASON"
	CodeInvalidDate           Code = "INVALID_DATE"
	CodeInvalidTime           Code = "INVALID_TIME"
	CodeInvalidWeekday        Code = "INVALID_WEEKDAY"
	CodeInvalidTimeRange      Code = "INVALID_TIME_RANGE"
	CodeDoctorInactive        Code = "DOCTOR_INACTIVE"
	CodePatientDoubleBooked   Code = "PATIENT_DOUBLE_BOOKED"
	CodeNoScheduleForDay      Code = "NO_SCHEDULE_FOR_DAY"
	CodeOutsideWorkingHours   Code = "OUTSIDE_WORKING_HOURS"
	CodeSlotAlreadyTaken      Code = "SLOT_ALREADY_TAKEN"
	CodeSlotBusy              Code = "SLOT_BUSY"
	CodeScheduleOverlap       Code = "SCHEDULE_OVERLAP"
	CodeCannotCancel          Code = "CANNOT_CANCEL"
	CodeCannotReschedule      Code = "CANNOT_RESCHEDULE"
	CodeInvalidStateForAttend Code = "INVALID_STATE_FOR_ATTEND"
)

// Error is a scheduling failure the caller can recover from. Two errors are
// the same for errors.Is when their codes match, so a wrapped copy with a
// more specific message still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg}
}

var (
	ErrPatientNotFound     = &Error{KindNotFound, CodePatientNotFound, "patient not found"}
	ErrDoctorNotFound      = &Error{KindNotFound, CodeDoctorNotFound, "doctor not found"}
	ErrAppointmentNotFound = &Error{KindNotFound, CodeAppointmentNotFound, "appointment not found"}
	ErrBlockNotFound       = &Error{KindNotFound, CodeBlockNotFound, "schedule block not found"}

	ErrInvalidReason    = &Error{KindInvalidInput, CodeInvalidReason, "reason must be between 10 and 500 characters"}
	ErrInvalidDate      = &Error{KindInvalidInput, CodeInvalidDate, "date must be between today and six months ahead"}
	ErrInvalidTime      = &Error{KindInvalidInput, CodeInvalidTime, "appointments start on the hour or half hour"}
	ErrInvalidWeekday   = &Error{KindInvalidInput, CodeInvalidWeekday, "weekday must be between 1 (Monday) and 7 (Sunday)"}
	ErrInvalidTimeRange = &Error{KindInvalidInput, CodeInvalidTimeRange, "schedule block must start before it ends, within 06:00-22:00, on the half-hour grid"}

	ErrDoctorInactive      = &Error{KindConflict, CodeDoctorInactive, "doctor is not active"}
	ErrPatientDoubleBooked = &Error{KindConflict, CodePatientDoubleBooked, "patient already has an appointment at that time"}
	ErrNoScheduleForDay    = &Error{KindConflict, CodeNoScheduleForDay, "doctor does not work on that day"}
	ErrOutsideWorkingHours = &Error{KindConflict, CodeOutsideWorkingHours, "time is outside the doctor's working hours"}
	ErrSlotAlreadyTaken    = &Error{KindConflict, CodeSlotAlreadyTaken, "slot is already taken"}
	ErrSlotBusy            = &Error{KindConflict, CodeSlotBusy, "slot is currently being booked, please retry shortly"}
	ErrScheduleOverlap     = &Error{KindConflict, CodeScheduleOverlap, "schedule block overlaps an existing block"}

	ErrCannotCancel          = &Error{KindInvalidStateTransition, CodeCannotCancel, "appointment cannot be cancelled"}
	ErrCannotReschedule      = &Error{KindInvalidStateTransition, CodeCannotReschedule, "appointment cannot be rescheduled"}
	ErrInvalidStateForAttend = &Error{KindInvalidStateTransition, CodeInvalidStateForAttend, "appointment cannot be marked as attended"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
