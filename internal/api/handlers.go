package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func createAppointmentHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, at, ok := parseSlot(w, req.Date, req.Time)
		if !ok {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), scheduling.BookingRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      date,
			Time:      at,
			Reason:    req.Reason,
			Notes:     req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		var (
			appts []scheduling.Appointment
			err   error
		)
		switch {
		case q.Get("patient_id") != "":
			id, perr := uuid.Parse(q.Get("patient_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			appts, err = svc.ListAppointmentsByPatient(r.Context(), id, limit, offset)
		case q.Get("doctor_id") != "":
			id, perr := uuid.Parse(q.Get("doctor_id"))
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			appts, err = svc.ListAppointmentsByDoctor(r.Context(), id, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "patient_id or doctor_id is required")
			return
		}
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]AppointmentResponse, len(appts))
		for i := range appts {
			resp[i] = toAppointmentResponse(&appts[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentHistoryHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		entries, err := svc.AppointmentHistory(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]HistoryEntryResponse, len(entries))
		for i, h := range entries {
			resp[i] = HistoryEntryResponse{
				NewStatus:   string(h.NewStatus),
				ChangedAt:   h.ChangedAt,
				Description: h.Description,
			}
			if h.PreviousStatus != nil {
				prev := string(*h.PreviousStatus)
				resp[i].PreviousStatus = &prev
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req CancelRequest
		if !decodeOptional(w, r, &req) {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, at, ok := parseSlot(w, req.Date, req.Time)
		if !ok {
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, date, at, req.Reason)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func markAttendedHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req AttendRequest
		if !decodeOptional(w, r, &req) {
			return
		}

		appt, err := svc.MarkAttended(r.Context(), id, req.Notes)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		date, err := scheduling.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := AvailabilityResponse{
			DoctorID: doctorID,
			Date:     scheduling.FormatDate(date),
			Slots:    make([]string, len(slots)),
		}
		for i, s := range slots {
			resp.Slots[i] = s.String()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listScheduleBlocksHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		blocks, err := svc.ListScheduleBlocks(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponses(blocks))
	}
}

func addScheduleBlockHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}
		var req AddScheduleBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		start, err := scheduling.ParseClock(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_range", "start must be HH:MM")
			return
		}
		end, err := scheduling.ParseClock(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_range", "end must be HH:MM")
			return
		}

		b, err := svc.AddScheduleBlock(r.Context(), doctorID, scheduling.Weekday(req.Weekday), start, end)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(b))
	}
}

func provisionDefaultScheduleHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		blocks, err := svc.ProvisionDefaultSchedule(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponses(blocks))
	}
}

func removeScheduleBlockHandler(svc *scheduling.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_block_id")
		if !ok {
			return
		}

		if err := svc.RemoveScheduleBlock(r.Context(), id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listNotificationsHandler(inbox NotificationInbox, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "invalid_user_id")
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		items, err := inbox.ListUnread(r.Context(), userID, limit)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := make([]NotificationResponse, len(items))
		for i, n := range items {
			resp[i] = NotificationResponse{
				ID:        n.ID,
				Kind:      string(n.Kind),
				Message:   n.Message,
				CreatedAt: n.CreatedAt,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseSlot(w http.ResponseWriter, date, at string) (time.Time, scheduling.Clock, bool) {
	d, err := scheduling.ParseDate(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return d, 0, false
	}
	c, err := scheduling.ParseClock(at)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
		return d, 0, false
	}
	return d, c, true
}

// decodeOptional accepts an empty body and leaves v untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
	return false
}

func statusForKind(k scheduling.Kind) int {
	switch k {
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindInvalidInput:
		return http.StatusBadRequest
	case scheduling.KindConflict, scheduling.KindInvalidStateTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var se *scheduling.Error
	if errors.As(err, &se) {
		writeError(w, statusForKind(se.Kind), strings.ToLower(string(se.Code)), se.Message)
		return
	}

	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
