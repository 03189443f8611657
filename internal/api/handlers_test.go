package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/scheduling/schedulingtest"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler http.Handler
	repo    *schedulingtest.MemRepository
	patient scheduling.Patient
	doctor  scheduling.Doctor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := schedulingtest.NewMemRepository()
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(repo, schedulingtest.NewLocalLocker(), &schedulingtest.RecordingNotifier{},
		config.Config{Location: time.UTC}, nil,
		scheduling.WithClock(func() time.Time { return now }))

	ts := &testServer{
		repo:    repo,
		patient: repo.AddPatient("Ana Souza"),
		doctor:  repo.AddDoctor("Dr. Carlos Lima", true),
	}
	repo.AddBlock(ts.doctor.ID, scheduling.Monday, scheduling.NewClock(8, 0), scheduling.NewClock(12, 0))

	ts.handler = NewRouter(RouterConfig{
		Service: svc,
		PgPool:  fakePinger{},
		Metrics: metrics.NewCollector("clinic"),
		Env:     "test",
		Version: "v0.0.0-test",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) booking(date, at string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  ts.doctor.ID.String(),
		Date:      date,
		Time:      at,
		Reason:    "Persistent cough for two weeks",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", ts.booking("2025-01-13", "08:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "2025-01-13", appt.Date)
	assert.Equal(t, "08:00", appt.Time)
	assert.Equal(t, "SCHEDULED", appt.Status)

	other := ts.repo.AddPatient("Bruno Costa")
	req := ts.booking("2025-01-13", "08:00")
	req.PatientID = other.ID.String()
	rec = ts.do(t, http.MethodPost, "/appointments", req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_taken", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appt.ID, decode[AppointmentResponse](t, rec).ID)
}

func TestCreateAppointmentEndpointErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(*CreateAppointmentRequest)
		status int
		code   string
	}{
		{"bad patient id", func(r *CreateAppointmentRequest) { r.PatientID = "nope" }, http.StatusBadRequest, "invalid_patient_id"},
		{"bad date format", func(r *CreateAppointmentRequest) { r.Date = "13/01/2025" }, http.StatusBadRequest, "invalid_date"},
		{"bad time format", func(r *CreateAppointmentRequest) { r.Time = "8am" }, http.StatusBadRequest, "invalid_time"},
		{"off grid", func(r *CreateAppointmentRequest) { r.Time = "08:15" }, http.StatusBadRequest, "invalid_time"},
		{"short reason", func(r *CreateAppointmentRequest) { r.Reason = "flu" }, http.StatusBadRequest, "invalid_reason"},
		{"before hours", func(r *CreateAppointmentRequest) { r.Time = "07:30" }, http.StatusConflict, "outside_working_hours"},
		{"day off", func(r *CreateAppointmentRequest) { r.Date = "2025-01-14" }, http.StatusConflict, "no_schedule_for_day"},
		{"too far", func(r *CreateAppointmentRequest) { r.Date = "2025-07-25" }, http.StatusBadRequest, "invalid_date"},
		{"unknown doctor", func(r *CreateAppointmentRequest) { r.DoctorID = uuid.NewString() }, http.StatusNotFound, "doctor_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ts.booking("2025-01-13", "08:00")
			tt.mutate(&req)

			rec := ts.do(t, http.MethodPost, "/appointments", req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", ts.booking("2025-01-13", "08:00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[AppointmentResponse](t, rec).ID.String()

	rec = ts.do(t, http.MethodPost, "/appointments/"+id+"/reschedule", RescheduleRequest{Date: "2025-01-20", Time: "10:30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "RESCHEDULED", moved.Status)
	assert.Equal(t, "2025-01-20", moved.Date)

	// Cancel accepts an empty body.
	req := httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/cancel", nil)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[AppointmentResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/appointments/"+id+"/reschedule", RescheduleRequest{Date: "2025-01-20", Time: "11:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cannot_reschedule", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/appointments/"+id+"/attend", AttendRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state_for_attend", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/appointments/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]HistoryEntryResponse](t, rec)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].PreviousStatus)
	assert.Equal(t, "CANCELLED", history[2].NewStatus)
}

func TestAttendEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", ts.booking("2025-01-13", "09:00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[AppointmentResponse](t, rec).ID.String()

	notes := "prescribed rest"
	rec = ts.do(t, http.MethodPost, "/appointments/"+id+"/attend", AttendRequest{Notes: &notes})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "ATTENDED", got.Status)
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)
}

func TestGetAppointmentEndpointErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_appointment_id", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	for _, at := range []string{"08:00", "08:30", "09:00"} {
		rec := ts.do(t, http.MethodPost, "/appointments", ts.booking("2025-01-13", at))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/appointments?patient_id="+ts.patient.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 3)

	rec = ts.do(t, http.MethodGet, "/appointments?doctor_id="+ts.doctor.ID.String()+"&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]AppointmentResponse](t, rec)
	require.Len(t, page, 2)
	assert.Equal(t, "09:00", page[0].Time)

	rec = ts.do(t, http.MethodGet, "/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_filter", decode[ErrorResponse](t, rec).Error)
}

func TestAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", ts.booking("2025-01-13", "08:30"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/availability?date=2025-01-13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, []string{"08:00", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, resp.Slots)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/availability?date=2025-01-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AvailabilityResponse](t, rec).Slots)
	assert.Contains(t, rec.Body.String(), `"slots":[]`)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/availability", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleBlockEndpoints(t *testing.T) {
	ts := newTestServer(t)
	base := "/doctors/" + ts.doctor.ID.String() + "/schedule-blocks"

	rec := ts.do(t, http.MethodPost, base, AddScheduleBlockRequest{Weekday: 2, Start: "09:00", End: "13:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ScheduleBlockResponse](t, rec)
	assert.Equal(t, "Tuesday", created.Day)

	rec = ts.do(t, http.MethodPost, base, AddScheduleBlockRequest{Weekday: 2, Start: "12:00", End: "14:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "schedule_overlap", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, base, AddScheduleBlockRequest{Weekday: 9, Start: "09:00", End: "10:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_weekday", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, base+"/default", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	// Monday morning and Tuesday morning already exist.
	assert.Len(t, decode[[]ScheduleBlockResponse](t, rec), 8)

	rec = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScheduleBlockResponse](t, rec), 10)

	rec = ts.do(t, http.MethodDelete, "/schedule-blocks/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/schedule-blocks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/schedule-blocks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	newHandler := func(pg Pinger) http.Handler {
		return NewRouter(RouterConfig{PgPool: pg, Redis: rdb, Env: "test", Version: "v1"})
	}

	rec := httptest.NewRecorder()
	newHandler(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", decode[LivenessResponse](t, rec).Version)

	rec = httptest.NewRecorder()
	newHandler(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["redis"])

	rec = httptest.NewRecorder()
	newHandler(fakePinger{err: errors.New("connection refused")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "down", decode[ReadinessResponse](t, rec).Dependencies["postgres"])

	mr.Close()
	rec = httptest.NewRecorder()
	newHandler(fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[ReadinessResponse](t, rec).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "clinic_http_requests_total")
	assert.Contains(t, body, `route="/appointments/{id}"`)
}

type fakeInbox struct {
	items    []scheduling.Notification
	err      error
	gotUser  uuid.UUID
	gotLimit int
}

func (f *fakeInbox) ListUnread(_ context.Context, userID uuid.UUID, limit int) ([]scheduling.Notification, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.items, f.err
}

func TestNotificationsEndpoint(t *testing.T) {
	userID := uuid.New()
	sentAt := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	inbox := &fakeInbox{items: []scheduling.Notification{
		{ID: uuid.New(), UserID: userID, Kind: scheduling.NotifyConfirmation, Message: "Appointment booked for 2025-01-13 at 08:00", CreatedAt: sentAt},
	}}
	handler := NewRouter(RouterConfig{PgPool: fakePinger{}, Inbox: inbox})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/users/" + userID.String() + "/notifications")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]NotificationResponse](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "CONFIRMATION", got[0].Kind)
	assert.Equal(t, sentAt, got[0].CreatedAt)
	assert.Equal(t, userID, inbox.gotUser)
	assert.Equal(t, 20, inbox.gotLimit)

	get("/users/" + userID.String() + "/notifications?limit=5")
	assert.Equal(t, 5, inbox.gotLimit)
	get("/users/" + userID.String() + "/notifications?limit=500")
	assert.Equal(t, 20, inbox.gotLimit)

	rec = get("/users/not-a-uuid/notifications")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user_id", decode[ErrorResponse](t, rec).Error)

	inbox.err = errors.New("connection reset")
	rec = get("/users/" + userID.String() + "/notifications")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode[ErrorResponse](t, rec).Error)
}

func TestNotificationsEndpointWithoutInbox(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/users/"+uuid.NewString()+"/notifications", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
