package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/scheduling/schedulingtest"
)

// Monday 6 January 2025, 09:00 UTC.
var testNow = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// nextMonday is the Monday after testNow.
var nextMonday = time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)

const validReason = "Annual check-up and blood pressure review"

type fixture struct {
	repo     *schedulingtest.MemRepository
	notifier *schedulingtest.RecordingNotifier
	metrics  *metrics.Collector
	svc      *scheduling.Service
	patient  scheduling.Patient
	doctor   scheduling.Doctor
}

// newFixture returns a service with one patient and one active doctor who
// works Mondays 08:00-12:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, testNow)
}

// newFixtureAt is newFixture with the service clock fixed at now.
func newFixtureAt(t *testing.T, now time.Time) *fixture {
	t.Helper()

	repo := schedulingtest.NewMemRepository()
	notifier := &schedulingtest.RecordingNotifier{}
	m := metrics.NewCollector("test")

	cfg := config.Config{Location: time.UTC, ReminderLead: 24 * time.Hour}
	svc := scheduling.NewService(repo, schedulingtest.NewLocalLocker(), notifier, cfg, nil,
		scheduling.WithClock(func() time.Time { return now }),
		scheduling.WithMetrics(m),
	)

	f := &fixture{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		svc:      svc,
		patient:  repo.AddPatient("Ana Souza"),
		doctor:   repo.AddDoctor("Dr. Carlos Lima", true),
	}
	repo.AddBlock(f.doctor.ID, scheduling.Monday, scheduling.NewClock(8, 0), scheduling.NewClock(12, 0))
	return f
}

func (f *fixture) request(date time.Time, at scheduling.Clock) scheduling.BookingRequest {
	return scheduling.BookingRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
		Date:      date,
		Time:      at,
		Reason:    validReason,
	}
}

func (f *fixture) book(t *testing.T, date time.Time, at scheduling.Clock) *scheduling.Appointment {
	t.Helper()

	appt, err := f.svc.CreateAppointment(context.Background(), f.request(date, at))
	if err != nil {
		t.Fatalf("book %s %s: %v", scheduling.FormatDate(date), at, err)
	}
	return appt
}

func strPtr(s string) *string { return &s }
