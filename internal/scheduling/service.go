package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, log *zap.Logger, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return Date(s.now(), s.cfg.Location)
}

// CreateAppointment validates a booking request and reserves the slot.
// The occupancy checks and the insert run under a per-slot lock, and the
// insert itself is guarded by the store's uniqueness constraint, so two
// concurrent requests for one slot never both succeed.
func (s *Service) CreateAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.createAppointment(ctx, req)
	s.metrics.ObserveBooking(resultLabel(err))
	return appt, err
}

func (s *Service) createAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	req.Date = Date(req.Date, nil)

	if err := validateReason(req.Reason); err != nil {
		return nil, err
	}
	if err := validateDate(req.Date, s.today()); err != nil {
		return nil, err
	}
	if err := validateTime(req.Time); err != nil {
		return nil, err
	}

	patient, doctor, err := s.checkParticipants(ctx, req.PatientID, req.DoctorID)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.withSlotLock(ctx, slotKey(req.DoctorID, req.Date, req.Time), func(lockCtx context.Context) error {
		if err := s.checkSlot(lockCtx, req.PatientID, req.DoctorID, req.Date, req.Time, uuid.Nil); err != nil {
			return err
		}
		appt, err := s.repo.CreateIfFree(lockCtx, req)
		if err != nil {
			return passOrWrap(err, "create appointment")
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, created.ID, nil, StatusScheduled, "appointment booked")

	when := describeSlot(created.Date, created.Time)
	s.notify(ctx, patient.UserID, NotifyConfirmation, "Appointment booked for "+when)
	s.notify(ctx, doctor.UserID, NotifyInfo, "New appointment booked for "+when)

	s.log.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.String("slot", when),
	)
	return created, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, passOrWrap(err, "get appointment")
	}
	return appt, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListAppointmentsByDoctor retrieves appointments for a specific doctor
func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

// AppointmentHistory returns the status changes of an appointment, oldest first.
func (s *Service) AppointmentHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// SendReminders notifies patients of active appointments starting within
// the configured lead time that have not been reminded yet. It is intended
// to be called by the worker periodically.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now().In(s.cfg.Location)
	from := wallClock(now)
	to := wallClock(now.Add(s.cfg.ReminderLead))

	due, err := s.repo.FindDueReminders(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, appt := range due {
		patient, err := s.repo.GetPatient(ctx, appt.PatientID)
		if err != nil {
			s.log.Warn("reminder skipped, patient lookup failed",
				zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		s.notify(ctx, patient.UserID, NotifyReminder, "Reminder: appointment on "+describeSlot(appt.Date, appt.Time))
		if err := s.repo.MarkReminded(ctx, appt.ID, s.now()); err != nil {
			s.log.Warn("failed to mark appointment as reminded",
				zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		s.metrics.ObserveReminder()
		sent++
	}
	return sent, nil
}

func (s *Service) withSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithSlotLock(ctx, key, fn)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBusy
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// The unique indexes still reject a second booking of the slot.
		s.log.Warn("slot lock unavailable, continuing without it",
			zap.String("key", key), zap.Error(err))
		return fn(ctx)
	}
	return err
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, kind NotificationKind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, message); err != nil {
		s.metrics.ObserveNotificationFailure()
		s.log.Warn("failed to deliver notification",
			zap.String("user_id", userID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) recordHistory(ctx context.Context, appointmentID uuid.UUID, prev *Status, next Status, description string) {
	h := HistoryEntry{
		AppointmentID:  appointmentID,
		PreviousStatus: prev,
		NewStatus:      next,
		ChangedAt:      s.now(),
		Description:    description,
	}
	if err := s.repo.InsertHistory(ctx, h); err != nil {
		s.log.Warn("failed to insert history entry",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("status", string(next)),
			zap.Error(err),
		)
	}
}

// passOrWrap returns scheduling errors unchanged and wraps anything else.
func passOrWrap(err error, op string) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func describeSlot(date time.Time, at Clock) string {
	return FormatDate(date) + " at " + at.String()
}

// wallClock keeps the local wall time of t but labels it UTC, matching how
// appointment dates and times are stored.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
