// Package schedulingtest provides in-memory implementations of the
// scheduling service's dependencies for tests.
package schedulingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// MemRepository keeps every table in maps behind one mutex. CreateIfFree,
// RescheduleIfFree and CreateBlock check their conflicts and write in the
// same critical section, which is what the Postgres unique indexes and the
// block exclusion constraint give the real store.
type MemRepository struct {
	mu sync.Mutex

	patients map[uuid.UUID]scheduling.Patient
	doctors  map[uuid.UUID]scheduling.Doctor
	blocks   map[uuid.UUID]scheduling.ScheduleBlock
	appts    map[uuid.UUID]scheduling.Appointment
	history  []scheduling.HistoryEntry
	nextHist int64
}

var _ scheduling.Repository = (*MemRepository)(nil)

func NewMemRepository() *MemRepository {
	return &MemRepository{
		patients: make(map[uuid.UUID]scheduling.Patient),
		doctors:  make(map[uuid.UUID]scheduling.Doctor),
		blocks:   make(map[uuid.UUID]scheduling.ScheduleBlock),
		appts:    make(map[uuid.UUID]scheduling.Appointment),
	}
}

// Seeding

func (r *MemRepository) AddPatient(name string) scheduling.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := scheduling.Patient{ID: uuid.New(), UserID: uuid.New(), Name: name, CreatedAt: time.Now()}
	r.patients[p.ID] = p
	return p
}

func (r *MemRepository) AddDoctor(name string, active bool) scheduling.Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := scheduling.Doctor{ID: uuid.New(), UserID: uuid.New(), Name: name, Active: active, CreatedAt: time.Now()}
	r.doctors[d.ID] = d
	return d
}

// AddBlock stores an active block without any overlap check.
func (r *MemRepository) AddBlock(doctorID uuid.UUID, weekday scheduling.Weekday, start, end scheduling.Clock) scheduling.ScheduleBlock {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := scheduling.ScheduleBlock{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Weekday:   weekday,
		Start:     start,
		End:       end,
		Active:    true,
		CreatedAt: time.Now(),
	}
	r.blocks[b.ID] = b
	return b
}

// PutAppointment stores a as is, bypassing every check.
func (r *MemRepository) PutAppointment(a scheduling.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.appts[a.ID] = a
}

// Appointments returns a snapshot of every stored appointment.
func (r *MemRepository) Appointments() []scheduling.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, a)
	}
	return out
}

// Patients and doctors

func (r *MemRepository) GetPatient(_ context.Context, id uuid.UUID) (*scheduling.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, scheduling.ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemRepository) GetDoctor(_ context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, scheduling.ErrDoctorNotFound
	}
	return &d, nil
}

// Blocks

func (r *MemRepository) GetBlock(_ context.Context, id uuid.UUID) (*scheduling.ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return nil, scheduling.ErrBlockNotFound
	}
	return &b, nil
}

func (r *MemRepository) FindBlocksByDoctorAndWeekday(_ context.Context, doctorID uuid.UUID, weekday scheduling.Weekday) ([]scheduling.ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.ScheduleBlock, 0)
	for _, b := range r.blocks {
		if b.DoctorID == doctorID && b.Weekday == weekday && b.Active {
			out = append(out, b)
		}
	}
	sortBlocks(out)
	return out, nil
}

func (r *MemRepository) ListBlocksByDoctor(_ context.Context, doctorID uuid.UUID) ([]scheduling.ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.ScheduleBlock, 0)
	for _, b := range r.blocks {
		if b.DoctorID == doctorID && b.Active {
			out = append(out, b)
		}
	}
	sortBlocks(out)
	return out, nil
}

func (r *MemRepository) CreateBlock(_ context.Context, b scheduling.ScheduleBlock) (*scheduling.ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Active {
		existing := make([]scheduling.ScheduleBlock, 0, len(r.blocks))
		for _, other := range r.blocks {
			if other.DoctorID == b.DoctorID {
				existing = append(existing, other)
			}
		}
		if scheduling.HasOverlap(existing, b.Weekday, b.Start, b.End, uuid.Nil) {
			return nil, scheduling.ErrScheduleOverlap
		}
	}

	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	r.blocks[b.ID] = b
	return &b, nil
}

func (r *MemRepository) DeactivateBlock(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return scheduling.ErrBlockNotFound
	}
	b.Active = false
	r.blocks[id] = b
	return nil
}

// Appointments

func (r *MemRepository) GetAppointment(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemRepository) FindByDoctorAndDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.Appointment, 0)
	for _, a := range r.appts {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status != scheduling.StatusCancelled {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *MemRepository) FindByDoctorAndSlot(_ context.Context, doctorID uuid.UUID, date time.Time, at scheduling.Clock) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.occupant(func(a scheduling.Appointment) bool { return a.DoctorID == doctorID }, date, at, uuid.Nil); ok {
		return &a, nil
	}
	return nil, scheduling.ErrAppointmentNotFound
}

func (r *MemRepository) FindByPatientAndSlot(_ context.Context, patientID uuid.UUID, date time.Time, at scheduling.Clock) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.occupant(func(a scheduling.Appointment) bool { return a.PatientID == patientID }, date, at, uuid.Nil); ok {
		return &a, nil
	}
	return nil, scheduling.ErrAppointmentNotFound
}

func (r *MemRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.Appointment, error) {
	return r.list(func(a scheduling.Appointment) bool { return a.PatientID == patientID }, limit, offset), nil
}

func (r *MemRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]scheduling.Appointment, error) {
	return r.list(func(a scheduling.Appointment) bool { return a.DoctorID == doctorID }, limit, offset), nil
}

func (r *MemRepository) CreateIfFree(_ context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.slotConflict(req.PatientID, req.DoctorID, req.Date, req.Time, uuid.Nil); err != nil {
		return nil, err
	}

	now := time.Now()
	a := scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
		Status:    scheduling.StatusScheduled,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.appts[a.ID] = a
	return &a, nil
}

func (r *MemRepository) RescheduleIfFree(_ context.Context, id uuid.UUID, from []scheduling.Status, date time.Time, at scheduling.Clock, notes *string) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || !statusIn(a.Status, from) {
		return nil, scheduling.ErrAppointmentNotFound
	}
	if err := r.slotConflict(a.PatientID, a.DoctorID, date, at, id); err != nil {
		return nil, err
	}

	a.Date = date
	a.Time = at
	a.Status = scheduling.StatusRescheduled
	if notes != nil {
		a.Notes = notes
	}
	a.RemindedAt = nil
	a.UpdatedAt = time.Now()
	r.appts[id] = a
	return &a, nil
}

func (r *MemRepository) UpdateStatus(_ context.Context, id uuid.UUID, from []scheduling.Status, to scheduling.Status, notes *string) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || !statusIn(a.Status, from) {
		return nil, scheduling.ErrAppointmentNotFound
	}
	a.Status = to
	if notes != nil {
		a.Notes = notes
	}
	a.UpdatedAt = time.Now()
	r.appts[id] = a
	return &a, nil
}

func (r *MemRepository) FindDueReminders(_ context.Context, from, to time.Time) ([]scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.Appointment, 0)
	for _, a := range r.appts {
		if a.Status.Terminal() || a.RemindedAt != nil {
			continue
		}
		start := a.Date.Add(a.Time.Duration())
		if !start.Before(from) && start.Before(to) {
			out = append(out, a)
		}
	}
	sortAppointments(out, false)
	return out, nil
}

func (r *MemRepository) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	a.RemindedAt = &at
	r.appts[id] = a
	return nil
}

// History

func (r *MemRepository) InsertHistory(_ context.Context, h scheduling.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextHist++
	h.ID = r.nextHist
	if h.ChangedAt.IsZero() {
		h.ChangedAt = time.Now()
	}
	r.history = append(r.history, h)
	return nil
}

func (r *MemRepository) ListHistory(_ context.Context, appointmentID uuid.UUID) ([]scheduling.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]scheduling.HistoryEntry, 0)
	for _, h := range r.history {
		if h.AppointmentID == appointmentID {
			out = append(out, h)
		}
	}
	return out, nil
}

// helpers, called with r.mu held

func (r *MemRepository) occupant(match func(scheduling.Appointment) bool, date time.Time, at scheduling.Clock, exclude uuid.UUID) (scheduling.Appointment, bool) {
	for _, a := range r.appts {
		if a.ID == exclude || a.Status == scheduling.StatusCancelled {
			continue
		}
		if match(a) && a.Date.Equal(date) && a.Time == at {
			return a, true
		}
	}
	return scheduling.Appointment{}, false
}

func (r *MemRepository) slotConflict(patientID, doctorID uuid.UUID, date time.Time, at scheduling.Clock, exclude uuid.UUID) error {
	if _, ok := r.occupant(func(a scheduling.Appointment) bool { return a.DoctorID == doctorID }, date, at, exclude); ok {
		return scheduling.ErrSlotAlreadyTaken
	}
	if _, ok := r.occupant(func(a scheduling.Appointment) bool { return a.PatientID == patientID }, date, at, exclude); ok {
		return scheduling.ErrPatientDoubleBooked
	}
	return nil
}

func (r *MemRepository) list(match func(scheduling.Appointment) bool, limit, offset int) []scheduling.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]scheduling.Appointment, 0)
	for _, a := range r.appts {
		if match(a) {
			all = append(all, a)
		}
	}
	sortAppointments(all, true)

	if offset >= len(all) {
		return []scheduling.Appointment{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func statusIn(s scheduling.Status, set []scheduling.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func sortBlocks(blocks []scheduling.ScheduleBlock) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Weekday != blocks[j].Weekday {
			return blocks[i].Weekday < blocks[j].Weekday
		}
		return blocks[i].Start < blocks[j].Start
	})
}

func sortAppointments(appts []scheduling.Appointment, desc bool) {
	sort.Slice(appts, func(i, j int) bool {
		ti := appts[i].Date.Add(appts[i].Time.Duration())
		tj := appts[j].Date.Add(appts[j].Time.Duration())
		if desc {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})
}
