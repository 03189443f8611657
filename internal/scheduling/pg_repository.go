package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"

	doctorSlotConstraint   = "appointments_doctor_slot_uniq"
	patientSlotConstraint  = "appointments_patient_slot_uniq"
	blockOverlapConstraint = "schedule_blocks_no_overlap"
)

// conflictConstraints maps the constraints that guard scheduling rules to
// the error callers see when one of them rejects a write.
var conflictConstraints = map[string]struct {
	code string
	err  *Error
}{
	doctorSlotConstraint:   {pgUniqueViolation, ErrSlotAlreadyTaken},
	patientSlotConstraint:  {pgUniqueViolation, ErrPatientDoubleBooked},
	blockOverlapConstraint: {pgExclusionViolation, ErrScheduleOverlap},
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

const appointmentColumns = `id, patient_id, doctor_id, appt_date, appt_time, reason, status, notes, created_at, updated_at, reminded_at`

const blockColumns = `id, doctor_id, weekday, start_time, end_time, active, created_at`

func pgClock(c Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Duration().Microseconds(), Valid: true}
}

func clockFromPg(t pgtype.Time) Clock {
	return Clock(time.Duration(t.Microseconds) * time.Microsecond / time.Minute)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// mapConflict turns a violation of one of the scheduling constraints into
// the matching scheduling error. Other errors are returned unchanged.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	c, ok := conflictConstraints[pgErr.ConstraintName]
	if !ok || c.code != pgErr.Code {
		return err
	}
	return c.err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.SpecialtyID, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanBlock(row pgx.Row) (*ScheduleBlock, error) {
	var (
		b          ScheduleBlock
		weekday    int16
		start, end pgtype.Time
	)
	err := row.Scan(&b.ID, &b.DoctorID, &weekday, &start, &end, &b.Active, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b.Weekday = Weekday(weekday)
	b.Start = clockFromPg(start)
	b.End = clockFromPg(end)
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		at     pgtype.Time
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&at,
		&a.Reason,
		&status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.RemindedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Time = clockFromPg(at)
	a.Status = Status(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectBlocks(rows pgx.Rows) ([]ScheduleBlock, error) {
	defer rows.Close()

	result := make([]ScheduleBlock, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Patients and doctors

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, email, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, specialty_id, active, created_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// Schedule blocks

func (r *PgRepository) GetBlock(ctx context.Context, id uuid.UUID) (*ScheduleBlock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM schedule_blocks
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) FindBlocksByDoctorAndWeekday(ctx context.Context, doctorID uuid.UUID, weekday Weekday) ([]ScheduleBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM schedule_blocks
		WHERE doctor_id = $1 AND weekday = $2 AND active
		ORDER BY start_time
	`, doctorID, int16(weekday))
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) ListBlocksByDoctor(ctx context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM schedule_blocks
		WHERE doctor_id = $1 AND active
		ORDER BY weekday, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) CreateBlock(ctx context.Context, b ScheduleBlock) (*ScheduleBlock, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, doctor_id, weekday, start_time, end_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+blockColumns,
		uuid.New(), b.DoctorID, int16(b.Weekday), pgClock(b.Start), pgClock(b.End), b.Active)
	created, err := scanBlock(row)
	if err != nil {
		return nil, mapConflict(err)
	}
	return created, nil
}

func (r *PgRepository) DeactivateBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE schedule_blocks SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate schedule block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2 AND status <> 'CANCELLED'
		ORDER BY appt_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindByDoctorAndSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2 AND appt_time = $3 AND status <> 'CANCELLED'
	`, doctorID, date, pgClock(at))
	return scanAppointment(row)
}

func (r *PgRepository) FindByPatientAndSlot(ctx context.Context, patientID uuid.UUID, date time.Time, at Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND appt_date = $2 AND appt_time = $3 AND status <> 'CANCELLED'
	`, patientID, date, pgClock(at))
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appt_date DESC, appt_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appt_date DESC, appt_time DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// CreateIfFree relies on the partial unique indexes over non-cancelled rows;
// a concurrent insert for the same slot fails here rather than slipping past
// an earlier read.
func (r *PgRepository) CreateIfFree(ctx context.Context, req BookingRequest) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appt_date, appt_time, reason, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'SCHEDULED', $7, now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), req.PatientID, req.DoctorID, req.Date, pgClock(req.Time), req.Reason, req.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, mapConflict(err)
	}
	return appt, nil
}

func (r *PgRepository) RescheduleIfFree(ctx context.Context, id uuid.UUID, from []Status, date time.Time, at Clock, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appt_date = $2,
		    appt_time = $3,
		    status = 'RESCHEDULED',
		    notes = COALESCE($4, notes),
		    reminded_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($5)
		RETURNING `+appointmentColumns,
		id, date, pgClock(at), notes, statusStrings(from))

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, mapConflict(err)
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = COALESCE($3, notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		RETURNING `+appointmentColumns,
		id, string(to), notes, statusStrings(from))
	return scanAppointment(row)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($3)
		  AND reminded_at IS NULL
		  AND appt_date + appt_time >= $1
		  AND appt_date + appt_time < $2
		ORDER BY appt_date, appt_time
	`, from, to, statusStrings(activeStatuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE appointments SET reminded_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

// History

func (r *PgRepository) InsertHistory(ctx context.Context, h HistoryEntry) error {
	var prev *string
	if h.PreviousStatus != nil {
		p := string(*h.PreviousStatus)
		prev = &p
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, previous_status, new_status, changed_at, description)
		VALUES ($1, $2, $3, COALESCE($4, now()), $5)
	`, h.AppointmentID, prev, string(h.NewStatus), nullableTime(h.ChangedAt), h.Description)
	if err != nil {
		return fmt.Errorf("insert appointment history: %w", err)
	}
	return nil
}

func (r *PgRepository) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, previous_status, new_status, changed_at, description
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY changed_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]HistoryEntry, 0)
	for rows.Next() {
		var (
			h    HistoryEntry
			prev *string
			next string
		)
		if err := rows.Scan(&h.ID, &h.AppointmentID, &prev, &next, &h.ChangedAt, &h.Description); err != nil {
			return nil, err
		}
		if prev != nil {
			p := Status(*prev)
			h.PreviousStatus = &p
		}
		h.NewStatus = Status(next)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
