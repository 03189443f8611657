package scheduling_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/scheduling/schedulingtest"
)

func TestAddScheduleBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	afternoon, err := f.svc.AddScheduleBlock(ctx, f.doctor.ID, scheduling.Monday, clock("14:00"), clock("18:00"))
	require.NoError(t, err)
	assert.True(t, afternoon.Active)
	assert.Equal(t, scheduling.Monday, afternoon.Weekday)

	// Touching the morning block at 12:00 is allowed.
	_, err = f.svc.AddScheduleBlock(ctx, f.doctor.ID, scheduling.Monday, clock("12:00"), clock("13:00"))
	require.NoError(t, err)

	_, err = f.svc.AddScheduleBlock(ctx, f.doctor.ID, scheduling.Monday, clock("17:00"), clock("19:00"))
	assert.ErrorIs(t, err, scheduling.ErrScheduleOverlap)

	blocks, err := f.svc.ListScheduleBlocks(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
}

func TestAddScheduleBlockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		doctorID   uuid.UUID
		weekday    scheduling.Weekday
		start, end string
		want       *scheduling.Error
	}{
		{"weekday zero", f.doctor.ID, 0, "08:00", "09:00", scheduling.ErrInvalidWeekday},
		{"weekday eight", f.doctor.ID, 8, "08:00", "09:00", scheduling.ErrInvalidWeekday},
		{"end before start", f.doctor.ID, scheduling.Tuesday, "10:00", "09:00", scheduling.ErrInvalidTimeRange},
		{"empty", f.doctor.ID, scheduling.Tuesday, "10:00", "10:00", scheduling.ErrInvalidTimeRange},
		{"too early", f.doctor.ID, scheduling.Tuesday, "05:30", "09:00", scheduling.ErrInvalidTimeRange},
		{"too late", f.doctor.ID, scheduling.Tuesday, "20:00", "22:30", scheduling.ErrInvalidTimeRange},
		{"off grid", f.doctor.ID, scheduling.Tuesday, "08:10", "09:00", scheduling.ErrInvalidTimeRange},
		{"unknown doctor", uuid.New(), scheduling.Tuesday, "08:00", "09:00", scheduling.ErrDoctorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddScheduleBlock(ctx, tt.doctorID, tt.weekday, clock(tt.start), clock(tt.end))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRemoveScheduleBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.AddScheduleBlock(ctx, f.doctor.ID, scheduling.Wednesday, clock("08:00"), clock("10:00"))
	require.NoError(t, err)

	wednesday := nextMonday.AddDate(0, 0, 2)
	appt := f.book(t, wednesday, clock("08:30"))

	require.NoError(t, f.svc.RemoveScheduleBlock(ctx, b.ID))
	require.NoError(t, f.svc.RemoveScheduleBlock(ctx, b.ID))

	slots, err := f.svc.AvailableSlots(ctx, f.doctor.ID, wednesday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// Existing bookings survive the block removal.
	got, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusScheduled, got.Status)

	_, err = f.svc.CreateAppointment(ctx, f.request(wednesday, clock("09:00")))
	assert.ErrorIs(t, err, scheduling.ErrNoScheduleForDay)

	// The freed interval can be reused.
	_, err = f.svc.AddScheduleBlock(ctx, f.doctor.ID, scheduling.Wednesday, clock("08:00"), clock("10:00"))
	assert.NoError(t, err)

	assert.ErrorIs(t, f.svc.RemoveScheduleBlock(ctx, uuid.New()), scheduling.ErrBlockNotFound)
}

func TestProvisionDefaultSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.repo.AddDoctor("Dr. Marta Nunes", true)

	created, err := f.svc.ProvisionDefaultSchedule(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Len(t, created, 10)

	for _, b := range created {
		assert.True(t, b.Weekday >= scheduling.Monday && b.Weekday <= scheduling.Friday)
	}

	again, err := f.svc.ProvisionDefaultSchedule(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	friday := nextMonday.AddDate(0, 0, 4)
	slots, err := f.svc.AvailableSlots(ctx, doctor.ID, friday)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
	assert.Equal(t, clock("08:00"), slots[0])
	assert.Equal(t, clock("17:30"), slots[len(slots)-1])

	saturday := nextMonday.AddDate(0, 0, 5)
	slots, err = f.svc.AvailableSlots(ctx, doctor.ID, saturday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestProvisionDefaultScheduleSkipsOverlaps(t *testing.T) {
	f := newFixture(t)

	// The fixture doctor already works Monday 08:00-12:00.
	created, err := f.svc.ProvisionDefaultSchedule(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Len(t, created, 9)
}

// readBarrierRepo holds every reader of a weekday's blocks until all
// expected readers have arrived, so every caller passes the overlap check
// before any of them writes.
type readBarrierRepo struct {
	*schedulingtest.MemRepository
	arrived sync.WaitGroup
}

func (r *readBarrierRepo) FindBlocksByDoctorAndWeekday(ctx context.Context, doctorID uuid.UUID, weekday scheduling.Weekday) ([]scheduling.ScheduleBlock, error) {
	blocks, err := r.MemRepository.FindBlocksByDoctorAndWeekday(ctx, doctorID, weekday)
	r.arrived.Done()
	r.arrived.Wait()
	return blocks, err
}

func TestAddScheduleBlockConcurrentWithoutLock(t *testing.T) {
	// Every pair of these windows overlaps.
	windows := [][2]string{
		{"08:00", "12:00"},
		{"10:00", "14:00"},
		{"09:00", "11:00"},
		{"10:00", "11:00"},
	}

	repo := &readBarrierRepo{MemRepository: schedulingtest.NewMemRepository()}
	repo.arrived.Add(len(windows))
	doctor := repo.AddDoctor("Dr. Carlos Lima", true)

	svc := scheduling.NewService(repo, downLocker{}, nil, config.Config{Location: time.UTC}, nil,
		scheduling.WithClock(func() time.Time { return testNow }))

	errs := make([]error, len(windows))
	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, start, end string) {
			defer wg.Done()
			_, errs[i] = svc.AddScheduleBlock(context.Background(), doctor.ID, scheduling.Tuesday, clock(start), clock(end))
		}(i, w[0], w[1])
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, scheduling.ErrScheduleOverlap)
	}
	assert.Equal(t, 1, created)

	blocks, err := repo.MemRepository.FindBlocksByDoctorAndWeekday(context.Background(), doctor.ID, scheduling.Tuesday)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}
