package core

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

func TestValidateInterval(t *testing.T) {
	require.NoError(t, ValidateInterval(model.IntervalHourly))
	require.NoError(t, ValidateInterval(model.IntervalDaily))
	require.NoError(t, ValidateInterval(model.IntervalWeekly))
	require.NoError(t, ValidateInterval(model.IntervalMonthly))
	require.NoError(t, ValidateInterval("0 3 * * *"))
	require.NoError(t, ValidateInterval("*/15 * * * *"))

	err := ValidateInterval("fortnightly")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
}

func testSchedule() *model.Schedule {
	now := time.Now()
	return &model.Schedule{
		ID:            "sched-1",
		Name:          "nightly-orders",
		TargetID:      "t1",
		DestinationID: "d1",
		Interval:      model.IntervalDaily,
		RetentionDays: 14,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestScheduleService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	// Both reference checks report an active entity.
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, svc.Create(ctx, testSchedule()))
	db.AssertExpectations(t)
}

func TestScheduleService_Create_DanglingTarget(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return pgx.ErrNoRows
		}})

	err := svc.Create(ctx, testSchedule())
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
	assert.Contains(t, err.Error(), "missing target")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleService_Create_InactiveTarget(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = false
			return nil
		}})

	err := svc.Create(ctx, testSchedule())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactive target")
}

func TestScheduleService_Create_LocalDestinationImplicit(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	sched := testSchedule()
	sched.DestinationID = model.LocalDestinationID

	// Only the target reference is checked; local needs no row.
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}}).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, svc.Create(ctx, sched))
	db.AssertExpectations(t)
}

func TestScheduleService_Create_BadInterval(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)

	sched := testSchedule()
	sched.Interval = "whenever"

	err := svc.Create(context.Background(), sched)
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
}

func TestScheduleService_SetLastRun(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, svc.SetLastRun(ctx, "sched-1", time.Now()))
	db.AssertExpectations(t)
}

func TestScheduleService_ListActive(t *testing.T) {
	db := &mockDB{}
	svc := NewScheduleService(db)
	ctx := context.Background()

	now := time.Now()
	last := now.Add(-25 * time.Hour)
	rows := newMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "sched-1"
		*(dest[1].(*string)) = "nightly-orders"
		*(dest[2].(*string)) = "t1"
		*(dest[3].(*string)) = "d1"
		*(dest[4].(*string)) = model.IntervalDaily
		*(dest[5].(*int)) = 14
		*(dest[6].(*bool)) = true
		*(dest[7].(**time.Time)) = &last
		*(dest[8].(*time.Time)) = now
		*(dest[9].(*time.Time)) = now
		return nil
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	schedules, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, model.IntervalDaily, schedules[0].Interval)
	require.NotNil(t, schedules[0].LastRunAt)
}
