package core

import (
	"context"
	"errors"
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

func testTarget() *model.Target {
	now := time.Now()
	return &model.Target{
		ID:        "test-target-1",
		Name:      "orders-db",
		Engine:    model.EnginePostgres,
		Host:      "db.internal",
		Port:      5432,
		Database:  "orders",
		Username:  "backup",
		SecretRef: "env:ORDERS_DB_PASSWORD",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTargetService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = false
			return nil
		}})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, testTarget())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTargetService_Create_UnknownEngine(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)

	target := testTarget()
	target.Engine = "relational-oracle"

	err := svc.Create(context.Background(), target)
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestTargetService_Create_DuplicateName(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}})

	err := svc.Create(ctx, testTarget())
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
	assert.Contains(t, err.Error(), "already in use")
}

func TestTargetService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return pgx.ErrNoRows
		}})

	_, err := svc.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
}

func TestTargetService_Update_EngineImmutable(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	existing := testTarget()
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = existing.ID
			*(dest[1].(*string)) = existing.Name
			*(dest[2].(*string)) = existing.Engine
			*(dest[3].(*string)) = existing.Host
			*(dest[4].(*int)) = existing.Port
			*(dest[5].(*string)) = existing.Database
			*(dest[6].(*string)) = existing.Username
			*(dest[7].(*string)) = existing.SecretRef
			*(dest[8].(*bool)) = existing.Active
			*(dest[9].(*time.Time)) = existing.CreatedAt
			*(dest[10].(*time.Time)) = existing.UpdatedAt
			return nil
		}})

	updated := testTarget()
	updated.Engine = model.EngineMySQL

	err := svc.Update(ctx, updated)
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
	assert.Contains(t, err.Error(), "immutable")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestTargetService_List(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	now := time.Now()
	rows := newMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "t1"
		*(dest[1].(*string)) = "orders-db"
		*(dest[2].(*string)) = model.EnginePostgres
		*(dest[3].(*string)) = "db.internal"
		*(dest[4].(*int)) = 5432
		*(dest[5].(*string)) = "orders"
		*(dest[6].(*string)) = "backup"
		*(dest[7].(*string)) = ""
		*(dest[8].(*bool)) = true
		*(dest[9].(*time.Time)) = now
		*(dest[10].(*time.Time)) = now
		return nil
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	targets, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "orders-db", targets[0].Name)
}

func TestTargetService_Delete_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := svc.Delete(ctx, "missing")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
}

func TestTargetService_Create_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewTargetService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return errors.New("db down")
		}})

	err := svc.Create(ctx, testTarget())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check target name")
}
