package patients

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	for name, req := range map[string]RegisterRequest{
		"missing name":    {Phone: "+628123"},
		"blank name":      {FullName: "   ", Email: "a@b.c"},
		"missing contact": {FullName: "Budi Santoso"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, req.Validate())
		})
	}

	ok := RegisterRequest{FullName: "Budi Santoso", Phone: "+628123456789"}
	assert.NoError(t, ok.Validate())
}

func TestRegisterInsertsPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)

	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "Budi Santoso", "+628123456789", "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	p, err := repo.Register(context.Background(), &RegisterRequest{FullName: "Budi Santoso", Phone: "+628123456789"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.True(t, p.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "full_name", "phone", "email", "is_active", "created_at"}))

	_, err = repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExistsActiveTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.ExistsActiveTx(context.Background(), tx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}
