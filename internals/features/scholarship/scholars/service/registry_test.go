package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/databases/testdb"
	"beasiswaku_backend/internals/features/scholarship/scholars/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

func TestEnrollIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewGormRegistry(testdb.Open(t))
	e := Enrollment{
		ApplicationID:    uuid.New(),
		StudentID:        uuid.New(),
		SchoolID:         uuid.New(),
		AcademicPeriodID: uuid.New(),
		Amount:           3000000,
	}

	require.NoError(t, r.Enroll(ctx, e))
	require.NoError(t, r.Enroll(ctx, e))

	var n int64
	require.NoError(t, r.DB.Model(&model.ScholarModel{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	got, err := r.GetByApplication(ctx, e.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000000), got.ScholarAwardedAmount)

	_, err = r.GetByApplication(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Error(t, r.Enroll(ctx, Enrollment{}))
}
