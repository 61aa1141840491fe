package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	actor uuid.UUID
	calls int
	err   error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, actor uuid.UUID) ([]uuid.UUID, error) {
	f.calls++
	f.actor = actor
	if f.err != nil {
		return nil, f.err
	}
	return []uuid.UUID{uuid.New()}, nil
}

type fakeStalls struct {
	after time.Duration
	calls int
}

func (f *fakeStalls) ReportStalled(_ context.Context, after time.Duration) (int, error) {
	f.calls++
	f.after = after
	return 2, nil
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewRegistersConfiguredJobs(t *testing.T) {
	s, err := New(Config{BudgetExpiryCron: "5 0 * * *", StalledStageCron: "0 7 * * 1-5"}, &fakeExpirer{}, &fakeStalls{}, quiet())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(Config{BudgetExpiryCron: "5 0 * * *"}, &fakeExpirer{}, &fakeStalls{}, quiet())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Config{BudgetExpiryCron: "every day"}, &fakeExpirer{}, nil, quiet())
	assert.Error(t, err)
}

func TestJobsPassSystemActorAndThreshold(t *testing.T) {
	exp, st := &fakeExpirer{}, &fakeStalls{}
	s, err := New(Config{StalledStageAfter: 72 * time.Hour}, exp, st, quiet())
	require.NoError(t, err)

	require.NoError(t, s.ExpireBudgets(context.Background()))
	require.NoError(t, s.ReportStalled(context.Background()))

	assert.Equal(t, SystemActor, exp.actor)
	assert.Equal(t, 72*time.Hour, st.after)
}

func TestExpiryErrorIsReturned(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	s, err := New(Config{}, exp, nil, quiet())
	require.NoError(t, err)
	assert.EqualError(t, s.ExpireBudgets(context.Background()), "db down")
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{BudgetExpiryCron: "@every 1h"}, &fakeExpirer{}, nil, quiet())
	require.NoError(t, err)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
