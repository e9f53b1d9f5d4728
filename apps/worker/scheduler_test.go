package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/tests"
)

func TestScheduler_StartStop(t *testing.T) {
	env := testutil.NewEnv(t)

	t.Run("invalid cron expression", func(t *testing.T) {
		conf := env.Conf.Fees
		conf.OverdueSweepSpec = "every now and then"
		s := newScheduler(conf, env.FeeSvc, env.Logger)
		assert.Error(t, s.Start())
	})

	t.Run("start twice", func(t *testing.T) {
		s := newScheduler(env.Conf.Fees, env.FeeSvc, env.Logger)
		require.NoError(t, s.Start())
		assert.Error(t, s.Start())
		s.Stop()
		s.Stop() // no-op
	})
}

func TestScheduler_jobs(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	cls := env.CreateClass(t, "Grade 4", "1500")
	st := env.CreateStudent(t, "eshe", &cls)
	ch := env.CreateChallan(t, st, "2025-01", fee.StatusPending, "1500")

	defer func() { fee.NowFunc = time.Now }()
	s := newScheduler(env.Conf.Fees, env.FeeSvc, env.Logger)

	// nightly run on the due date itself
	fee.NowFunc = func() time.Time { return time.Date(2025, time.January, 31, 1, 0, 0, 0, time.UTC) }
	s.sweepOverdue()
	got, err := env.FeeSvc.GetChallan(ctx, testutil.SchoolID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPending, got.Status)

	fee.NowFunc = func() time.Time { return time.Date(2025, time.February, 1, 1, 0, 0, 0, time.UTC) }
	s.sweepOverdue()

	got, err = env.FeeSvc.GetChallan(ctx, testutil.SchoolID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusOverdue, got.Status)

	s.remindDefaulters()
	defaulters, err := env.FeeSvc.Defaulters(ctx, testutil.SchoolID)
	require.NoError(t, err)
	if assert.Len(t, defaulters, 1) {
		assert.Equal(t, st.ID, defaulters[0].Student.ID)
	}
}
