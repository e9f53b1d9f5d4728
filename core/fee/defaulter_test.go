package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/services/email"
	"github.com/trezcool/masomofees/tests"
)

func TestService_SweepOverdue(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	set := setupChallans(t, env) // pending 2025-03 & 2025-04

	n, err := env.FeeSvc.SweepOverdue(ctx, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, fee.StatusOverdue, getChallan(t, env, set.pending1.ID).Status)
	assert.Equal(t, fee.StatusPending, getChallan(t, env, set.pending2.ID).Status)
	assert.Equal(t, set.paid, getChallan(t, env, set.paid.ID))
	assert.Equal(t, set.cancelled, getChallan(t, env, set.cancelled.ID))

	// not overdue at any time of its own due date
	for _, at := range []time.Time{
		time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 30, 1, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 30, 23, 59, 59, 0, time.UTC),
	} {
		n, err = env.FeeSvc.SweepOverdue(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, 0, n, at)
		assert.Equal(t, fee.StatusPending, getChallan(t, env, set.pending2.ID).Status)
	}

	n, err = env.FeeSvc.SweepOverdue(ctx, time.Date(2025, time.May, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, fee.StatusOverdue, getChallan(t, env, set.pending2.ID).Status)
}

func TestService_Defaulters(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()
	cls := env.CreateClass(t, "Grade 1", "1000")

	big := env.CreateStudent(t, "big", &cls)
	small := env.CreateStudent(t, "small", &cls)
	noEmail := env.CreateStudent(t, "noemail", &cls, func(st *fee.Student) { st.GuardianEmail = "" })
	good := env.CreateStudent(t, "good", &cls)

	env.CreateChallan(t, big, "2025-01", fee.StatusOverdue, "1000")
	env.CreateChallan(t, big, "2025-02", fee.StatusOverdue, "1000")
	partial := env.CreateChallan(t, small, "2025-02", fee.StatusOverdue, "1000")
	env.CreateChallan(t, noEmail, "2025-02", fee.StatusOverdue, "500")
	env.CreateChallan(t, good, "2025-02", fee.StatusPaid, "1000")
	env.CreateChallan(t, good, "2025-03", fee.StatusPending, "1000")

	_, err := env.FeeSvc.RecordPayment(ctx, op, partial.ID, fee.PaymentInput{Amount: testutil.D("300"), Method: fee.MethodCash})
	require.NoError(t, err)

	defaulters, err := env.FeeSvc.Defaulters(ctx, testutil.SchoolID)
	require.NoError(t, err)
	require.Len(t, defaulters, 3)

	assert.Equal(t, big.ID, defaulters[0].Student.ID)
	assert.Equal(t, 2, defaulters[0].OverdueCount)
	testutil.AssertDecimal(t, "2000", defaulters[0].OverdueAmount)
	assert.Equal(t, time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), defaulters[0].OldestDueDate)

	assert.Equal(t, small.ID, defaulters[1].Student.ID)
	testutil.AssertDecimal(t, "700", defaulters[1].OverdueAmount)
	assert.Equal(t, noEmail.ID, defaulters[2].Student.ID)

	others, err := env.FeeSvc.Defaulters(ctx, testutil.OtherSchoolID)
	require.NoError(t, err)
	assert.Empty(t, others)

	t.Run("reminders", func(t *testing.T) {
		emailsvc.ResetSentMessages()

		res, err := env.FeeSvc.RemindDefaulters(ctx, op)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Success)
		assert.Equal(t, []fee.ItemError{{ID: noEmail.ID, Error: fee.ErrNoGuardianEmail.Error()}}, res.Errors)

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, big.GuardianEmail, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "big")
		assert.Contains(t, sent[0].TextContent, "2000.00")
		assert.Contains(t, sent[0].HTMLContent, "2000.00")

		emailsvc.ResetSentMessages()
		all, err := env.FeeSvc.RemindAllDefaulters(ctx)
		require.NoError(t, err)
		assert.Equal(t, res, all)
		assert.Len(t, emailsvc.SentMessages(), 2)
	})
}
