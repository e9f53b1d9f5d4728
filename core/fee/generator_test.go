package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/tests"
)

func TestService_GenerateChallan(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()

	cls := env.CreateClass(t, "Grade 1", "3000")
	st := env.CreateStudent(t, "amina", &cls, func(st *fee.Student) {
		st.OriginalTuitionFee = testutil.D("3000")
		st.OriginalExamFee = testutil.D("400")
		st.FeeDiscount = testutil.D("200")
	})

	t.Run("monthly fee stays undiscounted, total applies the discount once", func(t *testing.T) {
		ch, err := env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: st.ID, Month: "2025-03"})
		require.NoError(t, err)

		testutil.AssertDecimal(t, "3000", ch.MonthlyFee)
		testutil.AssertDecimal(t, "200", ch.Discount)
		testutil.AssertDecimal(t, "0", ch.ExamFee)
		testutil.AssertDecimal(t, "2800", ch.TotalAmount)
		testutil.AssertDecimal(t, "0", ch.AmountPaid)
		assert.Equal(t, fee.StatusPending, ch.Status)
		assert.Equal(t, "2025-03", ch.Month)
		assert.Equal(t, time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), ch.DueDate)
		assert.Equal(t, op.UserID, ch.GeneratedBy)
		assert.Equal(t, "CH-202503-001", ch.ChallanNumber)

		b, err := env.FeeSvc.Resolve(ctx, testutil.SchoolID, st.ID)
		require.NoError(t, err)
		testutil.AssertDecimal(t, "2800", b.MonthlyNet())
	})

	t.Run("exam fee & due date", func(t *testing.T) {
		due := time.Date(2025, time.April, 10, 8, 0, 0, 0, time.FixedZone("EAT", 3*3600))
		ch, err := env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{
			StudentID:      st.ID,
			Month:          "2025-04",
			IncludeExamFee: true,
			DueDate:        &due,
		})
		require.NoError(t, err)
		testutil.AssertDecimal(t, "400", ch.ExamFee)
		testutil.AssertDecimal(t, "3200", ch.TotalAmount)
		assert.True(t, due.Equal(ch.DueDate))
		assert.Equal(t, time.UTC, ch.DueDate.Location())
	})

	t.Run("numbers are sequenced per school month", func(t *testing.T) {
		var numbers []string
		for i := 0; i < 3; i++ {
			ch, err := env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: st.ID, Month: "2025-05"})
			require.NoError(t, err)
			numbers = append(numbers, ch.ChallanNumber)
		}
		assert.Equal(t, []string{"CH-202505-001", "CH-202505-002", "CH-202505-003"}, numbers)

		ch, err := env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: st.ID, Month: "2025-03"})
		require.NoError(t, err)
		assert.Equal(t, "CH-202503-002", ch.ChallanNumber)
	})

	t.Run("errors", func(t *testing.T) {
		noClass := env.CreateStudent(t, "noclass", nil)
		inactive := env.CreateStudent(t, "inactive", &cls, func(st *fee.Student) { st.IsActive = false })

		_, err := env.FeeSvc.GenerateChallan(ctx, fee.Operator{}, fee.GenerateRequest{StudentID: st.ID, Month: "2025-03"})
		assert.ErrorIs(t, err, fee.ErrUnauthenticated)
		assert.EqualError(t, err, "user not authenticated")

		_, err = env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: st.ID, Month: "March"})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)

		_, err = env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: noClass.ID, Month: "2025-03"})
		assert.ErrorIs(t, err, fee.ErrStudentHasNoClass)

		_, err = env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: inactive.ID, Month: "2025-03"})
		assert.ErrorIs(t, err, fee.ErrStudentInactive)

		_, err = env.FeeSvc.GenerateChallan(ctx, op, fee.GenerateRequest{StudentID: "nope", Month: "2025-03"})
		assert.ErrorIs(t, err, fee.ErrStudentNotFound)
	})
}

func TestChallanNumber(t *testing.T) {
	m := fee.Month{Year: 2025, Month: time.March}
	assert.Equal(t, "CH-202503-001", fee.ChallanNumber("CH", m, 1))
	assert.Equal(t, "CH-202503-042", fee.ChallanNumber("CH", m, 42))
	assert.Equal(t, "CH-202503-1000", fee.ChallanNumber("CH", m, 1000))
}

func TestService_BulkGenerate(t *testing.T) {
	ctx := context.Background()
	op := testutil.Operator()

	setup := func(t *testing.T) (*testutil.Env, []string) {
		env := testutil.NewEnv(t)
		cls := env.CreateClass(t, "Grade 1", "1500")
		ids := make([]string, 0, 5)
		for i, name := range []string{"s1", "s2", "s3", "s4", "s5"} {
			c := &cls
			if i == 2 {
				c = nil
			}
			ids = append(ids, env.CreateStudent(t, name, c).ID)
		}
		return env, ids
	}

	t.Run("continues past a student without class", func(t *testing.T) {
		env, ids := setup(t)
		res, err := env.FeeSvc.BulkGenerate(ctx, op, fee.BulkGenerateRequest{StudentIDs: ids, Month: "2025-03"})
		require.NoError(t, err)

		assert.Equal(t, 4, res.Success)
		assert.Equal(t, 1, res.Failed)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, ids[2], res.Errors[0].ID)
		assert.Equal(t, fee.ErrStudentHasNoClass.Error(), res.Errors[0].Error)

		challans, err := env.FeeSvc.QueryChallans(ctx, testutil.SchoolID, fee.ChallanFilter{Month: "2025-03"}, nil)
		require.NoError(t, err)
		assert.Len(t, challans, 4)
	})

	t.Run("creates duplicates unless asked to skip existing", func(t *testing.T) {
		env, ids := setup(t)
		req := fee.BulkGenerateRequest{StudentIDs: ids[:2], Month: "2025-03"}

		_, err := env.FeeSvc.BulkGenerate(ctx, op, req)
		require.NoError(t, err)
		res, err := env.FeeSvc.BulkGenerate(ctx, op, req)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Success)

		req.SkipExisting = true
		res, err = env.FeeSvc.BulkGenerate(ctx, op, req)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Success)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, fee.ErrChallanExists.Error(), res.Errors[0].Error)

		challans, err := env.FeeSvc.QueryChallans(ctx, testutil.SchoolID, fee.ChallanFilter{Month: "2025-03"}, nil)
		require.NoError(t, err)
		assert.Len(t, challans, 4)
	})

	t.Run("one run per school month at a time", func(t *testing.T) {
		env, ids := setup(t)
		m, _ := fee.ParseMonth("2025-03")
		key := fee.BulkLockKey(testutil.SchoolID, m)
		locked, err := env.Locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		require.True(t, locked)

		_, err = env.FeeSvc.BulkGenerate(ctx, op, fee.BulkGenerateRequest{StudentIDs: ids, Month: "2025-03"})
		assert.ErrorIs(t, err, fee.ErrBulkInProgress)

		// other months are not blocked
		res, err := env.FeeSvc.BulkGenerate(ctx, op, fee.BulkGenerateRequest{StudentIDs: ids, Month: "2025-04"})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Success)

		require.NoError(t, env.Locker.Unlock(ctx, key))
		res, err = env.FeeSvc.BulkGenerate(ctx, op, fee.BulkGenerateRequest{StudentIDs: ids, Month: "2025-03"})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Success)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		env, ids := setup(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := env.FeeSvc.BulkGenerate(cctx, op, fee.BulkGenerateRequest{StudentIDs: ids, Month: "2025-03"})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Success)
		assert.Equal(t, 5, res.Failed)
	})
}
