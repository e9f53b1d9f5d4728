package fee_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/tests"
)

func TestService_FeeStructures(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()
	cls := env.CreateClass(t, "Grade 1", "")
	otherCls := env.CreateClass(t, "Grade 2", "")

	v1, err := env.FeeSvc.CreateFeeStructure(ctx, op, fee.NewFeeStructure{ClassID: cls.ID, TuitionFee: testutil.D("1000")})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.True(t, v1.IsActive)
	assert.Equal(t, fee.FeeTypeMonthly, v1.FeeType)
	assert.Equal(t, op.UserID, v1.CreatedBy)

	v2, err := env.FeeSvc.NewFeeStructureVersion(ctx, op, v1.ID, fee.FeeStructureChanges{TuitionFee: testutil.DPtr("1200")})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsActive)
	assert.NotEqual(t, v1.ID, v2.ID)
	testutil.AssertDecimal(t, "1200", v2.TuitionFee)

	v1, err = env.FeeSvc.GetFeeStructure(ctx, testutil.SchoolID, v1.ID)
	require.NoError(t, err)
	assert.False(t, v1.IsActive)
	testutil.AssertDecimal(t, "1000", v1.TuitionFee)

	_, err = env.FeeSvc.CreateFeeStructure(ctx, op, fee.NewFeeStructure{ClassID: otherCls.ID, TuitionFee: testutil.D("900")})
	require.NoError(t, err)

	structures, err := env.FeeSvc.ListFeeStructures(ctx, testutil.SchoolID, cls.ID)
	require.NoError(t, err)
	require.Len(t, structures, 2)
	var active int
	for _, fs := range structures {
		if fs.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	all, err := env.FeeSvc.ListFeeStructures(ctx, testutil.SchoolID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = env.FeeSvc.CreateFeeStructure(ctx, op, fee.NewFeeStructure{ClassID: "unknown"})
	assert.ErrorIs(t, err, fee.ErrClassNotFound)
	_, err = env.FeeSvc.CreateFeeStructure(ctx, op, fee.NewFeeStructure{ClassID: cls.ID, TuitionFee: testutil.D("-5")})
	assert.Error(t, err)
	_, err = env.FeeSvc.GetFeeStructure(ctx, testutil.OtherSchoolID, v2.ID)
	assert.ErrorIs(t, err, fee.ErrFeeStructureNotFound)
}

func TestService_SyncStudentsToStructure(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()
	cls := env.CreateClass(t, "Grade 1", "")

	plain := env.CreateStudent(t, "plain", &cls)
	custom := env.CreateStudent(t, "custom", &cls, func(st *fee.Student) {
		st.UseCustomFees = true
		st.CustomTuitionFee = decimal.NewNullDecimal(testutil.D("700"))
	})
	inactive := env.CreateStudent(t, "inactive", &cls, func(st *fee.Student) { st.IsActive = false })

	fs, err := env.FeeSvc.CreateFeeStructure(ctx, op, fee.NewFeeStructure{
		ClassID:      cls.ID,
		TuitionFee:   testutil.D("1000"),
		AdmissionFee: testutil.D("200"),
		ExamFee:      testutil.D("150"),
		OtherFee:     testutil.D("25"),
	})
	require.NoError(t, err)

	res, err := env.FeeSvc.SyncStudentsToStructure(ctx, op, fs.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)

	for _, id := range []string{plain.ID, custom.ID} {
		st, err := env.Repos.Students.GetStudent(ctx, testutil.SchoolID, id)
		require.NoError(t, err)
		testutil.AssertDecimal(t, "1000", st.OriginalTuitionFee)
		testutil.AssertDecimal(t, "200", st.OriginalAdmissionFee)
		testutil.AssertDecimal(t, "150", st.OriginalExamFee)
		testutil.AssertDecimal(t, "25", st.OriginalOtherFee)
	}

	b, err := env.FeeSvc.Resolve(ctx, testutil.SchoolID, custom.ID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "700", b.TuitionFee)

	st, err := env.Repos.Students.GetStudent(ctx, testutil.SchoolID, inactive.ID)
	require.NoError(t, err)
	assert.True(t, st.OriginalTuitionFee.IsZero())
}
