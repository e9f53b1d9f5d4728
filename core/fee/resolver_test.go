package fee_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/tests"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	withFee := env.CreateClass(t, "Grade 1", "3000")
	noFee := env.CreateClass(t, "Grade 2", "")
	noStructure := env.CreateClass(t, "Grade 3", "")
	_, err := env.FeeSvc.CreateFeeStructure(ctx, testutil.Operator(), fee.NewFeeStructure{
		ClassID:      noFee.ID,
		TuitionFee:   testutil.D("4000"),
		AdmissionFee: testutil.D("999"),
	})
	require.NoError(t, err)

	snapshots := func(st *fee.Student) {
		st.OriginalTuitionFee = testutil.D("3000")
		st.OriginalAdmissionFee = testutil.D("500")
		st.OriginalExamFee = testutil.D("300")
		st.OriginalOtherFee = testutil.D("100")
		st.FeeDiscount = testutil.D("200")
	}
	custom := env.CreateStudent(t, "custom", &withFee, snapshots, func(st *fee.Student) {
		st.UseCustomFees = true
		st.CustomTuitionFee = decimal.NewNullDecimal(testutil.D("2500"))
	})
	customOff := env.CreateStudent(t, "customoff", &withFee, snapshots, func(st *fee.Student) {
		st.CustomTuitionFee = decimal.NewNullDecimal(testutil.D("2500"))
	})
	legacy := env.CreateStudent(t, "legacy", &noFee, snapshots, func(st *fee.Student) {
		st.LegacyCustomFee = decimal.NewNullDecimal(testutil.D("1800"))
	})
	class := env.CreateStudent(t, "class", &withFee, snapshots)
	structure := env.CreateStudent(t, "structure", &noFee, snapshots)
	none := env.CreateStudent(t, "none", &noStructure, snapshots)
	noClass := env.CreateStudent(t, "noclass", nil, snapshots)
	otherSchool := env.DB.AddStudent(fee.Student{SchoolID: testutil.OtherSchoolID, Name: "other", ClassID: null.StringFrom(withFee.ID)})

	tests := []struct {
		name        string
		studentID   string
		wantTuition string
		wantSource  fee.Source
		wantErr     error
	}{
		{name: "custom override wins over class fee", studentID: custom.ID, wantTuition: "2500", wantSource: fee.SourceCustom},
		{name: "custom fee ignored when switched off", studentID: customOff.ID, wantTuition: "3000", wantSource: fee.SourceClass},
		{name: "legacy custom fee", studentID: legacy.ID, wantTuition: "1800", wantSource: fee.SourceCustom},
		{name: "class monthly fee", studentID: class.ID, wantTuition: "3000", wantSource: fee.SourceClass},
		{name: "active fee structure", studentID: structure.ID, wantTuition: "4000", wantSource: fee.SourceStructure},
		{name: "nothing configured", studentID: none.ID, wantTuition: "0", wantSource: fee.SourceStructure},
		{name: "no class", studentID: noClass.ID, wantErr: fee.ErrStudentHasNoClass},
		{name: "unknown student", studentID: "nope", wantErr: fee.ErrStudentNotFound},
		{name: "student of another school", studentID: otherSchool.ID, wantErr: fee.ErrStudentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := env.FeeSvc.Resolve(ctx, testutil.SchoolID, tt.studentID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, fee.Breakdown{}, b)
				return
			}
			require.NoError(t, err)
			testutil.AssertDecimal(t, tt.wantTuition, b.TuitionFee)
			assert.Equal(t, tt.wantSource, b.Source)

			// non-tuition fees always come from the student's snapshots
			testutil.AssertDecimal(t, "500", b.AdmissionFee)
			testutil.AssertDecimal(t, "300", b.ExamFee)
			testutil.AssertDecimal(t, "100", b.OtherFee)
			testutil.AssertDecimal(t, "200", b.Discount)
		})
	}
}

func TestBreakdown_Totals(t *testing.T) {
	b := fee.Breakdown{
		TuitionFee:   testutil.D("3000"),
		AdmissionFee: testutil.D("500"),
		ExamFee:      testutil.D("300"),
		OtherFee:     testutil.D("100"),
		Discount:     testutil.D("200"),
	}
	testutil.AssertDecimal(t, "2800", b.MonthlyNet())
	testutil.AssertDecimal(t, "3400", b.Total(false))
	testutil.AssertDecimal(t, "3700", b.Total(true))

	b.Discount = testutil.D("10000")
	testutil.AssertDecimal(t, "0", b.MonthlyNet())
	testutil.AssertDecimal(t, "0", b.Total(true))
}

func TestChallan_ComputeTotal(t *testing.T) {
	tests := []struct {
		name                                     string
		monthly, exam, admission, other, discount string
		want                                     string
	}{
		{"monthly only", "3000", "0", "0", "0", "200", "2800"},
		{"all components", "3000", "300", "500", "100", "200", "3700"},
		{"discount above total", "100", "0", "0", "0", "500", "0"},
		{"fractional amounts", "1000.50", "0.25", "0", "0", "0.75", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := fee.Challan{
				MonthlyFee:   testutil.D(tt.monthly),
				ExamFee:      testutil.D(tt.exam),
				AdmissionFee: testutil.D(tt.admission),
				OtherFees:    testutil.D(tt.other),
				Discount:     testutil.D(tt.discount),
			}
			ch.ComputeTotal()
			testutil.AssertDecimal(t, tt.want, ch.TotalAmount)
		})
	}
}
