package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/tests"
)

func TestService_RecordPayment(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()
	set := setupChallans(t, env)
	paidAt := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

	rcpt, err := env.FeeSvc.RecordPayment(ctx, op, set.pending1.ID, fee.PaymentInput{
		Amount: testutil.D("400"),
		Method: fee.MethodBank,
		Notes:  "first instalment",
	})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPending, rcpt.Challan.Status)
	testutil.AssertDecimal(t, "400", rcpt.Challan.AmountPaid)
	testutil.AssertDecimal(t, "600", rcpt.Challan.Outstanding())
	assert.False(t, rcpt.Challan.PaidDate.Valid)
	assert.Equal(t, set.pending1.ID, rcpt.Payment.ChallanID)
	assert.Equal(t, op.UserID, rcpt.Payment.RecordedBy)

	// above the balance
	_, err = env.FeeSvc.RecordPayment(ctx, op, set.pending1.ID, fee.PaymentInput{Amount: testutil.D("601"), Method: fee.MethodCash})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, fee.ErrInvalidAmount)

	rcpt, err = env.FeeSvc.RecordPayment(ctx, op, set.pending1.ID, fee.PaymentInput{
		Amount: testutil.D("600"),
		Method: fee.MethodCash,
		Date:   &paidAt,
	})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, rcpt.Challan.Status)
	assert.Equal(t, paidAt, rcpt.Challan.PaidDate.Time)
	testutil.AssertDecimal(t, "1000", rcpt.Challan.AmountPaid)

	// overdue challans can still be paid
	rcpt, err = env.FeeSvc.RecordPayment(ctx, op, set.overdue.ID, fee.PaymentInput{Amount: testutil.D("1000"), Method: fee.MethodOnline})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, rcpt.Challan.Status)

	tests := []struct {
		name    string
		id      string
		in      fee.PaymentInput
		wantErr error
	}{
		{"paid challan", set.paid.ID, fee.PaymentInput{Amount: testutil.D("1"), Method: fee.MethodCash}, fee.ErrChallanNotPayable},
		{"cancelled challan", set.cancelled.ID, fee.PaymentInput{Amount: testutil.D("1"), Method: fee.MethodCash}, fee.ErrChallanNotPayable},
		{"unknown challan", "unknown", fee.PaymentInput{Amount: testutil.D("1"), Method: fee.MethodCash}, fee.ErrChallanNotFound},
		{"zero amount", set.pending2.ID, fee.PaymentInput{Amount: testutil.D("0"), Method: fee.MethodCash}, fee.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.FeeSvc.RecordPayment(ctx, op, tt.id, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_StudentLedger(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	op := testutil.Operator()
	set := setupChallans(t, env)

	_, err := env.FeeSvc.RecordPayment(ctx, op, set.pending1.ID, fee.PaymentInput{Amount: testutil.D("250"), Method: fee.MethodCash})
	require.NoError(t, err)

	ledger, err := env.FeeSvc.StudentLedger(ctx, testutil.SchoolID, set.pending1.StudentID)
	require.NoError(t, err)

	// pending1 + pending2 + paid + overdue; cancelled is not billed
	assert.Len(t, ledger.Challans, 4)
	testutil.AssertDecimal(t, "4000", ledger.TotalBilled)
	// only recorded payments count
	testutil.AssertDecimal(t, "250", ledger.TotalPaid)
	testutil.AssertDecimal(t, "3750", ledger.Outstanding)
	assert.Len(t, ledger.Payments, 1)
	assert.Equal(t, "2025-01", ledger.Challans[0].Month)

	_, err = env.FeeSvc.StudentLedger(ctx, testutil.SchoolID, "unknown")
	assert.ErrorIs(t, err, fee.ErrStudentNotFound)
}
