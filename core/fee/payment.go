package fee

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core"
)

// RecordPayment appends a payment to a pending or overdue challan.
// The challan becomes paid once its total is covered.
func (svc *service) RecordPayment(ctx context.Context, op Operator, challanID string, in PaymentInput) (Receipt, error) {
	if err := svc.checkOperator(op); err != nil {
		return Receipt{}, err
	}
	if err := svc.validate.Struct(in); err != nil {
		return Receipt{}, err
	}

	var rcpt Receipt
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		ch, err := svc.repos.Challans.GetChallan(ctx, op.SchoolID, challanID, exec)
		if err != nil {
			return err
		}
		if !ch.IsPayable() {
			return ErrChallanNotPayable
		}
		if !in.Amount.IsPositive() || in.Amount.GreaterThan(ch.Outstanding()) {
			return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount", Error: ErrInvalidAmount.Error()})
		}

		from := ch.State()
		now := svc.now()
		paidAt := now
		if in.Date != nil {
			paidAt = in.Date.UTC()
		}
		p, err := svc.repos.Payments.CreatePayment(ctx, Payment{
			SchoolID:      ch.SchoolID,
			ChallanID:     ch.ID,
			StudentID:     ch.StudentID,
			Amount:        in.Amount,
			PaymentDate:   paidAt,
			PaymentMethod: in.Method,
			Notes:         in.Notes,
			RecordedBy:    op.UserID,
			CreatedAt:     now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "recording payment")
		}

		ch.AmountPaid = ch.AmountPaid.Add(in.Amount)
		if !ch.Outstanding().IsPositive() {
			ch.Status = StatusPaid
			ch.PaidDate.SetValid(paidAt)
		}
		ch.UpdatedAt = now
		if ch, err = svc.repos.Challans.UpdateChallan(ctx, ch, from, exec); err != nil {
			return err
		}
		rcpt = Receipt{Challan: ch, Payment: p}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return rcpt, nil
}

// StudentLedger sums what a student was billed (cancelled challans excluded) and paid.
func (svc *service) StudentLedger(ctx context.Context, schoolID, studentID string) (Ledger, error) {
	if _, err := svc.repos.Students.GetStudent(ctx, schoolID, studentID); err != nil {
		return Ledger{}, err
	}

	challans, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{
		SchoolID:   schoolID,
		StudentIDs: []string{studentID},
		Statuses:   []Status{StatusPending, StatusPaid, StatusOverdue},
	}, []core.DBOrdering{{Field: "month", Ascending: true}})
	if err != nil {
		return Ledger{}, errors.Wrap(err, "querying challans")
	}
	payments, err := svc.repos.Payments.QueryPayments(ctx, PaymentFilter{SchoolID: schoolID, StudentID: studentID})
	if err != nil {
		return Ledger{}, errors.Wrap(err, "querying payments")
	}

	ledger := Ledger{
		StudentID:   studentID,
		TotalBilled: decimal.Zero,
		TotalPaid:   decimal.Zero,
		Challans:    challans,
		Payments:    payments,
	}
	for _, ch := range challans {
		ledger.TotalBilled = ledger.TotalBilled.Add(ch.TotalAmount)
	}
	for _, p := range payments {
		ledger.TotalPaid = ledger.TotalPaid.Add(p.Amount)
	}
	ledger.Outstanding = clampZero(ledger.TotalBilled.Sub(ledger.TotalPaid))
	return ledger, nil
}
