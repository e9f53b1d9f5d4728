package fee

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
)

// ItemError reports why one item of a bulk operation failed.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkResult struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors"`
}

func (r *BulkResult) ok() { r.Success++ }

func (r *BulkResult) fail(id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{ID: id, Error: err.Error()})
}

// failRest reports every id of ids as failed with err.
func (r *BulkResult) failRest(ids []string, err error) {
	for _, id := range ids {
		r.fail(id, err)
	}
}

// partitionPending loads the challans of ids and splits them on their pending status.
// Unknown & non-pending ids are recorded in res as failures.
func (svc *service) partitionPending(ctx context.Context, schoolID string, ids []string, res *BulkResult) ([]Challan, error) {
	ids = core.CleanIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{SchoolID: schoolID, IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying challans")
	}
	byID := make(map[string]Challan, len(found))
	for _, ch := range found {
		byID[ch.ID] = ch
	}

	eligible := make([]Challan, 0, len(found))
	for _, id := range ids {
		ch, ok := byID[id]
		switch {
		case !ok:
			res.fail(id, ErrChallanNotFound)
		case !ch.IsPending():
			res.fail(id, ErrChallanNotPending)
		default:
			eligible = append(eligible, ch)
		}
	}
	return eligible, nil
}

func (svc *service) BulkMarkPaid(ctx context.Context, op Operator, ids []string, in PaymentInput) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}
	if err := svc.validate.Struct(in); err != nil {
		return res, err
	}

	eligible, err := svc.partitionPending(ctx, op.SchoolID, ids, &res)
	if err != nil {
		return res, err
	}

	now := svc.now()
	paidAt := now
	if in.Date != nil {
		paidAt = in.Date.UTC()
	}
	for i, ch := range eligible {
		if err := ctx.Err(); err != nil {
			res.failRest(challanIDs(eligible[i:]), err)
			break
		}
		from := ch.State()
		err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
			if balance := ch.Outstanding(); balance.IsPositive() {
				_, err := svc.repos.Payments.CreatePayment(ctx, Payment{
					SchoolID:      ch.SchoolID,
					ChallanID:     ch.ID,
					StudentID:     ch.StudentID,
					Amount:        balance,
					PaymentDate:   paidAt,
					PaymentMethod: in.Method,
					Notes:         in.Notes,
					RecordedBy:    op.UserID,
					CreatedAt:     now,
				}, exec)
				if err != nil {
					return errors.Wrap(err, "recording payment")
				}
			}
			ch.AmountPaid = ch.TotalAmount
			ch.Status = StatusPaid
			ch.PaidDate.SetValid(paidAt)
			ch.UpdatedAt = now
			_, err := svc.repos.Challans.UpdateChallan(ctx, ch, from, exec)
			return err
		})
		if err != nil {
			res.fail(ch.ID, err)
			continue
		}
		res.ok()
	}
	return res, nil
}

// BulkDelete deletes the pending challans of ids. Challans already holding a
// payment are kept and reported.
func (svc *service) BulkDelete(ctx context.Context, op Operator, ids []string) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}

	pending, err := svc.partitionPending(ctx, op.SchoolID, ids, &res)
	if err != nil {
		return res, err
	}
	eligibleIDs := make([]string, 0, len(pending))
	for _, ch := range pending {
		if ch.HasPayments() {
			res.fail(ch.ID, ErrChallanHasPayments)
			continue
		}
		eligibleIDs = append(eligibleIDs, ch.ID)
	}
	if len(eligibleIDs) == 0 {
		return res, nil
	}

	deleted, err := svc.repos.Challans.DeleteUnpaidChallans(ctx, op.SchoolID, eligibleIDs)
	if err != nil {
		res.failRest(eligibleIDs, errors.Wrap(err, "deleting challans"))
		return res, nil
	}
	res.Success += len(deleted)
	if len(deleted) == len(eligibleIDs) {
		return res, nil
	}

	// the rest changed or vanished since they were read
	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}
	left := make([]string, 0, len(eligibleIDs)-len(deleted))
	for _, id := range eligibleIDs {
		if _, ok := gone[id]; !ok {
			left = append(left, id)
		}
	}
	found, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{SchoolID: op.SchoolID, IDs: left}, nil)
	if err != nil {
		res.failRest(left, errors.Wrap(err, "querying challans"))
		return res, nil
	}
	byID := make(map[string]Challan, len(found))
	for _, ch := range found {
		byID[ch.ID] = ch
	}
	for _, id := range left {
		ch, ok := byID[id]
		switch {
		case !ok:
			res.fail(id, ErrChallanNotFound)
		case ch.HasPayments():
			res.fail(id, ErrChallanHasPayments)
		default:
			res.fail(id, ErrChallanNotPending)
		}
	}
	return res, nil
}

func (svc *service) BulkCancel(ctx context.Context, op Operator, ids []string) (BulkResult, error) {
	return svc.updatePending(ctx, op, ids, func(ch *Challan) error {
		ch.Status = StatusCancelled
		return nil
	})
}

func (svc *service) BulkEdit(ctx context.Context, op Operator, ids []string, edit ChallanEdit) (BulkResult, error) {
	if err := svc.validate.Struct(edit); err != nil {
		return BulkResult{}, err
	}
	return svc.updatePending(ctx, op, ids, func(ch *Challan) error {
		if edit.DueDate != nil {
			ch.DueDate = edit.DueDate.UTC()
		}
		if edit.Discount != nil {
			ch.Discount = *edit.Discount
		}
		if edit.ExamFee != nil {
			ch.ExamFee = *edit.ExamFee
		}
		if edit.OtherFees != nil {
			ch.OtherFees = *edit.OtherFees
		}
		ch.ComputeTotal()
		if ch.TotalAmount.LessThan(ch.AmountPaid) {
			return ErrTotalBelowPaid
		}
		if ch.HasPayments() && !ch.Outstanding().IsPositive() {
			ch.Status = StatusPaid
			ch.PaidDate.SetValid(svc.now())
		}
		return nil
	})
}

// updatePending applies fn to, and saves, every pending challan of ids.
// A challan modified since it was read is left alone and reported.
func (svc *service) updatePending(ctx context.Context, op Operator, ids []string, fn func(ch *Challan) error) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}

	eligible, err := svc.partitionPending(ctx, op.SchoolID, ids, &res)
	if err != nil {
		return res, err
	}

	now := svc.now()
	for i, ch := range eligible {
		if err := ctx.Err(); err != nil {
			res.failRest(challanIDs(eligible[i:]), err)
			break
		}
		from := ch.State()
		if err := fn(&ch); err != nil {
			res.fail(ch.ID, err)
			continue
		}
		ch.UpdatedAt = now
		if _, err := svc.repos.Challans.UpdateChallan(ctx, ch, from); err != nil {
			res.fail(ch.ID, err)
			continue
		}
		res.ok()
	}
	return res, nil
}

func (svc *service) BulkUpdateStudentFees(ctx context.Context, op Operator, studentIDs []string, upd StudentFeeUpdate) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}
	if err := svc.validate.Struct(upd); err != nil {
		return res, err
	}

	studentIDs = core.CleanIDs(studentIDs)
	students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{SchoolID: op.SchoolID, IDs: studentIDs})
	if err != nil {
		return res, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	for _, id := range studentIDs {
		if err := ctx.Err(); err != nil {
			res.fail(id, err)
			continue
		}
		st, ok := byID[id]
		switch {
		case !ok:
			res.fail(id, ErrStudentNotFound)
			continue
		case !st.IsActive:
			res.fail(id, ErrStudentInactive)
			continue
		}

		if upd.UseCustomFees != nil {
			st.UseCustomFees = *upd.UseCustomFees
		}
		if upd.CustomTuitionFee != nil {
			st.CustomTuitionFee.Decimal = *upd.CustomTuitionFee
			st.CustomTuitionFee.Valid = true
		}
		if upd.FeeDiscount != nil {
			st.FeeDiscount = *upd.FeeDiscount
		}
		if _, err := svc.repos.Students.UpdateStudent(ctx, st); err != nil {
			res.fail(id, errors.Wrap(err, "updating student"))
			continue
		}
		res.ok()
	}
	return res, nil
}

func challanIDs(challans []Challan) []string {
	ids := make([]string, 0, len(challans))
	for _, ch := range challans {
		ids = append(ids, ch.ID)
	}
	return ids
}
