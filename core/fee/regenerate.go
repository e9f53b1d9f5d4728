package fee

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
)

// Regenerate replaces the pending challans of req.StudentIDs for req.Month with
// challans priced from the given fee structure. Paid, overdue & cancelled
// challans are kept. Students that are inactive, outside the structure's class
// or already paying a pending challan of the month are skipped and reported.
// The whole run is one transaction.
func (svc *service) Regenerate(ctx context.Context, op Operator, req RegenerateRequest) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}
	if err := svc.validate.Struct(req); err != nil {
		return res, err
	}
	month, err := ParseMonth(req.Month)
	if err != nil {
		return res, err
	}
	ids := core.CleanIDs(req.StudentIDs)

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		res = BulkResult{}

		fs, err := svc.repos.Structures.GetStructure(ctx, op.SchoolID, req.FeeStructureID, exec)
		if err != nil {
			return err
		}
		students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{SchoolID: op.SchoolID, IDs: ids}, exec)
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		if len(students) != len(ids) {
			return ErrStudentNotFound
		}

		pending, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{
			SchoolID:   op.SchoolID,
			StudentIDs: ids,
			Month:      month.String(),
			Statuses:   []Status{StatusPending},
		}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying pending challans")
		}
		pendingOf := make(map[string][]Challan)
		for _, ch := range pending {
			pendingOf[ch.StudentID] = append(pendingOf[ch.StudentID], ch)
		}

		eligible := make([]Student, 0, len(students))
		stale := make([]string, 0, len(pending))
		for _, st := range students {
			if err := regenerable(st, fs, pendingOf[st.ID]); err != nil {
				res.fail(st.ID, err)
				continue
			}
			eligible = append(eligible, st)
			stale = append(stale, challanIDs(pendingOf[st.ID])...)
		}

		if len(stale) > 0 {
			deleted, err := svc.repos.Challans.DeleteUnpaidChallans(ctx, op.SchoolID, stale, exec)
			if err != nil {
				return errors.Wrap(err, "deleting pending challans")
			}
			if len(deleted) != len(stale) {
				return ErrChallanChanged
			}
		}

		for _, st := range eligible {
			if err := ctx.Err(); err != nil {
				return err
			}
			ch := svc.newChallan(op, st.ID, month, structureBreakdown(fs, st), req.IncludeExamFee, req.DueDate)
			if ch.ChallanNumber, err = svc.nextChallanNumber(ctx, op.SchoolID, month); err != nil {
				return err
			}
			if _, err := svc.repos.Challans.CreateChallan(ctx, ch, exec); err != nil {
				return errors.Wrap(err, "inserting challan for student "+st.ID)
			}
			res.ok()
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

// regenerable tells why st may not be billed again from fs, given its pending challans of the month.
func regenerable(st Student, fs FeeStructure, pending []Challan) error {
	switch {
	case !st.IsActive:
		return ErrStudentInactive
	case st.ClassID.String != fs.ClassID:
		return ErrStudentClassMismatch
	}
	for _, ch := range pending {
		if ch.HasPayments() {
			return ErrChallanHasPayments
		}
	}
	return nil
}

// structureBreakdown prices st from fs, keeping the student's custom tuition & discount.
func structureBreakdown(fs FeeStructure, st Student) Breakdown {
	b := Breakdown{
		TuitionFee:     fs.TuitionFee,
		AdmissionFee:   fs.AdmissionFee,
		ExamFee:        fs.ExamFee,
		OtherFee:       fs.OtherFee,
		Discount:       st.FeeDiscount,
		Source:         SourceStructure,
		FeeStructureID: fs.ID,
	}
	if tuition, ok := st.customTuition(); ok {
		b.TuitionFee = tuition
		b.Source = SourceCustom
	}
	return b
}
