package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
)

// ChallanNumber formats the n-th challan number of a school's month: <prefix>-YYYYMM-NNN.
func ChallanNumber(prefix string, month Month, n int64) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, month.Key(), n)
}

func sequenceKey(schoolID string, month Month) string {
	return "challan:" + schoolID + ":" + month.Key()
}

// BulkLockKey is the Locker key serialising bulk generation of a school month.
func BulkLockKey(schoolID string, month Month) string {
	return "bulk-generate:" + schoolID + ":" + month.Key()
}

func (svc *service) nextChallanNumber(ctx context.Context, schoolID string, month Month) (string, error) {
	n, err := svc.seq.Next(ctx, sequenceKey(schoolID, month))
	if err != nil {
		return "", errors.Wrap(err, "allocating challan number")
	}
	return ChallanNumber(svc.opts.ChallanPrefix, month, n), nil
}

// newChallan builds a pending challan for b. The monthly fee is stored
// undiscounted: the discount is applied once, by ComputeTotal.
func (svc *service) newChallan(op Operator, studentID string, month Month, b Breakdown, includeExam bool, dueDate *time.Time) Challan {
	now := svc.now()
	ch := Challan{
		SchoolID:     op.SchoolID,
		StudentID:    studentID,
		Month:        month.String(),
		MonthlyFee:   b.TuitionFee,
		AdmissionFee: b.AdmissionFee,
		OtherFees:    b.OtherFee,
		Discount:     b.Discount,
		Status:       StatusPending,
		DueDate:      month.LastDay(),
		GeneratedBy:  op.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if includeExam {
		ch.ExamFee = b.ExamFee
	}
	if dueDate != nil {
		ch.DueDate = dueDate.UTC()
	}
	if b.FeeStructureID != "" {
		ch.FeeStructureID.SetValid(b.FeeStructureID)
	}
	ch.ComputeTotal()
	return ch
}

func (svc *service) GenerateChallan(ctx context.Context, op Operator, req GenerateRequest) (Challan, error) {
	if err := svc.checkOperator(op); err != nil {
		return Challan{}, err
	}
	if err := svc.validate.Struct(req); err != nil {
		return Challan{}, err
	}
	month, err := ParseMonth(req.Month)
	if err != nil {
		return Challan{}, err
	}

	st, err := svc.repos.Students.GetStudent(ctx, op.SchoolID, req.StudentID)
	if err != nil {
		return Challan{}, err
	}
	return svc.generateFor(ctx, op, st, month, req.IncludeExamFee, req.DueDate)
}

func (svc *service) generateFor(ctx context.Context, op Operator, st Student, month Month, includeExam bool, dueDate *time.Time, exec ...core.DBExecutor) (Challan, error) {
	if !st.IsActive {
		return Challan{}, ErrStudentInactive
	}
	b, err := svc.resolveStudent(ctx, st, exec...)
	if err != nil {
		return Challan{}, err
	}

	ch := svc.newChallan(op, st.ID, month, b, includeExam, dueDate)
	if ch.ChallanNumber, err = svc.nextChallanNumber(ctx, op.SchoolID, month); err != nil {
		return Challan{}, err
	}
	ch, err = svc.repos.Challans.CreateChallan(ctx, ch, exec...)
	if err != nil {
		return Challan{}, errors.Wrap(err, "inserting challan")
	}
	return ch, nil
}

// BulkGenerate generates one challan per student, one student at a time.
// Failures are recorded and the loop carries on with the next student.
func (svc *service) BulkGenerate(ctx context.Context, op Operator, req BulkGenerateRequest) (BulkResult, error) {
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

	lockKey := BulkLockKey(op.SchoolID, month)
	locked, err := svc.locker.TryLock(ctx, lockKey, svc.opts.BulkLockTTL)
	if err != nil {
		return res, errors.Wrap(err, "acquiring bulk generation lock")
	}
	if !locked {
		return res, ErrBulkInProgress
	}
	defer func() {
		if err := svc.locker.Unlock(context.Background(), lockKey); err != nil {
			svc.logger.Error("releasing bulk generation lock "+lockKey, err)
		}
	}()

	ids := core.CleanIDs(req.StudentIDs)
	existing := make(map[string]struct{})
	if req.SkipExisting {
		challans, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{
			SchoolID:   op.SchoolID,
			StudentIDs: ids,
			Month:      month.String(),
			Statuses:   []Status{StatusPending, StatusPaid, StatusOverdue},
		}, nil)
		if err != nil {
			return res, errors.Wrap(err, "querying existing challans")
		}
		for _, ch := range challans {
			existing[ch.StudentID] = struct{}{}
		}
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			res.failRest(ids[i:], err)
			break
		}
		if _, ok := existing[id]; ok {
			res.fail(id, ErrChallanExists)
			continue
		}

		st, err := svc.repos.Students.GetStudent(ctx, op.SchoolID, id)
		if err == nil {
			_, err = svc.generateFor(ctx, op, st, month, req.IncludeExamFee, req.DueDate)
		}
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.ok()
	}

	if res.Failed > 0 {
		svc.logger.Warn(fmt.Sprintf("bulk generation for %s: %d of %d failed", month, res.Failed, len(ids)), op)
	}
	return res, nil
}
