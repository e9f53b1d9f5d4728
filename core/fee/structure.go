package fee

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core"
)

// CreateFeeStructure adds the next monthly fee structure version of a class
// and makes it the only active one.
func (svc *service) CreateFeeStructure(ctx context.Context, op Operator, nfs NewFeeStructure) (FeeStructure, error) {
	if err := svc.checkOperator(op); err != nil {
		return FeeStructure{}, err
	}
	if err := svc.validate.Struct(nfs); err != nil {
		return FeeStructure{}, err
	}
	if _, err := svc.repos.Classes.GetClass(ctx, op.SchoolID, nfs.ClassID); err != nil {
		return FeeStructure{}, err
	}

	now := svc.now()
	fs := FeeStructure{
		SchoolID:      op.SchoolID,
		ClassID:       nfs.ClassID,
		FeeType:       FeeTypeMonthly,
		TuitionFee:    nfs.TuitionFee,
		AdmissionFee:  nfs.AdmissionFee,
		ExamFee:       nfs.ExamFee,
		OtherFee:      nfs.OtherFee,
		IsActive:      true,
		EffectiveFrom: now,
		CreatedBy:     op.UserID,
		CreatedAt:     now,
	}
	if nfs.EffectiveFrom != nil {
		fs.EffectiveFrom = nfs.EffectiveFrom.UTC()
	}
	return svc.activateStructure(ctx, fs)
}

// NewFeeStructureVersion copies structure id forward with changes applied.
func (svc *service) NewFeeStructureVersion(ctx context.Context, op Operator, id string, changes FeeStructureChanges) (FeeStructure, error) {
	if err := svc.checkOperator(op); err != nil {
		return FeeStructure{}, err
	}
	if err := svc.validate.Struct(changes); err != nil {
		return FeeStructure{}, err
	}
	prev, err := svc.repos.Structures.GetStructure(ctx, op.SchoolID, id)
	if err != nil {
		return FeeStructure{}, err
	}

	now := svc.now()
	fs := prev
	fs.ID = ""
	fs.IsActive = true
	fs.EffectiveFrom = now
	fs.CreatedBy = op.UserID
	fs.CreatedAt = now
	setDecimal(&fs.TuitionFee, changes.TuitionFee)
	setDecimal(&fs.AdmissionFee, changes.AdmissionFee)
	setDecimal(&fs.ExamFee, changes.ExamFee)
	setDecimal(&fs.OtherFee, changes.OtherFee)
	if changes.EffectiveFrom != nil {
		fs.EffectiveFrom = changes.EffectiveFrom.UTC()
	}
	return svc.activateStructure(ctx, fs)
}

// activateStructure numbers fs after the latest version of its class,
// deactivates the current active one and inserts fs, in one transaction.
func (svc *service) activateStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error) {
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		latest, err := svc.repos.Structures.LatestVersion(ctx, fs.SchoolID, fs.ClassID, fs.FeeType, exec)
		if err != nil {
			return errors.Wrap(err, "getting latest fee structure version")
		}
		fs.Version = latest + 1

		if err := svc.repos.Structures.DeactivateStructures(ctx, fs.SchoolID, fs.ClassID, fs.FeeType, exec); err != nil {
			return errors.Wrap(err, "deactivating fee structures")
		}
		fs, err = svc.repos.Structures.CreateStructure(ctx, fs, exec)
		return errors.Wrap(err, "inserting fee structure")
	})
	if err != nil {
		return FeeStructure{}, err
	}
	return fs, nil
}

func (svc *service) GetFeeStructure(ctx context.Context, schoolID, id string) (FeeStructure, error) {
	return svc.repos.Structures.GetStructure(ctx, schoolID, id)
}

func (svc *service) ListFeeStructures(ctx context.Context, schoolID, classID string) ([]FeeStructure, error) {
	structures, err := svc.repos.Structures.QueryStructures(ctx, schoolID, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	return structures, nil
}

// SyncStudentsToStructure copies the fees of structure id into the fee
// snapshots of the active students of its class.
func (svc *service) SyncStudentsToStructure(ctx context.Context, op Operator, id string) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}
	fs, err := svc.repos.Structures.GetStructure(ctx, op.SchoolID, id)
	if err != nil {
		return res, err
	}
	students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{
		SchoolID:   op.SchoolID,
		ClassID:    fs.ClassID,
		ActiveOnly: true,
	})
	if err != nil {
		return res, errors.Wrap(err, "querying students")
	}

	for _, st := range students {
		if err := ctx.Err(); err != nil {
			res.fail(st.ID, err)
			continue
		}
		st.OriginalTuitionFee = fs.TuitionFee
		st.OriginalAdmissionFee = fs.AdmissionFee
		st.OriginalExamFee = fs.ExamFee
		st.OriginalOtherFee = fs.OtherFee
		if _, err := svc.repos.Students.UpdateStudent(ctx, st); err != nil {
			res.fail(st.ID, errors.Wrap(err, "updating student"))
			continue
		}
		res.ok()
	}
	return res, nil
}

func setDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}
