package fee

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core"
)

// Source tells where a student's tuition fee came from.
type Source string

const (
	SourceCustom    Source = "custom"
	SourceClass     Source = "class"
	SourceStructure Source = "structure"
)

// Breakdown is a student's effective fees for one month.
// A zero Breakdown means no fee is configured for the student.
type Breakdown struct {
	TuitionFee   decimal.Decimal `json:"tuition_fee"`
	AdmissionFee decimal.Decimal `json:"admission_fee"`
	ExamFee      decimal.Decimal `json:"exam_fee"`
	OtherFee     decimal.Decimal `json:"other_fee"`
	Discount     decimal.Decimal `json:"discount"`
	Source       Source          `json:"source"`

	// set when the tuition came from a fee structure
	FeeStructureID string `json:"fee_structure_id,omitempty"`
}

// MonthlyNet is the tuition less the discount, floored at 0.
func (b Breakdown) MonthlyNet() decimal.Decimal {
	return clampZero(b.TuitionFee.Sub(b.Discount))
}

// Total applies the challan formula to b.
func (b Breakdown) Total(includeExam bool) decimal.Decimal {
	total := b.TuitionFee.Add(b.AdmissionFee).Add(b.OtherFee).Sub(b.Discount)
	if includeExam {
		total = total.Add(b.ExamFee)
	}
	return clampZero(total)
}

type Resolver interface {
	Resolve(ctx context.Context, schoolID, studentID string) (Breakdown, error)
}

type resolver struct {
	repos  Repositories
	logger core.Logger
}

var _ Resolver = (*resolver)(nil)

func NewResolver(repos Repositories, logger core.Logger) Resolver {
	return &resolver{repos: repos, logger: logger}
}

func (r *resolver) Resolve(ctx context.Context, schoolID, studentID string) (Breakdown, error) {
	st, err := r.repos.Students.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		if errors.Cause(err) != ErrStudentNotFound {
			r.logger.Error("resolving fees: loading student "+studentID, err)
		}
		return Breakdown{}, err
	}
	b, err := r.resolveStudent(ctx, st)
	if err != nil && errors.Cause(err) != ErrStudentHasNoClass {
		r.logger.Error("resolving fees for student "+studentID, err)
	}
	return b, err
}

// resolveStudent applies, in order: custom override, class monthly fee,
// active monthly fee structure, then 0.
func (r *resolver) resolveStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Breakdown, error) {
	b := Breakdown{
		AdmissionFee: st.OriginalAdmissionFee,
		ExamFee:      st.OriginalExamFee,
		OtherFee:     st.OriginalOtherFee,
		Discount:     st.FeeDiscount,
	}

	if tuition, ok := st.customTuition(); ok {
		b.TuitionFee = tuition
		b.Source = SourceCustom
		return b, nil
	}

	if !st.ClassID.Valid || st.ClassID.String == "" {
		return Breakdown{}, ErrStudentHasNoClass
	}

	class, err := r.repos.Classes.GetClass(ctx, st.SchoolID, st.ClassID.String, exec...)
	if err != nil {
		return Breakdown{}, errors.Wrap(err, "loading class")
	}
	if class.MonthlyFee.Valid {
		b.TuitionFee = class.MonthlyFee.Decimal
		b.Source = SourceClass
		return b, nil
	}

	b.Source = SourceStructure
	fs, err := r.repos.Structures.GetActiveStructure(ctx, st.SchoolID, class.ID, FeeTypeMonthly, exec...)
	switch {
	case err == nil:
		b.TuitionFee = fs.TuitionFee
		b.FeeStructureID = fs.ID
	case errors.Cause(err) == ErrFeeStructureNotFound:
		b.TuitionFee = decimal.Zero
	default:
		return Breakdown{}, errors.Wrap(err, "loading active fee structure")
	}
	return b, nil
}
