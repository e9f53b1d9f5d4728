package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

var studentColumns = []string{
	"id", "school_id", "class_id", "name", "guardian_name", "guardian_email", "is_active",
	"original_tuition_fee", "original_admission_fee", "original_exam_fee", "original_other_fee",
	"custom_tuition_fee", "use_custom_fees", "legacy_custom_fee", "fee_discount",
}

type studentRow struct {
	ID                   string              `db:"id"`
	SchoolID             string              `db:"school_id"`
	ClassID              null.String         `db:"class_id"`
	Name                 string              `db:"name"`
	GuardianName         string              `db:"guardian_name"`
	GuardianEmail        string              `db:"guardian_email"`
	IsActive             bool                `db:"is_active"`
	OriginalTuitionFee   decimal.Decimal     `db:"original_tuition_fee"`
	OriginalAdmissionFee decimal.Decimal     `db:"original_admission_fee"`
	OriginalExamFee      decimal.Decimal     `db:"original_exam_fee"`
	OriginalOtherFee     decimal.Decimal     `db:"original_other_fee"`
	CustomTuitionFee     decimal.NullDecimal `db:"custom_tuition_fee"`
	UseCustomFees        bool                `db:"use_custom_fees"`
	LegacyCustomFee      decimal.NullDecimal `db:"legacy_custom_fee"`
	FeeDiscount          decimal.Decimal     `db:"fee_discount"`
}

func (row studentRow) student() fee.Student {
	return fee.Student(row)
}

type classRow struct {
	ID         string              `db:"id"`
	SchoolID   string              `db:"school_id"`
	Name       string              `db:"name"`
	MonthlyFee decimal.NullDecimal `db:"monthly_fee"`
}

type (
	studentRepository struct{ repository }
	classRepository   struct{ repository }
)

var (
	_ fee.StudentRepository = (*studentRepository)(nil)
	_ fee.ClassRepository   = (*classRepository)(nil)
)

func NewStudentRepository(exec core.DBExecutor) fee.StudentRepository {
	return &studentRepository{repository{exec: exec}}
}

func NewClassRepository(exec core.DBExecutor) fee.ClassRepository {
	return &classRepository{repository{exec: exec}}
}

func (repo studentRepository) GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.Student, error) {
	if !validUUID(id) {
		return fee.Student{}, fee.ErrStudentNotFound
	}
	b := psql.Select(studentColumns...).From("student").Where(sq.Eq{"id": id, "school_id": schoolID})

	var row studentRow
	if err := repo.get(ctx, exec, &row, b, fee.ErrStudentNotFound); err != nil {
		if err == fee.ErrStudentNotFound {
			return fee.Student{}, err
		}
		return fee.Student{}, errors.Wrap(err, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter fee.StudentFilter, exec ...core.DBExecutor) ([]fee.Student, error) {
	b := psql.Select(studentColumns...).From("student").Where(sq.Eq{"school_id": filter.SchoolID}).OrderBy("name ASC")
	if len(filter.IDs) > 0 {
		b = b.Where(sq.Eq{"id": uuids(filter.IDs)})
	}
	if filter.ClassID != "" {
		b = b.Where(sq.Eq{"class_id": filter.ClassID})
	}
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}

	var rows []studentRow
	if err := repo.selectAll(ctx, exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]fee.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, st fee.Student, exec ...core.DBExecutor) (fee.Student, error) {
	b := psql.Update("student").SetMap(map[string]interface{}{
		"original_tuition_fee":   st.OriginalTuitionFee,
		"original_admission_fee": st.OriginalAdmissionFee,
		"original_exam_fee":      st.OriginalExamFee,
		"original_other_fee":     st.OriginalOtherFee,
		"custom_tuition_fee":     st.CustomTuitionFee,
		"use_custom_fees":        st.UseCustomFees,
		"legacy_custom_fee":      st.LegacyCustomFee,
		"fee_discount":           st.FeeDiscount,
	}).Where(sq.Eq{"id": st.ID, "school_id": st.SchoolID})

	n, err := repo.execute(ctx, exec, b)
	if err != nil {
		return fee.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return fee.Student{}, fee.ErrStudentNotFound
	}
	return st, nil
}

func (repo classRepository) GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.Class, error) {
	if !validUUID(id) {
		return fee.Class{}, fee.ErrClassNotFound
	}
	b := psql.Select("id", "school_id", "name", "monthly_fee").From("class").Where(sq.Eq{"id": id, "school_id": schoolID})

	var row classRow
	if err := repo.get(ctx, exec, &row, b, fee.ErrClassNotFound); err != nil {
		if err == fee.ErrClassNotFound {
			return fee.Class{}, err
		}
		return fee.Class{}, errors.Wrap(err, "finding class")
	}
	return fee.Class(row), nil
}
