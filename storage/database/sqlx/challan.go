package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)


const pqUniqueViolation = "23505"

var challanColumns = []string{
	"id", "school_id", "challan_number", "student_id", "month", "monthly_fee", "exam_fee", "admission_fee",
	"other_fees", "discount", "total_amount", "amount_paid", "status", "due_date", "paid_date",
	"fee_structure_id", "generated_by", "created_at", "updated_at",
}

var challanOrderings = map[string]struct{}{
	"created_at":     {},
	"due_date":       {},
	"month":          {},
	"challan_number": {},
	"total_amount":   {},
}

type challanRow struct {
	ID             string          `db:"id"`
	SchoolID       string          `db:"school_id"`
	ChallanNumber  string          `db:"challan_number"`
	StudentID      string          `db:"student_id"`
	Month          string          `db:"month"`
	MonthlyFee     decimal.Decimal `db:"monthly_fee"`
	ExamFee        decimal.Decimal `db:"exam_fee"`
	AdmissionFee   decimal.Decimal `db:"admission_fee"`
	OtherFees      decimal.Decimal `db:"other_fees"`
	Discount       decimal.Decimal `db:"discount"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	AmountPaid     decimal.Decimal `db:"amount_paid"`
	Status         fee.Status      `db:"status"`
	DueDate        time.Time       `db:"due_date"`
	PaidDate       null.Time       `db:"paid_date"`
	FeeStructureID null.String     `db:"fee_structure_id"`
	GeneratedBy    string          `db:"generated_by"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (row challanRow) challan() fee.Challan {
	ch := fee.Challan(row)
	ch.DueDate = ch.DueDate.UTC()
	ch.CreatedAt = ch.CreatedAt.UTC()
	ch.UpdatedAt = ch.UpdatedAt.UTC()
	if ch.PaidDate.Valid {
		ch.PaidDate.Time = ch.PaidDate.Time.UTC()
	}
	return ch
}

type paymentRow struct {
	ID            string            `db:"id"`
	SchoolID      string            `db:"school_id"`
	ChallanID     string            `db:"challan_id"`
	StudentID     string            `db:"student_id"`
	Amount        decimal.Decimal   `db:"amount"`
	PaymentDate   time.Time         `db:"payment_date"`
	PaymentMethod fee.PaymentMethod `db:"payment_method"`
	Notes         string            `db:"notes"`
	RecordedBy    string            `db:"recorded_by"`
	CreatedAt     time.Time         `db:"created_at"`
}

var paymentColumns = []string{
	"id", "school_id", "challan_id", "student_id", "amount", "payment_date", "payment_method",
	"notes", "recorded_by", "created_at",
}

type (
	challanRepository struct{ repository }
	paymentRepository struct{ repository }
)

var (
	_ fee.ChallanRepository = (*challanRepository)(nil)
	_ fee.PaymentRepository = (*paymentRepository)(nil)
)

func NewChallanRepository(exec core.DBExecutor) fee.ChallanRepository {
	return &challanRepository{repository{exec: exec}}
}

func NewPaymentRepository(exec core.DBExecutor) fee.PaymentRepository {
	return &paymentRepository{repository{exec: exec}}
}

func (repo challanRepository) CreateChallan(ctx context.Context, ch fee.Challan, exec ...core.DBExecutor) (fee.Challan, error) {
	ch.ID = newID()
	b := psql.Insert("challan").Columns(challanColumns...).Values(
		ch.ID, ch.SchoolID, ch.ChallanNumber, ch.StudentID, ch.Month, ch.MonthlyFee, ch.ExamFee, ch.AdmissionFee,
		ch.OtherFees, ch.Discount, ch.TotalAmount, ch.AmountPaid, ch.Status, ch.DueDate.UTC(), ch.PaidDate,
		ch.FeeStructureID, ch.GeneratedBy, ch.CreatedAt.UTC(), ch.UpdatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, exec, b); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return fee.Challan{}, errors.Wrap(fee.ErrDuplicateNumber, ch.ChallanNumber)
		}
		return fee.Challan{}, err
	}
	return ch, nil
}

func (repo challanRepository) GetChallan(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.Challan, error) {
	if !validUUID(id) {
		return fee.Challan{}, fee.ErrChallanNotFound
	}
	b := psql.Select(challanColumns...).From("challan").Where(sq.Eq{"id": id, "school_id": schoolID})

	var row challanRow
	if err := repo.get(ctx, exec, &row, b, fee.ErrChallanNotFound); err != nil {
		if err == fee.ErrChallanNotFound {
			return fee.Challan{}, err
		}
		return fee.Challan{}, errors.Wrap(err, "finding challan")
	}
	return row.challan(), nil
}

func (repo challanRepository) QueryChallans(ctx context.Context, filter fee.ChallanFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.Challan, error) {
	b := psql.Select(challanColumns...).From("challan").Where(sq.Eq{"school_id": filter.SchoolID})
	if len(filter.IDs) > 0 {
		b = b.Where(sq.Eq{"id": uuids(filter.IDs)})
	}
	if len(filter.StudentIDs) > 0 {
		b = b.Where(sq.Eq{"student_id": uuids(filter.StudentIDs)})
	}
	if filter.Month != "" {
		b = b.Where(sq.Eq{"month": filter.Month})
	}
	if len(filter.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.ClassID != "" {
		if !validUUID(filter.ClassID) {
			return []fee.Challan{}, nil
		}
		sub := psql.Select("id").From("student").Where(sq.Eq{"class_id": filter.ClassID})
		query, args, err := sub.ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "building query")
		}
		b = b.Where("student_id IN ("+query+")", args...)
	}
	b = orderBy(b, ordering, challanOrderings).OrderBy("challan_number ASC")

	var rows []challanRow
	if err := repo.selectAll(ctx, exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying challans")
	}
	challans := make([]fee.Challan, 0, len(rows))
	for _, row := range rows {
		challans = append(challans, row.challan())
	}
	return challans, nil
}

func (repo challanRepository) UpdateChallan(ctx context.Context, ch fee.Challan, from fee.ChallanState, exec ...core.DBExecutor) (fee.Challan, error) {
	b := psql.Update("challan").SetMap(map[string]interface{}{
		"monthly_fee":   ch.MonthlyFee,
		"exam_fee":      ch.ExamFee,
		"admission_fee": ch.AdmissionFee,
		"other_fees":    ch.OtherFees,
		"discount":      ch.Discount,
		"total_amount":  ch.TotalAmount,
		"amount_paid":   ch.AmountPaid,
		"status":        ch.Status,
		"due_date":      ch.DueDate.UTC(),
		"paid_date":     ch.PaidDate,
		"updated_at":    ch.UpdatedAt.UTC(),
	}).Where(sq.Eq{
		"id":          ch.ID,
		"school_id":   ch.SchoolID,
		"status":      from.Status,
		"amount_paid": from.AmountPaid,
	})

	n, err := repo.execute(ctx, exec, b)
	if err != nil {
		return fee.Challan{}, errors.Wrap(err, "updating challan")
	}
	if n == 0 {
		if _, err := repo.GetChallan(ctx, ch.SchoolID, ch.ID, exec...); err != nil {
			return fee.Challan{}, err
		}
		return fee.Challan{}, fee.ErrChallanChanged
	}
	return ch, nil
}

func (repo challanRepository) DeleteUnpaidChallans(ctx context.Context, schoolID string, ids []string, exec ...core.DBExecutor) ([]string, error) {
	deleted := make([]string, 0, len(ids))
	if ids = uuids(ids); len(ids) == 0 {
		return deleted, nil
	}
	b := psql.Delete("challan").
		Where(sq.Eq{"school_id": schoolID, "id": ids, "status": fee.StatusPending}).
		Where(sq.Eq{"amount_paid": 0}).
		Suffix("RETURNING id")
	if err := repo.selectAll(ctx, exec, &deleted, b); err != nil {
		return nil, errors.Wrap(err, "deleting challans")
	}
	return deleted, nil
}

func (repo challanRepository) MarkOverdue(ctx context.Context, asOf, now time.Time, exec ...core.DBExecutor) (int, error) {
	b := psql.Update("challan").
		Set("status", fee.StatusOverdue).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"status": fee.StatusPending}).
		Where(sq.Lt{"due_date": asOf.UTC()})
	n, err := repo.execute(ctx, exec, b)
	if err != nil {
		return 0, errors.Wrap(err, "marking challans overdue")
	}
	return n, nil
}

func (repo challanRepository) SchoolIDs(ctx context.Context, statuses []fee.Status, exec ...core.DBExecutor) ([]string, error) {
	b := psql.Select("DISTINCT school_id").From("challan").OrderBy("school_id ASC")
	if len(statuses) > 0 {
		b = b.Where(sq.Eq{"status": statuses})
	}

	schoolIDs := make([]string, 0)
	if err := repo.selectAll(ctx, exec, &schoolIDs, b); err != nil {
		return nil, errors.Wrap(err, "listing schools")
	}
	return schoolIDs, nil
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	p.ID = newID()
	b := psql.Insert("payment").Columns(paymentColumns...).Values(
		p.ID, p.SchoolID, p.ChallanID, p.StudentID, p.Amount, p.PaymentDate.UTC(), p.PaymentMethod,
		p.Notes, p.RecordedBy, p.CreatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, exec, b); err != nil {
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter fee.PaymentFilter, exec ...core.DBExecutor) ([]fee.Payment, error) {
	b := psql.Select(paymentColumns...).From("payment").Where(sq.Eq{"school_id": filter.SchoolID}).
		OrderBy("payment_date ASC", "created_at ASC")
	if filter.ChallanID != "" {
		if !validUUID(filter.ChallanID) {
			return []fee.Payment{}, nil
		}
		b = b.Where(sq.Eq{"challan_id": filter.ChallanID})
	}
	if filter.StudentID != "" {
		if !validUUID(filter.StudentID) {
			return []fee.Payment{}, nil
		}
		b = b.Where(sq.Eq{"student_id": filter.StudentID})
	}

	var rows []paymentRow
	if err := repo.selectAll(ctx, exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]fee.Payment, 0, len(rows))
	for _, row := range rows {
		p := fee.Payment(row)
		p.PaymentDate = p.PaymentDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	return payments, nil
}

// uuids drops malformed ids, which can never match a uuid column.
func uuids(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}
