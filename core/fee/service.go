package fee

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/trezcool/masomofees/core"
)

var NowFunc = time.Now // mockable

// Operator is the staff member on whose behalf an operation runs.
type Operator struct {
	UserID   string
	SchoolID string
}

func (op Operator) IsZero() bool { return op.UserID == "" || op.SchoolID == "" }

// SystemOperator acts for scheduled jobs.
func SystemOperator(schoolID string) Operator {
	return Operator{UserID: "system", SchoolID: schoolID}
}

type (
	GenerateRequest struct {
		StudentID      string     `json:"student_id" validate:"required"`
		Month          string     `json:"month" validate:"required,yearmonth"`
		IncludeExamFee bool       `json:"include_exam_fee"`
		DueDate        *time.Time `json:"due_date"`
	}

	BulkGenerateRequest struct {
		StudentIDs     []string   `json:"student_ids" validate:"required,min=1,dive,required"`
		Month          string     `json:"month" validate:"required,yearmonth"`
		IncludeExamFee bool       `json:"include_exam_fee"`
		DueDate        *time.Time `json:"due_date"`
		SkipExisting   bool       `json:"skip_existing"`
	}

	RegenerateRequest struct {
		FeeStructureID string     `json:"fee_structure_id" validate:"required"`
		Month          string     `json:"month" validate:"required,yearmonth"`
		StudentIDs     []string   `json:"student_ids" validate:"required,min=1,dive,required"`
		IncludeExamFee bool       `json:"include_exam_fee"`
		DueDate        *time.Time `json:"due_date"`
	}

	PaymentInput struct {
		Amount decimal.Decimal `json:"amount" validate:"gte=0"`
		Date   *time.Time      `json:"date"`
		Method PaymentMethod   `json:"method" validate:"required,oneof=cash bank online cheque"`
		Notes  string          `json:"notes" validate:"max=500"`
	}

	ChallanEdit struct {
		DueDate   *time.Time       `json:"due_date"`
		Discount  *decimal.Decimal `json:"discount" validate:"omitempty,gte=0"`
		ExamFee   *decimal.Decimal `json:"exam_fee" validate:"omitempty,gte=0"`
		OtherFees *decimal.Decimal `json:"other_fees" validate:"omitempty,gte=0"`
	}

	StudentFeeUpdate struct {
		UseCustomFees    *bool            `json:"use_custom_fees"`
		CustomTuitionFee *decimal.Decimal `json:"custom_tuition_fee" validate:"omitempty,gte=0"`
		FeeDiscount      *decimal.Decimal `json:"fee_discount" validate:"omitempty,gte=0"`
	}

	NewFeeStructure struct {
		ClassID       string          `json:"class_id" validate:"required"`
		TuitionFee    decimal.Decimal `json:"tuition_fee" validate:"gte=0"`
		AdmissionFee  decimal.Decimal `json:"admission_fee" validate:"gte=0"`
		ExamFee       decimal.Decimal `json:"exam_fee" validate:"gte=0"`
		OtherFee      decimal.Decimal `json:"other_fee" validate:"gte=0"`
		EffectiveFrom *time.Time      `json:"effective_from"`
	}

	FeeStructureChanges struct {
		TuitionFee    *decimal.Decimal `json:"tuition_fee" validate:"omitempty,gte=0"`
		AdmissionFee  *decimal.Decimal `json:"admission_fee" validate:"omitempty,gte=0"`
		ExamFee       *decimal.Decimal `json:"exam_fee" validate:"omitempty,gte=0"`
		OtherFee      *decimal.Decimal `json:"other_fee" validate:"omitempty,gte=0"`
		EffectiveFrom *time.Time       `json:"effective_from"`
	}

	// Receipt is the outcome of a recorded payment.
	Receipt struct {
		Challan Challan `json:"challan"`
		Payment Payment `json:"payment"`
	}
)

type Options struct {
	ChallanPrefix      string
	BulkLockTTL        time.Duration
	RemindersPerSecond float64
}

func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		ChallanPrefix:      conf.Fees.ChallanPrefix,
		BulkLockTTL:        conf.Fees.BulkLockTTL,
		RemindersPerSecond: conf.Fees.RemindersPerSecond,
	}
}

type (
	Service interface {
		Resolver

		GenerateChallan(ctx context.Context, op Operator, req GenerateRequest) (Challan, error)
		BulkGenerate(ctx context.Context, op Operator, req BulkGenerateRequest) (BulkResult, error)
		Regenerate(ctx context.Context, op Operator, req RegenerateRequest) (BulkResult, error)

		BulkMarkPaid(ctx context.Context, op Operator, ids []string, in PaymentInput) (BulkResult, error)
		BulkDelete(ctx context.Context, op Operator, ids []string) (BulkResult, error)
		BulkCancel(ctx context.Context, op Operator, ids []string) (BulkResult, error)
		BulkEdit(ctx context.Context, op Operator, ids []string, edit ChallanEdit) (BulkResult, error)
		BulkUpdateStudentFees(ctx context.Context, op Operator, studentIDs []string, upd StudentFeeUpdate) (BulkResult, error)

		CreateFeeStructure(ctx context.Context, op Operator, nfs NewFeeStructure) (FeeStructure, error)
		NewFeeStructureVersion(ctx context.Context, op Operator, id string, changes FeeStructureChanges) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, schoolID, id string) (FeeStructure, error)
		ListFeeStructures(ctx context.Context, schoolID, classID string) ([]FeeStructure, error)
		SyncStudentsToStructure(ctx context.Context, op Operator, id string) (BulkResult, error)

		RecordPayment(ctx context.Context, op Operator, challanID string, in PaymentInput) (Receipt, error)
		StudentLedger(ctx context.Context, schoolID, studentID string) (Ledger, error)

		SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
		Defaulters(ctx context.Context, schoolID string) ([]Defaulter, error)
		RemindDefaulters(ctx context.Context, op Operator) (BulkResult, error)
		RemindAllDefaulters(ctx context.Context) (BulkResult, error)

		GetChallan(ctx context.Context, schoolID, id string) (Challan, error)
		QueryChallans(ctx context.Context, schoolID string, filter ChallanFilter, ordering []core.DBOrdering) ([]Challan, error)
	}

	service struct {
		*resolver
		repos    Repositories
		tx       core.Transactor
		seq      Sequencer
		locker   Locker
		emailSvc core.EmailService
		validate *validator.Validate
		logger   core.Logger
		limiter  *rate.Limiter
		opts     Options
	}
)

var _ Service = (*service)(nil)

func NewService(
	repos Repositories,
	tx core.Transactor,
	seq Sequencer,
	locker Locker,
	emailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
	opts Options,
) Service {
	if opts.ChallanPrefix == "" {
		opts.ChallanPrefix = "CH"
	}
	if opts.BulkLockTTL <= 0 {
		opts.BulkLockTTL = 10 * time.Minute
	}
	limit := rate.Inf
	if opts.RemindersPerSecond > 0 {
		limit = rate.Limit(opts.RemindersPerSecond)
	}
	return &service{
		resolver: &resolver{repos: repos, logger: logger},
		repos:    repos,
		tx:       tx,
		seq:      seq,
		locker:   locker,
		emailSvc: emailSvc,
		validate: validate,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
		opts:     opts,
	}
}

func (svc *service) checkOperator(op Operator) error {
	if op.IsZero() {
		return ErrUnauthenticated
	}
	return nil
}

func (svc *service) now() time.Time {
	return NowFunc().UTC()
}

func (svc *service) GetChallan(ctx context.Context, schoolID, id string) (Challan, error) {
	return svc.repos.Challans.GetChallan(ctx, schoolID, id)
}

func (svc *service) QueryChallans(ctx context.Context, schoolID string, filter ChallanFilter, ordering []core.DBOrdering) ([]Challan, error) {
	filter.SchoolID = schoolID
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	challans, err := svc.repos.Challans.QueryChallans(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying challans")
	}
	return challans, nil
}
