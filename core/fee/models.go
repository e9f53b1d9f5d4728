package fee

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// FeeTypeMonthly is the only fee type challans are generated from.
const FeeTypeMonthly = "Monthly Fee"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodOnline PaymentMethod = "online"
	MethodCheque PaymentMethod = "cheque"
)

type Class struct {
	ID         string              `json:"id"`
	SchoolID   string              `json:"school_id"`
	Name       string              `json:"name"`
	MonthlyFee decimal.NullDecimal `json:"monthly_fee"`
}

// Student holds the fee-related part of a student record.
// Students are never deleted, only deactivated.
type Student struct {
	ID            string      `json:"id"`
	SchoolID      string      `json:"school_id"`
	ClassID       null.String `json:"class_id"`
	Name          string      `json:"name"`
	GuardianName  string      `json:"guardian_name"`
	GuardianEmail string      `json:"guardian_email"`
	IsActive      bool        `json:"is_active"`

	// snapshots taken from the class defaults at admission
	OriginalTuitionFee   decimal.Decimal `json:"original_tuition_fee"`
	OriginalAdmissionFee decimal.Decimal `json:"original_admission_fee"`
	OriginalExamFee      decimal.Decimal `json:"original_exam_fee"`
	OriginalOtherFee     decimal.Decimal `json:"original_other_fee"`

	CustomTuitionFee decimal.NullDecimal `json:"custom_tuition_fee"`
	UseCustomFees    bool                `json:"use_custom_fees"`
	LegacyCustomFee  decimal.NullDecimal `json:"legacy_custom_fee"`
	FeeDiscount      decimal.Decimal     `json:"fee_discount"`
}

// customTuition returns the student's overriding tuition, if any.
func (s Student) customTuition() (decimal.Decimal, bool) {
	if s.UseCustomFees && s.CustomTuitionFee.Valid {
		return s.CustomTuitionFee.Decimal, true
	}
	if s.LegacyCustomFee.Valid && s.LegacyCustomFee.Decimal.IsPositive() {
		return s.LegacyCustomFee.Decimal, true
	}
	return decimal.Zero, false
}

type FeeStructure struct {
	ID            string          `json:"id"`
	SchoolID      string          `json:"school_id"`
	ClassID       string          `json:"class_id"`
	FeeType       string          `json:"fee_type"`
	TuitionFee    decimal.Decimal `json:"tuition_fee"`
	AdmissionFee  decimal.Decimal `json:"admission_fee"`
	ExamFee       decimal.Decimal `json:"exam_fee"`
	OtherFee      decimal.Decimal `json:"other_fee"`
	Version       int             `json:"version"`
	IsActive      bool            `json:"is_active"`
	EffectiveFrom time.Time       `json:"effective_from"` // UTC
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
}

type Challan struct {
	ID             string          `json:"id"`
	SchoolID       string          `json:"school_id"`
	ChallanNumber  string          `json:"challan_number"`
	StudentID      string          `json:"student_id"`
	Month          string          `json:"month"` // YYYY-MM
	MonthlyFee     decimal.Decimal `json:"monthly_fee"`
	ExamFee        decimal.Decimal `json:"exam_fee"`
	AdmissionFee   decimal.Decimal `json:"admission_fee"`
	OtherFees      decimal.Decimal `json:"other_fees"`
	Discount       decimal.Decimal `json:"discount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Status         Status          `json:"status"`
	DueDate        time.Time       `json:"due_date"` // UTC
	PaidDate       null.Time       `json:"paid_date"`
	FeeStructureID null.String     `json:"fee_structure_id"`
	GeneratedBy    string          `json:"generated_by"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at"` // UTC
}

// ComputeTotal sets TotalAmount = max(0, monthly + exam + admission + other - discount).
func (c *Challan) ComputeTotal() {
	total := c.MonthlyFee.Add(c.ExamFee).Add(c.AdmissionFee).Add(c.OtherFees).Sub(c.Discount)
	c.TotalAmount = clampZero(total)
}

// Outstanding is the amount still due on c.
func (c Challan) Outstanding() decimal.Decimal {
	return clampZero(c.TotalAmount.Sub(c.AmountPaid))
}

func (c Challan) IsPending() bool { return c.Status == StatusPending }

// HasPayments reports whether money was already received against c.
func (c Challan) HasPayments() bool { return c.AmountPaid.IsPositive() }

// ChallanState is what a guarded write expects the stored challan to still hold.
type ChallanState struct {
	Status     Status
	AmountPaid decimal.Decimal
}

func (c Challan) State() ChallanState {
	return ChallanState{Status: c.Status, AmountPaid: c.AmountPaid}
}

func (s ChallanState) Matches(c Challan) bool {
	return c.Status == s.Status && c.AmountPaid.Equal(s.AmountPaid)
}

// IsPayable reports whether payments may still be recorded against c.
func (c Challan) IsPayable() bool {
	return c.Status == StatusPending || c.Status == StatusOverdue
}

type Payment struct {
	ID            string          `json:"id"`
	SchoolID      string          `json:"school_id"`
	ChallanID     string          `json:"challan_id"`
	StudentID     string          `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"` // UTC
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Notes         string          `json:"notes"`
	RecordedBy    string          `json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
}

// Ledger summarises a student's billing history.
type Ledger struct {
	StudentID   string          `json:"student_id"`
	TotalBilled decimal.Decimal `json:"total_billed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Challans    []Challan       `json:"challans"`
	Payments    []Payment       `json:"payments"`
}

type Defaulter struct {
	Student       Student         `json:"student"`
	OverdueCount  int             `json:"overdue_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	OldestDueDate time.Time       `json:"oldest_due_date"`
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
