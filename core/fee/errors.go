package fee

import "github.com/pkg/errors"

var (
	ErrUnauthenticated      = errors.New("user not authenticated")
	ErrStudentNotFound      = errors.New("student not found")
	ErrStudentHasNoClass    = errors.New("student has no class assigned")
	ErrStudentInactive      = errors.New("student is not active")
	ErrClassNotFound        = errors.New("class not found")
	ErrFeeStructureNotFound = errors.New("fee structure not found")
	ErrChallanNotFound      = errors.New("challan not found")
	ErrChallanNotPending    = errors.New("challan is not pending")
	ErrChallanNotPayable    = errors.New("challan is not pending or overdue")
	ErrChallanExists        = errors.New("student already has a challan for this month")
	ErrChallanChanged       = errors.New("challan was modified by another operation")
	ErrChallanHasPayments   = errors.New("challan already has payments")
	ErrTotalBelowPaid       = errors.New("total would fall below the amount already paid")
	ErrDuplicateNumber      = errors.New("duplicate challan number")
	ErrStudentClassMismatch = errors.New("student is not in the fee structure's class")
	ErrBulkInProgress       = errors.New("a bulk operation is already running for this month")
	ErrInvalidAmount        = errors.New("amount must be positive and not exceed the outstanding balance")
	ErrNoGuardianEmail      = errors.New("student has no guardian email")
)

// IsNotFound reports whether err is one of the fee "not found" errors.
func IsNotFound(err error) bool {
	switch errors.Cause(err) {
	case ErrStudentNotFound, ErrClassNotFound, ErrFeeStructureNotFound, ErrChallanNotFound:
		return true
	}
	return false
}

// IsConflict reports whether err is a state precondition failure.
func IsConflict(err error) bool {
	switch errors.Cause(err) {
	case ErrChallanNotPending, ErrChallanNotPayable, ErrChallanExists, ErrChallanChanged, ErrChallanHasPayments,
		ErrDuplicateNumber, ErrBulkInProgress, ErrStudentInactive, ErrStudentClassMismatch:
		return true
	}
	return false
}
