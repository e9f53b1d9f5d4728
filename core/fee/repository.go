package fee

import (
	"context"
	"time"

	"github.com/trezcool/masomofees/core"
)

type (
	StudentFilter struct {
		SchoolID   string
		IDs        []string
		ClassID    string
		ActiveOnly bool
	}

	ChallanFilter struct {
		SchoolID   string
		IDs        []string
		StudentIDs []string
		ClassID    string
		Month      string
		Statuses   []Status
	}

	PaymentFilter struct {
		SchoolID  string
		ChallanID string
		StudentID string
	}

	StudentRepository interface {
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
	}

	ClassRepository interface {
		GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Class, error)
	}

	StructureRepository interface {
		CreateStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		GetStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (FeeStructure, error)
		GetActiveStructure(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) (FeeStructure, error)
		QueryStructures(ctx context.Context, schoolID, classID string, exec ...core.DBExecutor) ([]FeeStructure, error)
		LatestVersion(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) (int, error)
		DeactivateStructures(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) error
	}

	ChallanRepository interface {
		CreateChallan(ctx context.Context, ch Challan, exec ...core.DBExecutor) (Challan, error)
		GetChallan(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Challan, error)
		QueryChallans(ctx context.Context, filter ChallanFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Challan, error)
		// UpdateChallan saves ch only while the stored challan is still in state from,
		// ErrChallanChanged otherwise.
		UpdateChallan(ctx context.Context, ch Challan, from ChallanState, exec ...core.DBExecutor) (Challan, error)
		// DeleteUnpaidChallans deletes the pending challans of ids that hold no payment
		// and returns the ids actually deleted.
		DeleteUnpaidChallans(ctx context.Context, schoolID string, ids []string, exec ...core.DBExecutor) ([]string, error)
		// MarkOverdue flags every pending challan due before asOf, across schools.
		MarkOverdue(ctx context.Context, asOf, now time.Time, exec ...core.DBExecutor) (int, error)
		// SchoolIDs lists the schools holding at least one challan with one of statuses.
		SchoolIDs(ctx context.Context, statuses []Status, exec ...core.DBExecutor) ([]string, error)
	}

	PaymentRepository interface {
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter, exec ...core.DBExecutor) ([]Payment, error)
	}

	// Sequencer hands out monotonic numbers per key, starting at 1.
	Sequencer interface {
		Next(ctx context.Context, key string) (int64, error)
	}

	// Locker is a non-blocking mutual exclusion over string keys.
	Locker interface {
		TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
		Unlock(ctx context.Context, key string) error
	}

	// Repositories groups the stores the fee service reads and writes.
	Repositories struct {
		Students   StudentRepository
		Classes    ClassRepository
		Structures StructureRepository
		Challans   ChallanRepository
		Payments   PaymentRepository
	}
)
