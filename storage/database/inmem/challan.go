package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

type (
	challanRepository struct{ db *DB }
	paymentRepository struct{ db *DB }
)

var (
	_ fee.ChallanRepository = (*challanRepository)(nil)
	_ fee.PaymentRepository = (*paymentRepository)(nil)
)

func NewChallanRepository(db *DB) fee.ChallanRepository { return &challanRepository{db: db} }
func NewPaymentRepository(db *DB) fee.PaymentRepository { return &paymentRepository{db: db} }

func (repo *challanRepository) CreateChallan(_ context.Context, ch fee.Challan, _ ...core.DBExecutor) (fee.Challan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.challans {
		if c.SchoolID == ch.SchoolID && c.ChallanNumber == ch.ChallanNumber {
			return fee.Challan{}, errors.Wrap(fee.ErrDuplicateNumber, ch.ChallanNumber)
		}
	}
	ch.ID = newID()
	repo.db.challans[ch.ID] = ch
	return ch, nil
}

func (repo *challanRepository) GetChallan(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.Challan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ch, ok := repo.db.challans[id]
	if !ok || ch.SchoolID != schoolID {
		return fee.Challan{}, fee.ErrChallanNotFound
	}
	return ch, nil
}

func (repo *challanRepository) QueryChallans(_ context.Context, filter fee.ChallanFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]fee.Challan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := toSet(filter.IDs)
	studentIDs := toSet(filter.StudentIDs)
	statuses := make(map[fee.Status]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = struct{}{}
	}

	challans := make([]fee.Challan, 0)
	for _, ch := range repo.db.challans {
		if ch.SchoolID != filter.SchoolID {
			continue
		}
		if ids != nil {
			if _, ok := ids[ch.ID]; !ok {
				continue
			}
		}
		if studentIDs != nil {
			if _, ok := studentIDs[ch.StudentID]; !ok {
				continue
			}
		}
		if filter.Month != "" && ch.Month != filter.Month {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[ch.Status]; !ok {
				continue
			}
		}
		if filter.ClassID != "" {
			if st, ok := repo.db.students[ch.StudentID]; !ok || st.ClassID.String != filter.ClassID {
				continue
			}
		}
		challans = append(challans, ch)
	}
	sortChallans(challans, ordering)
	return challans, nil
}

func (repo *challanRepository) UpdateChallan(_ context.Context, ch fee.Challan, from fee.ChallanState, _ ...core.DBExecutor) (fee.Challan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.challans[ch.ID]
	if !ok || stored.SchoolID != ch.SchoolID {
		return fee.Challan{}, fee.ErrChallanNotFound
	}
	if !from.Matches(stored) {
		return fee.Challan{}, fee.ErrChallanChanged
	}
	repo.db.challans[ch.ID] = ch
	return ch, nil
}

func (repo *challanRepository) DeleteUnpaidChallans(_ context.Context, schoolID string, ids []string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		ch, ok := repo.db.challans[id]
		if !ok || ch.SchoolID != schoolID || !ch.IsPending() || ch.HasPayments() {
			continue
		}
		delete(repo.db.challans, id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (repo *challanRepository) MarkOverdue(_ context.Context, asOf, now time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, ch := range repo.db.challans {
		if ch.Status == fee.StatusPending && ch.DueDate.Before(asOf) {
			ch.Status = fee.StatusOverdue
			ch.UpdatedAt = now
			repo.db.challans[id] = ch
			n++
		}
	}
	return n, nil
}

func (repo *challanRepository) SchoolIDs(_ context.Context, statuses []fee.Status, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]struct{})
	schoolIDs := make([]string, 0)
	for _, ch := range repo.db.challans {
		if _, ok := seen[ch.SchoolID]; ok || !hasStatus(statuses, ch.Status) {
			continue
		}
		seen[ch.SchoolID] = struct{}{}
		schoolIDs = append(schoolIDs, ch.SchoolID)
	}
	sort.Strings(schoolIDs)
	return schoolIDs, nil
}

func hasStatus(statuses []fee.Status, s fee.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// sortChallans orders challans by ordering, then by challan number.
func sortChallans(challans []fee.Challan, ordering []core.DBOrdering) {
	sort.SliceStable(challans, func(i, j int) bool {
		a, b := challans[i], challans[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			case "due_date":
				cmp = compareTime(a.DueDate, b.DueDate)
			case "month":
				cmp = compareString(a.Month, b.Month)
			case "challan_number":
				cmp = compareString(a.ChallanNumber, b.ChallanNumber)
			case "total_amount":
				cmp = a.TotalAmount.Cmp(b.TotalAmount)
			}
			if cmp != 0 {
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return a.ChallanNumber < b.ChallanNumber
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p fee.Payment, _ ...core.DBExecutor) (fee.Payment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = newID()
	repo.db.payments = append(repo.db.payments, p)
	return p, nil
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter fee.PaymentFilter, _ ...core.DBExecutor) ([]fee.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	payments := make([]fee.Payment, 0)
	for _, p := range repo.db.payments {
		if p.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ChallanID != "" && p.ChallanID != filter.ChallanID {
			continue
		}
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}
