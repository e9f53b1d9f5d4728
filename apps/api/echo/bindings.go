package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma separated `ordering` query param; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:]
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// ChallanQuery holds the filters of the challan listing.
type ChallanQuery struct {
	Month     string `query:"month"`
	Status    string `query:"status"`
	StudentID string `query:"student_id"`
	ClassID   string `query:"class_id"`
}

func (q ChallanQuery) Filter() fee.ChallanFilter {
	filter := fee.ChallanFilter{Month: q.Month, ClassID: q.ClassID}
	if q.Status != "" {
		for _, s := range strings.Split(q.Status, ",") {
			filter.Statuses = append(filter.Statuses, fee.Status(strings.TrimSpace(s)))
		}
	}
	if q.StudentID != "" {
		filter.StudentIDs = []string{q.StudentID}
	}
	return filter
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	// IDsRequest carries the ids a bulk action applies to.
	IDsRequest struct {
		IDs []string `json:"ids" validate:"required,min=1"`
	}

	BulkMarkPaidRequest struct {
		IDsRequest
		fee.PaymentInput
	}

	BulkEditRequest struct {
		IDsRequest
		fee.ChallanEdit
	}

	BulkStudentFeesRequest struct {
		StudentIDs []string `json:"student_ids" validate:"required,min=1"`
		fee.StudentFeeUpdate
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)
