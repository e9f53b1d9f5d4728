package fee

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core"
)

const reminderTemplate = "fee_reminder"

// SweepOverdue flags as overdue every pending challan due before the UTC day of asOf.
// A challan is never overdue on its own due date, whatever the time of the sweep.
func (svc *service) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	y, m, d := asOf.UTC().Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	n, err := svc.repos.Challans.MarkOverdue(ctx, startOfDay, svc.now())
	if err != nil {
		return 0, errors.Wrap(err, "marking challans overdue")
	}
	if n > 0 {
		svc.logger.Info(fmt.Sprintf("%d challan(s) marked overdue", n))
	}
	return n, nil
}

// Defaulters lists the students of a school holding overdue challans, largest debt first.
func (svc *service) Defaulters(ctx context.Context, schoolID string) ([]Defaulter, error) {
	overdue, err := svc.repos.Challans.QueryChallans(ctx, ChallanFilter{
		SchoolID: schoolID,
		Statuses: []Status{StatusOverdue},
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying overdue challans")
	}
	if len(overdue) == 0 {
		return []Defaulter{}, nil
	}

	byStudent := make(map[string]*Defaulter)
	studentIDs := make([]string, 0)
	for _, ch := range overdue {
		d, ok := byStudent[ch.StudentID]
		if !ok {
			d = &Defaulter{OverdueAmount: decimal.Zero, OldestDueDate: ch.DueDate}
			byStudent[ch.StudentID] = d
			studentIDs = append(studentIDs, ch.StudentID)
		}
		d.OverdueCount++
		d.OverdueAmount = d.OverdueAmount.Add(ch.Outstanding())
		if ch.DueDate.Before(d.OldestDueDate) {
			d.OldestDueDate = ch.DueDate
		}
	}

	students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{SchoolID: schoolID, IDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	defaulters := make([]Defaulter, 0, len(students))
	for _, st := range students {
		d := byStudent[st.ID]
		d.Student = st
		defaulters = append(defaulters, *d)
	}
	sort.SliceStable(defaulters, func(i, j int) bool {
		if cmp := defaulters[i].OverdueAmount.Cmp(defaulters[j].OverdueAmount); cmp != 0 {
			return cmp > 0
		}
		return defaulters[i].Student.Name < defaulters[j].Student.Name
	})
	return defaulters, nil
}

type reminderData struct {
	GuardianName  string
	StudentName   string
	OverdueCount  int
	OverdueAmount string
	OldestDueDate string
}

// RemindDefaulters emails the guardian of every defaulter of the operator's school.
func (svc *service) RemindDefaulters(ctx context.Context, op Operator) (BulkResult, error) {
	var res BulkResult
	if err := svc.checkOperator(op); err != nil {
		return res, err
	}
	defaulters, err := svc.Defaulters(ctx, op.SchoolID)
	if err != nil {
		return res, err
	}

	for _, d := range defaulters {
		if d.Student.GuardianEmail == "" {
			res.fail(d.Student.ID, ErrNoGuardianEmail)
			continue
		}
		if err := svc.limiter.Wait(ctx); err != nil {
			res.fail(d.Student.ID, err)
			continue
		}
		svc.emailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: d.Student.GuardianName, Address: d.Student.GuardianEmail}},
			Subject:      "Overdue fees for " + d.Student.Name,
			TemplateName: reminderTemplate,
			TemplateData: reminderData{
				GuardianName:  d.Student.GuardianName,
				StudentName:   d.Student.Name,
				OverdueCount:  d.OverdueCount,
				OverdueAmount: d.OverdueAmount.StringFixed(2),
				OldestDueDate: d.OldestDueDate.Format("2006-01-02"),
			},
		})
		res.ok()
	}
	return res, nil
}

// RemindAllDefaulters runs RemindDefaulters for every school with overdue challans.
func (svc *service) RemindAllDefaulters(ctx context.Context) (BulkResult, error) {
	var total BulkResult
	schoolIDs, err := svc.repos.Challans.SchoolIDs(ctx, []Status{StatusOverdue})
	if err != nil {
		return total, errors.Wrap(err, "listing schools")
	}
	for _, schoolID := range schoolIDs {
		res, err := svc.RemindDefaulters(ctx, SystemOperator(schoolID))
		if err != nil {
			svc.logger.Error("reminding defaulters of school "+schoolID, err)
			continue
		}
		total.Success += res.Success
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)
	}
	return total, nil
}
