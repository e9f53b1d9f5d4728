package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/masomofees/core/fee"
)

const dateLayout = "2006-01-02"

func (cli *commandLine) generate(schoolID string, req fee.BulkGenerateRequest) error {
	op := fee.Operator{UserID: cliOperatorID, SchoolID: schoolID}
	res, err := cli.feeSvc.BulkGenerate(context.Background(), op, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d challan(s) generated, %d failed\n", req.Month, res.Success, res.Failed)
	for _, e := range res.Errors {
		fmt.Printf("  student %s: %s\n", e.ID, e.Error)
	}
	return nil
}

// sweepOverdue flags as overdue the pending challans due before date (today when empty).
func (cli *commandLine) sweepOverdue(date string) error {
	asOf := fee.NowFunc().UTC()
	if date != "" {
		d, err := parseDate(date)
		if err != nil {
			return err
		}
		asOf = d
	}
	n, err := cli.feeSvc.SweepOverdue(context.Background(), asOf)
	if err != nil {
		return err
	}
	fmt.Printf("%d challan(s) marked overdue\n", n)
	return nil
}

func parseDate(val string) (time.Time, error) {
	d, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be formatted as YYYY-MM-DD (got %q)", val)
	}
	return d, nil
}
