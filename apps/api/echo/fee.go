package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core/fee"
)

type feeApi struct {
	svc      fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc fee.Service, validate *validator.Validate) {
	api := feeApi{svc: svc, validate: validate}
	staff := feeStaffMiddleware()

	sg := g.Group("/students", jwt, staff)
	sg.PUT("/fees", api.bulkUpdateStudentFees)
	sg.GET("/:id/fees", api.studentFees)
	sg.GET("/:id/ledger", api.studentLedger)

	fg := g.Group("/fee-structures", jwt, staff)
	fg.GET("", api.listStructures)
	fg.POST("", api.createStructure)
	fg.GET("/:id", api.retrieveStructure)
	fg.POST("/:id/versions", api.newStructureVersion)
	fg.POST("/:id/sync", api.syncStructure)

	cg := g.Group("/challans", jwt, staff)
	cg.GET("", api.queryChallans)
	cg.POST("", api.generateChallan)
	cg.DELETE("", api.bulkDelete)
	cg.POST("/bulk-generate", api.bulkGenerate)
	cg.POST("/regenerate", api.regenerate)
	cg.POST("/bulk-edit", api.bulkEdit)
	cg.POST("/bulk-mark-paid", api.bulkMarkPaid)
	cg.POST("/bulk-cancel", api.bulkCancel)
	cg.GET("/:id", api.retrieveChallan)
	cg.POST("/:id/payments", api.recordPayment)

	dg := g.Group("/defaulters", jwt, staff)
	dg.GET("", api.defaulters)
	dg.POST("/reminders", api.remindDefaulters)
}

type breakdownResponse struct {
	fee.Breakdown
	MonthlyNet decimal.Decimal `json:"monthly_net"`
}

// Students

func (api *feeApi) studentFees(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	b, err := api.svc.Resolve(ctx.Request().Context(), op.SchoolID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, breakdownResponse{Breakdown: b, MonthlyNet: b.MonthlyNet()})
}

func (api *feeApi) studentLedger(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	ledger, err := api.svc.StudentLedger(ctx.Request().Context(), op.SchoolID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ledger)
}

func (api *feeApi) bulkUpdateStudentFees(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data BulkStudentFeesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkStudentFeesRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	res, err := api.svc.BulkUpdateStudentFees(ctx.Request().Context(), op, data.StudentIDs, data.StudentFeeUpdate)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// Fee structures

func (api *feeApi) listStructures(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	structures, err := api.svc.ListFeeStructures(ctx.Request().Context(), op.SchoolID, ctx.QueryParam("class_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *feeApi) createStructure(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.NewFeeStructure
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), op, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *feeApi) retrieveStructure(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), op.SchoolID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fs)
}

func (api *feeApi) newStructureVersion(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.FeeStructureChanges
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeStructureChanges")
	}
	fs, err := api.svc.NewFeeStructureVersion(ctx.Request().Context(), op, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, fs)
}

func (api *feeApi) syncStructure(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.SyncStudentsToStructure(ctx.Request().Context(), op, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// Challans

func (api *feeApi) queryChallans(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var query ChallanQuery
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to ChallanQuery")
	}
	var ord Ordering
	ord.Bind(ctx)

	challans, err := api.svc.QueryChallans(ctx.Request().Context(), op.SchoolID, query.Filter(), ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, challans)
}

func (api *feeApi) retrieveChallan(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	ch, err := api.svc.GetChallan(ctx.Request().Context(), op.SchoolID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *feeApi) generateChallan(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.GenerateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	ch, err := api.svc.GenerateChallan(ctx.Request().Context(), op, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *feeApi) bulkGenerate(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.BulkGenerateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkGenerateRequest")
	}
	res, err := api.svc.BulkGenerate(ctx.Request().Context(), op, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) regenerate(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.RegenerateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegenerateRequest")
	}
	res, err := api.svc.Regenerate(ctx.Request().Context(), op, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) bulkEdit(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data BulkEditRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEditRequest")
	}
	if err = api.validate.Struct(data.IDsRequest); err != nil {
		return err
	}
	res, err := api.svc.BulkEdit(ctx.Request().Context(), op, data.IDs, data.ChallanEdit)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) bulkMarkPaid(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data BulkMarkPaidRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkMarkPaidRequest")
	}
	if err = api.validate.Struct(data.IDsRequest); err != nil {
		return err
	}
	res, err := api.svc.BulkMarkPaid(ctx.Request().Context(), op, data.IDs, data.PaymentInput)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) bulkCancel(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	res, err := api.svc.BulkCancel(ctx.Request().Context(), op, data.IDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) bulkDelete(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data DestroyMultipleRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	res, err := api.svc.BulkDelete(ctx.Request().Context(), op, data.IDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *feeApi) recordPayment(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	var data fee.PaymentInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentInput")
	}
	receipt, err := api.svc.RecordPayment(ctx.Request().Context(), op, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, receipt)
}

// Defaulters

func (api *feeApi) defaulters(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	defaulters, err := api.svc.Defaulters(ctx.Request().Context(), op.SchoolID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, defaulters)
}

func (api *feeApi) remindDefaulters(ctx echo.Context) error {
	op, err := getOperator(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.RemindDefaulters(ctx.Request().Context(), op)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
