package controller

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	appDto "beasiswaku_backend/internals/features/scholarship/applications/dto"
	"beasiswaku_backend/internals/features/scholarship/budgets/dto"
	"beasiswaku_backend/internals/features/scholarship/budgets/model"
	"beasiswaku_backend/internals/features/scholarship/budgets/service"
	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

type BudgetController struct {
	Ledger    *service.Ledger
	Validator *validator.Validate
	Now       func() time.Time
}

func NewBudgetController(ledger *service.Ledger) *BudgetController {
	return &BudgetController{Ledger: ledger, Validator: appDto.NewValidator(), Now: time.Now}
}

func (h *BudgetController) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	if err := h.Validator.Struct(out); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}

/* =========================================================
   GET /budgets?school_id=&academic_period_id=&status=
========================================================= */

func (h *BudgetController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 100)
	f := service.ListFilter{Offset: p.Offset, Limit: p.Limit}
	var err error
	if f.SchoolID, err = helper.ParseUUIDQuery(c, "school_id"); err != nil {
		return err
	}
	if f.AcademicPeriodID, err = helper.ParseUUIDQuery(c, "academic_period_id"); err != nil {
		return err
	}
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		switch model.BudgetStatus(st) {
		case model.BudgetActive, model.BudgetDepleted, model.BudgetExpired:
			f.Status = st
		default:
			return apperror.Field("status", "must be active, depleted or expired")
		}
	}

	rows, total, err := h.Ledger.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return helper.JsonList(c, "ok", dto.NewBudgetDetails(rows, h.Now().UTC()),
		helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

// GET /budgets/:id
func (h *BudgetController) GetByID(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	b, err := h.Ledger.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", dto.NewBudgetDetail(b, h.Now().UTC()))
}

// GET /budgets/:id/transactions
func (h *BudgetController) Transactions(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	p := helper.ResolvePaging(c, 50, 500)
	rows, total, err := h.Ledger.Transactions(c.UserContext(), id, p.Offset, p.Limit)
	if err != nil {
		return err
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

// GET /budgets/:id/reconcile
func (h *BudgetController) Reconcile(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	rep, err := h.Ledger.Reconcile(c.UserContext(), id)
	if err != nil {
		return err
	}
	msg := "ledger balances"
	if !rep.Balanced {
		msg = "ledger does not balance"
	}
	return helper.JsonOK(c, msg, rep)
}

/* =========================================================
   Admin
========================================================= */

// POST /budgets
func (h *BudgetController) Create(c *fiber.Ctx) error {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	var req dto.CreateBudgetRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	now := h.Now().UTC()
	b, err := h.Ledger.CreateBudget(c.UserContext(), req.ToInput(actor, now))
	if err != nil {
		return err
	}
	return helper.JsonCreated(c, "budget created", dto.NewBudgetDetail(b, now))
}

// POST /budgets/:id/adjust
func (h *BudgetController) Adjust(c *fiber.Ctx) error {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.AdjustRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	row, err := h.Ledger.AdjustAllocation(c.UserContext(), id, req.Delta, req.Reference(), actor)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "allocation adjusted", row)
}
