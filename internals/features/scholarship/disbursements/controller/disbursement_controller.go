package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/features/scholarship/disbursements/model"
	"beasiswaku_backend/internals/features/scholarship/disbursements/service"
	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

type DisbursementController struct {
	Svc *service.Service
}

func NewDisbursementController(svc *service.Service) *DisbursementController {
	return &DisbursementController{Svc: svc}
}

// GET /disbursements?budget_id=&status=
func (h *DisbursementController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 100)
	f := service.ListFilter{Offset: p.Offset, Limit: p.Limit}
	var err error
	if f.BudgetID, err = helper.ParseUUIDQuery(c, "budget_id"); err != nil {
		return err
	}
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		switch model.Status(st) {
		case model.StatusPending, model.StatusCompleted, model.StatusFailed:
			f.Status = model.Status(st)
		default:
			return apperror.Field("status", "must be pending, completed or failed")
		}
	}
	rows, total, err := h.Svc.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

// GET /disbursements/:id
func (h *DisbursementController) GetByID(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.Svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", d)
}

// GET /applications/:id/disbursements
func (h *DisbursementController) ByApplication(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.Svc.ListByApplication(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", rows)
}

// POST /disbursements/:id/retry-payout
func (h *DisbursementController) RetryPayout(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.Svc.RequestPayout(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "payout requested", d)
}

type markFailedRequest struct {
	Reason string `json:"reason"`
}

// POST /disbursements/:id/mark-failed
func (h *DisbursementController) MarkFailed(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req markFailedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return apperror.Field("reason", "is required")
	}
	d, err := h.Svc.MarkFailed(c.UserContext(), id, reason)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "disbursement marked failed", d)
}
