package controller

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	appDto "beasiswaku_backend/internals/features/scholarship/applications/dto"
	appModel "beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/dto"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

type SSCReviewController struct {
	Engine     *service.Engine
	Validator  *validator.Validate
	StallAfter time.Duration
}

func NewSSCReviewController(engine *service.Engine, stallAfter time.Duration) *SSCReviewController {
	return &SSCReviewController{Engine: engine, Validator: appDto.NewValidator(), StallAfter: stallAfter}
}

func (h *SSCReviewController) bind(c *fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return apperror.Validation("request body is not valid json", nil)
		}
	}
	if err := h.Validator.Struct(out); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}

func target(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actor, id, nil
}

/* =========================================================
   POST /applications/:id/stages/:stage/{approve,reject,revision}
========================================================= */

func (h *SSCReviewController) ApproveStage(c *fiber.Ctx) error {
	return h.stage(c, h.Engine.ApproveStage, "stage approved")
}

func (h *SSCReviewController) RejectStage(c *fiber.Ctx) error {
	return h.stage(c, h.Engine.RejectStage, "stage rejected")
}

func (h *SSCReviewController) RequestStageRevision(c *fiber.Ctx) error {
	return h.stage(c, h.Engine.RequestStageRevision, "stage revision requested")
}

func (h *SSCReviewController) stage(c *fiber.Ctx, do func(context.Context, uuid.UUID, appModel.StageName, service.StageInput) (*service.StageResult, error), msg string) error {
	actor, id, err := target(c)
	if err != nil {
		return err
	}
	stage := appModel.StageName(strings.TrimSpace(c.Params("stage")))
	var req dto.StageReviewRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := do(c.UserContext(), id, stage, req.ToInput(actor))
	if err != nil {
		return err
	}
	if res.Completed {
		msg += "; all stages approved, awaiting final decision"
	}
	return helper.JsonOKWarn(c, msg, res, res.Warnings)
}

/* =========================================================
   POST /applications/:id/return-for-revision
========================================================= */

func (h *SSCReviewController) ReturnForRevision(c *fiber.Ctx) error {
	actor, id, err := target(c)
	if err != nil {
		return err
	}
	var req dto.ReturnForRevisionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.Engine.ReturnForRevision(c.UserContext(), id, req.ToInput(actor))
	if err != nil {
		return err
	}
	return helper.JsonOKWarn(c, "application returned for revision", res, res.Warnings)
}

/* =========================================================
   POST /applications/:id/ssc/final-{approval,rejection}
========================================================= */

func (h *SSCReviewController) FinalApproval(c *fiber.Ctx) error {
	actor, id, err := target(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.Engine.FinalApproval(c.UserContext(), id, req.ToInput(actor))
	if err != nil {
		return err
	}
	return helper.JsonOKWarn(c, "scholarship awarded", res, res.Warnings)
}

func (h *SSCReviewController) FinalRejection(c *fiber.Ctx) error {
	actor, id, err := target(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.Engine.FinalRejection(c.UserContext(), id, req.ToInput(actor))
	if err != nil {
		return err
	}
	return helper.JsonOKWarn(c, "application rejected by committee", res, res.Warnings)
}

/* =========================================================
   Reads
========================================================= */

// GET /applications/:id/stage-reviews
func (h *SSCReviewController) Reviews(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.Engine.Reviews(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", rows)
}

// GET /applications/:id/stage-replay
func (h *SSCReviewController) StageReplay(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	report, err := h.Engine.StageReplay(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", report)
}

// GET /applications/:id/ssc-decisions
func (h *SSCReviewController) Decisions(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	rows, err := h.Engine.Decisions(c.UserContext(), id)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", rows)
}

// GET /ssc/stalled?after=72h
func (h *SSCReviewController) Stalled(c *fiber.Ctx) error {
	after := h.StallAfter
	if raw := strings.TrimSpace(c.Query("after")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return apperror.Field("after", "must be a positive duration like 72h")
		}
		after = d
	}
	rows, err := h.Engine.Stalled(c.UserContext(), after)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", rows)
}
