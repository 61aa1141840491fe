package controller

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"beasiswaku_backend/internals/constants"
	"beasiswaku_backend/internals/features/scholarship/applications/dto"
	"beasiswaku_backend/internals/features/scholarship/applications/model"
	"beasiswaku_backend/internals/features/scholarship/applications/service"
	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

type ApplicationController struct {
	Svc       *service.Service
	Validator *validator.Validate
}

func NewApplicationController(svc *service.Service) *ApplicationController {
	return &ApplicationController{Svc: svc, Validator: dto.NewValidator()}
}

// parseBody: body kosong boleh untuk operasi tanpa payload.
func (h *ApplicationController) parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	if err := h.Validator.Struct(out); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}

// load mengambil aplikasi, aplikasi milik siswa lain disembunyikan.
func (h *ApplicationController) load(c *fiber.Ctx) (*model.ApplicationModel, uuid.UUID, error) {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	app, err := h.Svc.Get(c.UserContext(), id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if helper.GetRole(c) == constants.RoleStudent && app.ApplicationStudentID != actor {
		return nil, uuid.Nil, apperror.NotFound("application")
	}
	return app, actor, nil
}

/* =========================================================
   POST /applications
========================================================= */

func (h *ApplicationController) Create(c *fiber.Ctx) error {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	var req dto.CreateApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	if err := h.Validator.Struct(req); err != nil {
		return apperror.FromValidator(err)
	}

	// siswa selalu mendaftar untuk diri sendiri, staf boleh atas nama siswa
	student := actor
	if helper.GetRole(c) != constants.RoleStudent {
		if req.StudentID == nil || *req.StudentID == uuid.Nil {
			return apperror.Field("application_student_id", "is required when filing for a student")
		}
		student = *req.StudentID
	}

	app, err := h.Svc.Create(c.UserContext(), req.ToInput(actor, student))
	if err != nil {
		return err
	}
	return helper.JsonCreated(c, "application created", dto.NewApplicationDetail(app))
}

/* =========================================================
   GET /applications
   ?status=a,b&school_id=&academic_period_id=&student_id=&q=&page=&per_page=
========================================================= */

func (h *ApplicationController) List(c *fiber.Ctx) error {
	actor, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return err
	}
	p := helper.ResolvePaging(c, 20, 100)
	f := service.ListFilter{Offset: p.Offset, Limit: p.Limit, Search: c.Query("q")}

	if f.SchoolID, err = helper.ParseUUIDQuery(c, "school_id"); err != nil {
		return err
	}
	if f.AcademicPeriodID, err = helper.ParseUUIDQuery(c, "academic_period_id"); err != nil {
		return err
	}
	if f.StudentID, err = helper.ParseUUIDQuery(c, "student_id"); err != nil {
		return err
	}
	if helper.GetRole(c) == constants.RoleStudent {
		f.StudentID = &actor
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		st := model.ApplicationStatus(raw)
		if !st.Valid() {
			return apperror.Field("status", "unknown status "+raw)
		}
		f.Statuses = append(f.Statuses, st)
	}

	rows, total, err := h.Svc.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

/* =========================================================
   GET /applications/:id
========================================================= */

func (h *ApplicationController) GetByID(c *fiber.Ctx) error {
	app, _, err := h.load(c)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", dto.NewApplicationDetail(app))
}

// GET /applications/:id/operations
func (h *ApplicationController) Operations(c *fiber.Ctx) error {
	app, _, err := h.load(c)
	if err != nil {
		return err
	}
	ops := service.Available(app.ApplicationStatus)
	if ops == nil {
		ops = []service.Operation{}
	}
	return helper.JsonOK(c, "ok", fiber.Map{
		"application_status": app.ApplicationStatus,
		"operations":         ops,
	})
}

/* =========================================================
   PATCH /applications/:id
========================================================= */

func (h *ApplicationController) UpdateDraft(c *fiber.Ctx) error {
	app, actor, err := h.load(c)
	if err != nil {
		return err
	}
	var req dto.UpdateDraftRequest
	if err := h.parseBody(c, &req); err != nil {
		return err
	}
	out, err := h.Svc.UpdateDraft(c.UserContext(), app.ApplicationID, req.ToInput(actor))
	if err != nil {
		return err
	}
	return helper.JsonUpdated(c, "draft updated", dto.NewApplicationDetail(out))
}

/* =========================================================
   GET /applications/:id/history, /replay
========================================================= */

func (h *ApplicationController) History(c *fiber.Ctx) error {
	app, _, err := h.load(c)
	if err != nil {
		return err
	}
	rows, err := h.Svc.History(c.UserContext(), app.ApplicationID)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", rows)
}

func (h *ApplicationController) Replay(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	report, err := h.Svc.Replay(c.UserContext(), id)
	if err != nil {
		return err
	}
	msg := "history replays to the stored state"
	if !report.Consistent {
		msg = "history and stored state disagree"
	}
	return helper.JsonOK(c, msg, report)
}

/* =========================================================
   POST /applications/:id/<operation>
========================================================= */

// Transition returns the handler for one state-machine operation.
func (h *ApplicationController) Transition(op service.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		app, actor, err := h.load(c)
		if err != nil {
			return err
		}
		var req dto.TransitionRequest
		if err := h.parseBody(c, &req); err != nil {
			return err
		}
		res, err := h.Svc.Apply(c.UserContext(), app.ApplicationID, op, req.ToInput(actor))
		if err != nil {
			return err
		}
		return helper.JsonOKWarn(c, "application "+string(res.Application.ApplicationStatus), res, res.Warnings)
	}
}
