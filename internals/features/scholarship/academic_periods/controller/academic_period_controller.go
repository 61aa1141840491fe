// file: internals/features/scholarship/academic_periods/controller/academic_period_controller.go
package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/features/scholarship/academic_periods/dto"
	"beasiswaku_backend/internals/features/scholarship/academic_periods/model"
	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

/* ================= Controller & Constructor ================= */

type AcademicPeriodController struct {
	DB        *gorm.DB
	Validator *validator.Validate
}

func NewAcademicPeriodController(db *gorm.DB) *AcademicPeriodController {
	return &AcademicPeriodController{DB: db, Validator: validator.New()}
}

/* ================= Handlers ================= */

// GET /academic-periods?active=true&school_year=2026-2027&sort_by=start_date&order=asc
func (ctl *AcademicPeriodController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 100)

	q := ctl.DB.WithContext(c.UserContext()).Model(&model.AcademicPeriodModel{})
	switch strings.ToLower(strings.TrimSpace(c.Query("active"))) {
	case "true", "1":
		q = q.Where("academic_period_is_active = ?", true)
	case "false", "0":
		q = q.Where("academic_period_is_active = ?", false)
	}
	if sy := strings.TrimSpace(c.Query("school_year")); sy != "" {
		q = q.Where("academic_period_school_year = ?", sy)
	}

	// whitelist sorting
	colMap := map[string]string{
		"start_date": "academic_period_start_date",
		"end_date":   "academic_period_end_date",
		"created_at": "academic_period_created_at",
		"name":       "academic_period_name",
	}
	col, ok := colMap[strings.ToLower(strings.TrimSpace(c.Query("sort_by", "start_date")))]
	if !ok {
		col = "academic_period_start_date"
	}
	order := "DESC"
	if strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc") {
		order = "ASC"
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	var rows []model.AcademicPeriodModel
	if err := q.Order(col + " " + order).Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return err
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPaginationFromPage(total, p.Page, p.PerPage, len(rows)))
}

// GET /academic-periods/:id
func (ctl *AcademicPeriodController) GetByID(c *fiber.Ctx) error {
	ent, err := ctl.find(c)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", ent)
}

// POST /academic-periods
func (ctl *AcademicPeriodController) Create(c *fiber.Ctx) error {
	var req dto.AcademicPeriodCreateDTO
	if err := c.BodyParser(&req); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	if err := ctl.Validator.Struct(&req); err != nil {
		return apperror.FromValidator(err)
	}
	ent := req.ToModel()
	if err := ctl.DB.WithContext(c.UserContext()).Create(&ent).Error; err != nil {
		return err
	}
	return helper.JsonCreated(c, "academic period created", ent)
}

// PATCH /academic-periods/:id
func (ctl *AcademicPeriodController) Update(c *fiber.Ctx) error {
	ent, err := ctl.find(c)
	if err != nil {
		return err
	}
	var req dto.AcademicPeriodUpdateDTO
	if err := c.BodyParser(&req); err != nil {
		return apperror.Validation("request body is not valid json", nil)
	}
	if err := ctl.Validator.Struct(&req); err != nil {
		return apperror.FromValidator(err)
	}
	req.ApplyUpdates(ent)
	if ent.AcademicPeriodEndDate.Before(ent.AcademicPeriodStartDate) {
		return apperror.Field("academic_period_end_date", "must not be before academic_period_start_date")
	}
	if err := ctl.DB.WithContext(c.UserContext()).Save(ent).Error; err != nil {
		return err
	}
	return helper.JsonUpdated(c, "academic period updated", ent)
}

func (ctl *AcademicPeriodController) find(c *fiber.Ctx) (*model.AcademicPeriodModel, error) {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	var ent model.AcademicPeriodModel
	err = ctl.DB.WithContext(c.UserContext()).Where("academic_period_id = ?", id).Take(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("academic period")
	}
	if err != nil {
		return nil, err
	}
	return &ent, nil
}
