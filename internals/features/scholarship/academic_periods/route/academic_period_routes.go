package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/constants"
	ctrl "beasiswaku_backend/internals/features/scholarship/academic_periods/controller"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

func AcademicPeriodRoutes(r fiber.Router, db *gorm.DB) {
	h := ctrl.NewAcademicPeriodController(db)

	g := r.Group("/academic-periods")
	g.Get("/", h.List)
	g.Get("/:id", h.GetByID)

	admin := authMiddleware.OnlyRolesSlice(constants.RoleErrorAdmin("academic periods"), constants.AdminOnly)
	g.Post("/", admin, h.Create)
	g.Patch("/:id", admin, h.Update)
}
