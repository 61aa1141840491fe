package route

import (
	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/constants"
	ctrl "beasiswaku_backend/internals/features/scholarship/disbursements/controller"
	"beasiswaku_backend/internals/features/scholarship/disbursements/service"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

func DisbursementRoutes(r fiber.Router, svc *service.Service) {
	h := ctrl.NewDisbursementController(svc)

	staff := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("disbursements"), constants.StaffRoles)
	finance := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("disbursements"), constants.FinanceRoles)

	r.Get("/applications/:id/disbursements", staff, h.ByApplication)

	g := r.Group("/disbursements", staff)
	g.Get("/", h.List)
	g.Get("/:id", h.GetByID)
	g.Post("/:id/retry-payout", finance, h.RetryPayout)
	g.Post("/:id/mark-failed", finance, h.MarkFailed)
}
