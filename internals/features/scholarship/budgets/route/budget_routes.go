package route

import (
	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/constants"
	ctrl "beasiswaku_backend/internals/features/scholarship/budgets/controller"
	"beasiswaku_backend/internals/features/scholarship/budgets/service"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

func BudgetRoutes(r fiber.Router, ledger *service.Ledger) {
	h := ctrl.NewBudgetController(ledger)

	staff := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("budgets"), constants.StaffRoles)
	admin := authMiddleware.OnlyRolesSlice(constants.RoleErrorAdmin("budget allocation"), constants.AdminOnly)

	g := r.Group("/budgets", staff)
	g.Get("/", h.List)
	g.Get("/:id", h.GetByID)
	g.Get("/:id/transactions", h.Transactions)
	g.Get("/:id/reconcile", h.Reconcile)

	g.Post("/", admin, h.Create)
	g.Post("/:id/adjust", admin, h.Adjust)
}
