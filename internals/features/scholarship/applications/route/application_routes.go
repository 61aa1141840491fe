package route

import (
	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/constants"
	ctrl "beasiswaku_backend/internals/features/scholarship/applications/controller"
	"beasiswaku_backend/internals/features/scholarship/applications/service"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

// ApplicationRoutes memasang /applications di router yang sudah ter-auth.
// decisionLimit menjaga operasi yang menggerakkan uang.
func ApplicationRoutes(r fiber.Router, svc *service.Service, decisionLimit fiber.Handler) {
	h := ctrl.NewApplicationController(svc)

	staff := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("application pipeline"), constants.OfficerAndAbove)
	finance := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("disbursements"), constants.FinanceRoles)
	owners := authMiddleware.OnlyRolesSlice("only the applicant or an officer may do this",
		append([]string{constants.RoleStudent}, constants.OfficerAndAbove...))

	g := r.Group("/applications")

	// ===== semua user login (siswa hanya lihat miliknya) =====
	g.Get("/", h.List)
	g.Get("/:id", h.GetByID)
	g.Get("/:id/operations", h.Operations)
	g.Get("/:id/history", h.History)

	// ===== pendaftar =====
	g.Post("/", owners, h.Create)
	g.Patch("/:id", owners, h.UpdateDraft)
	g.Post("/:id/submit", owners, h.Transition(service.OpSubmit))
	g.Post("/:id/withdraw", owners, h.Transition(service.OpWithdraw))

	// ===== pipeline officer =====
	g.Get("/:id/replay", staff, h.Replay)
	g.Post("/:id/start-review", staff, h.Transition(service.OpStartReview))
	g.Post("/:id/review", staff, h.Transition(service.OpReview))
	g.Post("/:id/flag-for-compliance", staff, h.Transition(service.OpFlagForCompliance))
	g.Post("/:id/resolve-compliance", staff, h.Transition(service.OpResolveCompliance))
	g.Post("/:id/approve-for-verification", staff, h.Transition(service.OpApproveForVerification))
	g.Post("/:id/verify-enrollment", staff, h.Transition(service.OpVerifyEnrollment))
	g.Post("/:id/schedule-interview", staff, h.Transition(service.OpScheduleInterview))
	g.Post("/:id/complete-interview", staff, h.Transition(service.OpCompleteInterview))
	g.Post("/:id/endorse-to-ssc", staff, h.Transition(service.OpEndorseToSSC))
	g.Post("/:id/approve", staff, decisionLimit, h.Transition(service.OpApprove))
	g.Post("/:id/reject", staff, decisionLimit, h.Transition(service.OpReject))

	// ===== finance =====
	g.Post("/:id/process", finance, decisionLimit, h.Transition(service.OpProcess))
	g.Post("/:id/release", finance, decisionLimit, h.Transition(service.OpRelease))
}
