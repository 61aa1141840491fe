package route

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"beasiswaku_backend/internals/constants"
	ctrl "beasiswaku_backend/internals/features/scholarship/ssc_reviews/controller"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

// SSCReviewRoutes memasang endpoint komite. Izin per stage dari role
// assignment, dicek di dalam engine.
func SSCReviewRoutes(r fiber.Router, engine *service.Engine, stallAfter time.Duration, decisionLimit fiber.Handler) {
	h := ctrl.NewSSCReviewController(engine, stallAfter)

	committee := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("committee review"), constants.CommitteeRoles)
	readers := authMiddleware.OnlyRolesSlice(constants.RoleErrorStaff("committee review"), constants.StaffRoles)
	chair := authMiddleware.OnlyRolesSlice("only the committee chairperson may decide", constants.ChairOnly)

	apps := r.Group("/applications/:id")
	apps.Get("/stage-reviews", readers, h.Reviews)
	apps.Get("/ssc-decisions", readers, h.Decisions)
	apps.Get("/stage-replay", readers, h.StageReplay)

	apps.Post("/stages/:stage/approve", committee, h.ApproveStage)
	apps.Post("/stages/:stage/reject", committee, h.RejectStage)
	apps.Post("/stages/:stage/revision", committee, h.RequestStageRevision)
	apps.Post("/return-for-revision", committee, h.ReturnForRevision)

	apps.Post("/ssc/final-approval", chair, decisionLimit, h.FinalApproval)
	apps.Post("/ssc/final-rejection", chair, decisionLimit, h.FinalRejection)

	r.Get("/ssc/stalled", readers, h.Stalled)
}
