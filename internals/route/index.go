// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/configs"
	periodRoute "beasiswaku_backend/internals/features/scholarship/academic_periods/route"
	appRoute "beasiswaku_backend/internals/features/scholarship/applications/route"
	appService "beasiswaku_backend/internals/features/scholarship/applications/service"
	budgetRoute "beasiswaku_backend/internals/features/scholarship/budgets/route"
	budgetService "beasiswaku_backend/internals/features/scholarship/budgets/service"
	disbRoute "beasiswaku_backend/internals/features/scholarship/disbursements/route"
	disbService "beasiswaku_backend/internals/features/scholarship/disbursements/service"
	sscRoute "beasiswaku_backend/internals/features/scholarship/ssc_reviews/route"
	sscService "beasiswaku_backend/internals/features/scholarship/ssc_reviews/service"
	"beasiswaku_backend/internals/middlewares"
	authMiddleware "beasiswaku_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps berisi semua dependency HTTP, dibangun sekali di main.
type Deps struct {
	Config        configs.Config
	DB            *gorm.DB
	Log           logrus.FieldLogger
	Applications  *appService.Service
	Engine        *sscService.Engine
	Ledger        *budgetService.Ledger
	Disbursements *disbService.Service
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	BaseRoutes(app, d.DB)

	// ===================== PRIVATE (JWT) =====================
	d.Log.Info("setting up /api group")
	api := app.Group("/api", authMiddleware.AuthMiddleware(d.Config.JWTSecret, d.Log))

	decisions := middlewares.DecisionRateLimiter(30)

	// ===================== MOUNT ROUTES =====================
	periodRoute.AcademicPeriodRoutes(api, d.DB)
	appRoute.ApplicationRoutes(api, d.Applications, decisions)
	sscRoute.SSCReviewRoutes(api, d.Engine, d.Config.StalledStageAfter, decisions)
	budgetRoute.BudgetRoutes(api, d.Ledger)
	disbRoute.DisbursementRoutes(api, d.Disbursements)
	d.Log.Info("routes mounted")
}
