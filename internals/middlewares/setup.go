package middlewares

import (
	"context"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/utils"
	"github.com/sirupsen/logrus"

	"beasiswaku_backend/internals/middlewares/logger"
)

type Options struct {
	AllowOrigins   string
	RatePerMinute  int
	RequestTimeout time.Duration
	AccessLog      io.Writer
	Log            logrus.FieldLogger
}

// SetupMiddlewares memasang middleware global berurutan: request id +
// timeout, recovery, access log, metrics, CORS, rate limit.
func SetupMiddlewares(app *fiber.App, o Options) {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	app.Use(RequestContext(o.RequestTimeout))
	app.Use(RecoveryMiddleware(o.Log))
	if o.AccessLog != nil {
		app.Use(logger.LoggerMiddleware(o.AccessLog))
	}
	app.Use(MetricsMiddleware())
	app.Use(CorsMiddleware(o.AllowOrigins))
	if o.RatePerMinute > 0 {
		app.Use(GlobalRateLimiter(o.RatePerMinute))
	}
}

// TrustProxies: c.IP() baru membaca X-Forwarded-For kalau request datang dari
// proxy yang terdaftar. Kalau kosong, pakai alamat socket dan header diabaikan.
func TrustProxies(cfg *fiber.Config, proxies []string) {
	if len(proxies) == 0 {
		cfg.ProxyHeader = ""
		cfg.EnableTrustedProxyCheck = false
		cfg.TrustedProxies = nil
		return
	}
	cfg.ProxyHeader = fiber.HeaderXForwardedFor
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
}

// RequestContext memberi X-Request-ID dan membatasi user context,
// sejalan dengan statement_timeout database.
func RequestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = utils.UUID()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals("requestid", id)

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
