package middlewares

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beasiswaku_backend/internals/helpers/apperror"
)

func testApp(t *testing.T, rate int, access io.Writer) *fiber.App {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: apperror.ErrorHandler})
	SetupMiddlewares(app, Options{
		AllowOrigins:   "http://localhost:5173",
		RatePerMinute:  rate,
		RequestTimeout: time.Second,
		AccessLog:      access,
		Log:            log,
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		_, hasDeadline := c.UserContext().Deadline()
		if !hasDeadline {
			return fiber.NewError(fiber.StatusInternalServerError, "no deadline")
		}
		return c.SendString("ok")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })
	return app
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	var access bytes.Buffer
	app := testApp(t, 0, &access)

	req := httptest.NewRequest(fiber.MethodGet, "/ok", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-123", resp.Header.Get(fiber.HeaderXRequestID))
	assert.Contains(t, access.String(), "req-123")

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestPanicBecomes500(t *testing.T) {
	app := testApp(t, 0, nil)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestGlobalRateLimit(t *testing.T) {
	app := testApp(t, 2, nil)
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "TOO_MANY_REQUESTS")
}

func TestCorsPreflight(t *testing.T) {
	app := testApp(t, 0, nil)
	req := httptest.NewRequest(fiber.MethodOptions, "/ok", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func limitedApp(proxies []string) *fiber.App {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := fiber.Config{ErrorHandler: apperror.ErrorHandler}
	TrustProxies(&cfg, proxies)
	app := fiber.New(cfg)
	SetupMiddlewares(app, Options{RatePerMinute: 1, Log: log})
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })
	return app
}

func forwardedFor(t *testing.T, app *fiber.App, ip string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/ok", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, ip)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	app := limitedApp([]string{"10.20.30.40"})
	assert.Equal(t, fiber.StatusOK, forwardedFor(t, app, "203.0.113.1"))
	assert.Equal(t, fiber.StatusTooManyRequests, forwardedFor(t, app, "203.0.113.2"))

	app = limitedApp(nil)
	assert.Equal(t, fiber.StatusOK, forwardedFor(t, app, "203.0.113.1"))
	assert.Equal(t, fiber.StatusTooManyRequests, forwardedFor(t, app, "203.0.113.2"))
}

func TestForwardedForHonouredFromTrustedProxy(t *testing.T) {
	// app.Test connects from 0.0.0.0
	app := limitedApp([]string{"0.0.0.0"})
	assert.Equal(t, fiber.StatusOK, forwardedFor(t, app, "203.0.113.1"))
	assert.Equal(t, fiber.StatusOK, forwardedFor(t, app, "203.0.113.2"))
	assert.Equal(t, fiber.StatusTooManyRequests, forwardedFor(t, app, "203.0.113.1"))
}
