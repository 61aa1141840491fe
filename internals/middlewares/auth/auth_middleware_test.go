package auth

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func newApp(roles ...string) *fiber.App {
	log := logrus.New()
	log.SetOutput(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: apperror.ErrorHandler})
	api := app.Group("/api", AuthMiddleware(secret, log))
	h := func(c *fiber.Ctx) error {
		id, err := helper.GetUserIDFromToken(c)
		if err != nil {
			return err
		}
		return c.SendString(id.String() + " " + helper.GetRole(c))
	}
	if len(roles) > 0 {
		api.Get("/who", OnlyRoles("staff only", roles...), h)
	} else {
		api.Get("/who", h)
	}
	return app
}

func call(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/api/who", nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestValidTokenStoresActorAndRole(t *testing.T) {
	user := uuid.New()
	tok := sign(t, jwt.MapClaims{"id": user.String(), "role": "Scholarship_Officer", "exp": time.Now().Add(time.Hour).Unix()}, secret)

	status, body := call(t, newApp(), tok)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, user.String()+" scholarship_officer", body)
}

func TestSubClaimIsAccepted(t *testing.T) {
	user := uuid.New()
	tok := sign(t, jwt.MapClaims{"sub": user.String(), "exp": time.Now().Add(time.Hour).Unix()}, secret)
	status, _ := call(t, newApp(), tok)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRejectedTokens(t *testing.T) {
	user := uuid.New().String()
	cases := map[string]string{
		"missing":     "",
		"wrong key":   sign(t, jwt.MapClaims{"id": user, "exp": time.Now().Add(time.Hour).Unix()}, "other"),
		"expired":     sign(t, jwt.MapClaims{"id": user, "exp": time.Now().Add(-time.Hour).Unix()}, secret),
		"no exp":      sign(t, jwt.MapClaims{"id": user}, secret),
		"bad user id": sign(t, jwt.MapClaims{"id": "nope", "exp": time.Now().Add(time.Hour).Unix()}, secret),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := call(t, newApp(), tok)
			assert.Equal(t, fiber.StatusUnauthorized, status)
			assert.Contains(t, body, string(apperror.KindUnauthorized))
		})
	}
}

func TestExpirySkew(t *testing.T) {
	now := time.Now()
	claims := jwt.MapClaims{"exp": float64(now.Add(-10 * time.Second).Unix())}
	assert.NoError(t, validateTokenExpiry(claims, now, 30*time.Second))
	assert.Error(t, validateTokenExpiry(claims, now, 5*time.Second))
}

func TestRoleGate(t *testing.T) {
	app := newApp("scholarship_officer", "admin")
	exp := time.Now().Add(time.Hour).Unix()

	status, _ := call(t, app, sign(t, jwt.MapClaims{"id": uuid.NewString(), "role": "admin", "exp": exp}, secret))
	assert.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, sign(t, jwt.MapClaims{"id": uuid.NewString(), "role": "student", "exp": exp}, secret))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, body, "staff only")

	status, _ = call(t, app, sign(t, jwt.MapClaims{"id": uuid.NewString(), "exp": exp}, secret))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
