// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"beasiswaku_backend/internals/helpers/apperror"
)

// Path yang tidak butuh token (health, scrape).
var skipPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// AuthMiddleware memverifikasi bearer token HS256 lalu menyimpan user id dan
// role ke Locals. Token diterbitkan service lain, di sini hanya dibaca.
func AuthMiddleware(secret string, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := skipPaths[c.Path()]; ok {
			return c.Next()
		}
		if secret == "" {
			log.Error("JWT_SECRET is empty")
			return apperror.New(apperror.KindInternal, "authentication is not configured")
		}

		tokenString, err := extractBearerToken(c)
		if err != nil {
			return apperror.New(apperror.KindUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		parser := jwt.Parser{SkipClaimsValidation: true, ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}); err != nil {
			log.WithError(err).WithField("path", c.Path()).Debug("token rejected")
			return apperror.New(apperror.KindUnauthorized, "token parse error")
		}

		if err := validateTokenExpiry(claims, time.Now(), 30*time.Second); err != nil {
			return apperror.New(apperror.KindUnauthorized, "token expired")
		}

		userID, err := extractUserID(claims)
		if err != nil {
			return apperror.New(apperror.KindUnauthorized, "invalid or missing user id")
		}
		storeBasicClaimsToLocals(c, userID, claims)
		return c.Next()
	}
}
