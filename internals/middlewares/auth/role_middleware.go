package auth

import (
	"github.com/gofiber/fiber/v2"

	helper "beasiswaku_backend/internals/helpers"
	"beasiswaku_backend/internals/helpers/apperror"
)

// RoleMiddlewareWithCustomError meloloskan request yang role token-nya ada
// di allowedRoles.
func RoleMiddlewareWithCustomError(allowedRoles []string, customForbiddenMessage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := helper.GetRole(c)
		if role == "" {
			return apperror.New(apperror.KindUnauthorized, "missing role information")
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}
		if customForbiddenMessage == "" {
			customForbiddenMessage = "you are not authorized to access this resource"
		}
		return apperror.New(apperror.KindForbidden, customForbiddenMessage)
	}
}

func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return RoleMiddlewareWithCustomError(roles, customMessage)
}

// OnlyRolesSlice = OnlyRoles untuk slice role di constants.
func OnlyRolesSlice(message string, allowedRoles []string) fiber.Handler {
	return RoleMiddlewareWithCustomError(allowedRoles, message)
}
