package helper

import (
	"strings"

	"beasiswaku_backend/internals/helpers/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	LocalUserID   = "user_id"
	LocalUserRole = "userRole"
)

// GetUserIDFromToken membaca c.Locals("user_id") yang diisi auth middleware.
func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	switch t := c.Locals(LocalUserID).(type) {
	case uuid.UUID:
		if t != uuid.Nil {
			return t, nil
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return uuid.Nil, apperror.New(apperror.KindUnauthorized, "user id in token is not a uuid")
			}
			return id, nil
		}
	}
	return uuid.Nil, apperror.New(apperror.KindUnauthorized, "authentication required")
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalUserRole).(string)
	return strings.ToLower(strings.TrimSpace(role))
}

// ParseUUIDParam parse path param, gagal = validation error.
func ParseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Field(name, "must be a uuid")
	}
	return id, nil
}

// ParseUUIDQuery parse query param opsional. Kosong = nil.
func ParseUUIDQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Field(name, "must be a uuid")
	}
	return &id, nil
}
