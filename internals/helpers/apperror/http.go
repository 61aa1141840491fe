package apperror

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// HTTPStatus maps a Kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidStateTransition, KindStaleState, KindConflict:
		return fiber.StatusConflict
	case KindInsufficientFunds, KindValidation:
		return fiber.StatusUnprocessableEntity
	case KindNotFound:
		return fiber.StatusNotFound
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// FromValidator converts validator.ValidationErrors into a VALIDATION_ERROR.
func FromValidator(err error) *Error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Validation(err.Error(), nil)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			fields[fe.Field()] = fe.Tag() + "=" + fe.Param()
			continue
		}
		fields[fe.Field()] = fe.Tag()
	}
	return Validation("payload failed validation", fields)
}

// ErrorHandler is installed as fiber.Config.ErrorHandler so handlers can
// simply return domain errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success":    false,
			"message":    fe.Message,
			"error_code": codeForStatus(fe.Code),
		})
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		err = FromValidator(err)
	}

	e, ok := As(err)
	if !ok {
		e = Wrap(KindInternal, "internal server error", err)
	}

	body := fiber.Map{
		"success":    false,
		"message":    e.Error(),
		"error_code": string(e.Kind),
	}
	if e.Kind == KindInternal {
		body["message"] = e.Message
	}
	if len(e.Fields) > 0 {
		body["errors"] = e.Fields
	}
	if e.Operation != "" || e.CurrentStatus != "" || len(e.Meta) > 0 {
		ctx := fiber.Map{}
		if e.Operation != "" {
			ctx["operation"] = e.Operation
		}
		if e.CurrentStatus != "" {
			ctx["current_status"] = e.CurrentStatus
		}
		for k, v := range e.Meta {
			ctx[k] = v
		}
		body["context"] = ctx
	}
	return c.Status(HTTPStatus(e.Kind)).JSON(body)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return string(KindUnauthorized)
	case fiber.StatusForbidden:
		return string(KindForbidden)
	case fiber.StatusNotFound:
		return string(KindNotFound)
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		if status >= 500 {
			return string(KindInternal)
		}
		return "ERROR"
	}
}
