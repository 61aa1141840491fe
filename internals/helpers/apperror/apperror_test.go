package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidTransition("reject", "rejected"))

	assert.True(t, errors.Is(err, ErrInvalidStateTransition))
	assert.False(t, errors.Is(err, ErrStaleState))
	assert.Equal(t, KindInvalidStateTransition, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidStateTransition: fiber.StatusConflict,
		KindStaleState:             fiber.StatusConflict,
		KindInsufficientFunds:      fiber.StatusUnprocessableEntity,
		KindValidation:             fiber.StatusUnprocessableEntity,
		KindNotFound:               fiber.StatusNotFound,
		KindUnauthorized:           fiber.StatusUnauthorized,
		KindInternal:               fiber.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestErrorHandlerCarriesContext(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/x", func(c *fiber.Ctx) error {
		return InvalidTransition("approve", "draft")
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "INVALID_STATE_TRANSITION", body["error_code"])
	ctx := body["context"].(map[string]any)
	assert.Equal(t, "approve", ctx["operation"])
	assert.Equal(t, "draft", ctx["current_status"])
}

func TestErrorHandlerHidesInternalCause(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/x", func(c *fiber.Ctx) error {
		return errors.New("pq: connection refused")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "connection refused")
}
