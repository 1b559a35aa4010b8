package accounts_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, handler router.ErrorHandler, failure error) (int, accounts.ErrorResponse) {
	t.Helper()

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New())
	})
	srv.Router().Get("/", func(c router.Context) error { return handler(c, failure) })

	res, err := srv.WrappedRouter().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var body accounts.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return res.StatusCode, body
}

func TestErrorHandlerRendersRichErrors(t *testing.T) {
	handler := accounts.NewErrorHandler(quietLogger{}, nil)

	status, body := serveError(t, handler, accounts.ErrAccountLocked)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Account locked", body.Detail)
	assert.Equal(t, accounts.TextCodeAccountLocked, body.Code)

	status, body = serveError(t, handler, accounts.ErrUnauthorized)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, accounts.TextCodeUnauthorized, body.Code)

	status, body = serveError(t, handler, accounts.NewValidationError("", accounts.FieldErrors{
		{Field: "email", Message: "must be a valid email address"},
	}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request payload", body.Detail)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "email", body.Errors[0].Field)
}

func TestErrorHandlerHidesInternalFailures(t *testing.T) {
	var reported error
	handler := accounts.NewErrorHandler(quietLogger{}, func(_ router.Context, err error) {
		reported = err
	})

	secret := errors.New("pq: password authentication failed for user accounts")
	status, body := serveError(t, handler, secret)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Detail)
	assert.Equal(t, accounts.TextCodeInternal, body.Code)
	assert.NotContains(t, body.Detail, "pq:")
	assert.ErrorIs(t, reported, secret)
}

func TestErrorHandlerLogsRequestPairs(t *testing.T) {
	logger := &captureLogger{}
	handler := accounts.NewErrorHandler(logger, nil)

	status, _ := serveError(t, handler, errors.New("disk full"))
	require.Equal(t, http.StatusInternalServerError, status)

	line, ok := logger.find("request failed")
	require.True(t, ok)
	assert.Equal(t, "error", line.Level)

	pairs := line.pairs(t)
	assert.Equal(t, http.MethodGet, pairs["method"])
	assert.Equal(t, "/", pairs["path"])
	assert.EqualError(t, pairs["error"].(error), "disk full")
}

func TestErrorHandlerPassesFiberErrors(t *testing.T) {
	handler := accounts.NewErrorHandler(quietLogger{}, nil)

	status, body := serveError(t, handler, fiber.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, fiber.ErrMethodNotAllowed.Message, body.Detail)
}
