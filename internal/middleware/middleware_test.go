package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("draft 3: %w", models.ErrNotFound), fiber.StatusNotFound},
		{models.ErrConflict, fiber.StatusConflict},
		{models.ErrRunInProgress, fiber.StatusConflict},
		{models.ErrInvalidTransition, fiber.StatusUnprocessableEntity},
		{&ValidationError{Fields: map[string]string{"Limit": "min"}}, fiber.StatusUnprocessableEntity},
		{&models.PublicationError{Kind: models.PublicationAuth, Err: errors.New("x")}, fiber.StatusBadGateway},
		{&models.PublicationError{Kind: models.PublicationTransport, Err: errors.New("x")}, fiber.StatusServiceUnavailable},
		{&models.PublicationError{Kind: models.PublicationValidation, Err: errors.New("x")}, fiber.StatusUnprocessableEntity},
		{&models.GenerationError{ArticleID: 1, Err: errors.New("x")}, fiber.StatusBadGateway},
		{fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

type limitRequest struct {
	Limit int `json:"limit" validate:"min=1,max=50"`
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(RequestLogger())
	v := NewValidator()
	app.Post("/bind", func(c *fiber.Ctx) error {
		req := limitRequest{Limit: 5}
		if err := v.BindBody(c, &req); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "limit": req.Limit})
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return &models.PublicationError{Kind: models.PublicationAuth, StatusCode: 401, Err: errors.New("bad credentials")}
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("database exploded")
	})
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestBindBody(t *testing.T) {
	app := newApp()

	resp, err := app.Test(httptest.NewRequest("POST", "/bind", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 5, decode(t, resp.Body)["limit"])

	req := httptest.NewRequest("POST", "/bind", strings.NewReader(`{"limit":500}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]interface{}{"Limit": "max"}, body["fields"])

	req = httptest.NewRequest("POST", "/bind", strings.NewReader(`{"limit":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	app := newApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, "auth", body["kind"])
	assert.Equal(t, false, body["retryable"])

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "Internal server error", decode(t, resp.Body)["error"])

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
