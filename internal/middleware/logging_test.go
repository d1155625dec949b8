package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizdir/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxHandler_AddsContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&ctxHandler{slog.NewTextHandler(&buf, nil)})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, uint(42))
	logger.InfoContext(ctx, "approval recorded")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "user_id=42")
}

func TestContextMiddleware_PropagatesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware())

	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen, _ = c.UserContext().Value(RequestIDKey).(string)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "abc-123", seen)
}

func TestCtxHandler_AddsApproval(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "info").With(slog.String("component", "approvals"))

	ctx := WithApproval(context.Background(), "company", 12)
	logger.InfoContext(ctx, "approval decision recorded", slog.String("action", "approved"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "company", line["approval_kind"])
	assert.Equal(t, float64(12), line["approval_id"])
	assert.Equal(t, "approvals", line["component"])
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "development", "warn")
	logger.Info("pending counts refreshed")
	assert.Empty(t, buf.String())
	logger.Warn("pending counts stale")
	assert.Contains(t, buf.String(), "pending counts stale")
}

func TestStructuredLogger_RefusedDecision(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger(&buf, "production", "info")
	t.Cleanup(func() { Logger = prev })

	app := fiber.New()
	app.Use(StructuredLogger())
	app.Post("/api/admin/approvals/:kind/:id/approve", func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusConflict, models.NewConflictError("stale version"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/admin/approvals/company/3/approve", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/api/admin/approvals/:kind/:id/approve", line["route"])
	assert.Equal(t, models.CodeConflict, line["error_code"])
}
