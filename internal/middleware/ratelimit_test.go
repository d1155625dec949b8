package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLimiter_Allow(t *testing.T) {
	rule := Rule{Name: "salesperson_apply", Max: 2, Window: time.Minute}

	t.Run("off in test environment", func(t *testing.T) {
		allowed, err := NewLimiter(nil, "test", false).Allow(context.Background(), rule, "user:1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("nil limiter allows", func(t *testing.T) {
		var l *Limiter
		allowed, err := l.Allow(context.Background(), rule, "user:1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("missing redis errors in production", func(t *testing.T) {
		allowed, err := NewLimiter(nil, "production", false).Allow(context.Background(), rule, "user:1")
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counts within window", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := NewLimiter(rdb, "development", true)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			allowed, err := l.Allow(ctx, rule, "user:9")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := l.Allow(ctx, rule, "user:9")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Greater(t, mr.TTL("rl:salesperson_apply:user:9"), time.Duration(0))

		allowed, err = l.Allow(ctx, rule, "user:10")
		require.NoError(t, err)
		assert.True(t, allowed, "budgets are per subject")

		mr.FastForward(2 * time.Minute)
		allowed, err = l.Allow(ctx, rule, "user:9")
		require.NoError(t, err)
		assert.True(t, allowed, "window expired")
	})
}

func TestLimiter_Handler(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("fail open without redis", func(t *testing.T) {
		app := fiber.New()
		app.Post("/apply", NewLimiter(nil, "production", false).Handler(ApplyRule), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/apply", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed without redis", func(t *testing.T) {
		rule := DecisionRule
		rule.Policy = FailClosed
		app := fiber.New()
		app.Post("/approve", NewLimiter(nil, "production", false).Handler(rule), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/approve", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("decisions counted per moderator", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		rule := Rule{Name: DecisionRule.Name, Max: 1, Window: time.Minute}
		app := fiber.New()
		app.Post("/approve", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(7))
			return c.Next()
		}, NewLimiter(rdb, "production", false).Handler(rule), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/approve", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
		assert.True(t, mr.Exists("rl:approval_decision:user:7"))

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/approve", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
		_ = resp.Body.Close()
	})
}
