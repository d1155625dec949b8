package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Rule is a named request budget, counted per user or per client IP.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

var (
	SignupRule = Rule{Name: "signup", Max: 3, Window: 10 * time.Minute}
	LoginRule  = Rule{Name: "login", Max: 10, Window: 5 * time.Minute}
	ApplyRule  = Rule{Name: "salesperson_apply", Max: 5, Window: time.Hour}
	// DecisionRule caps approve and reject calls per moderator.
	DecisionRule = Rule{Name: "approval_decision", Max: 120, Window: time.Minute}
)

var errNoRedis = errors.New("rate limit store not configured")

// Limiter enforces Rules against Redis counters. Budgets only apply outside
// development and test unless forced.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

func NewLimiter(rdb *redis.Client, env string, force bool) *Limiter {
	enabled := force
	switch env {
	case "", "development", "test":
	default:
		enabled = true
	}
	return &Limiter{rdb: rdb, enabled: enabled}
}

func rateKey(rule Rule, subject string) string {
	return fmt.Sprintf("rl:%s:%s", rule.Name, subject)
}

// Allow counts one request for subject and reports whether it fits the budget.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) (bool, error) {
	if l == nil || !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errNoRedis
	}

	key := rateKey(rule, subject)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, rule.Window)
	}
	return cnt <= int64(rule.Max), nil
}

// Handler applies rule to a route. Authenticated callers are counted by user
// id so moderators behind one proxy do not share a budget.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			subject = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		allowed, err := l.Allow(c.UserContext(), rule, subject)
		if err != nil {
			if rule.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "rate limit unavailable",
			})
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rule.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
