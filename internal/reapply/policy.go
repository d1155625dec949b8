// Package reapply holds the cooldown rules for rejected salesperson applicants.
package reapply

import (
	"time"

	"bizdir/internal/models"
)

// DefaultCooldownDays applies when a rejection does not specify a cooldown.
const DefaultCooldownDays = 7

// CanReapply reports whether u may submit a new salesperson application at now.
// It is false for anyone whose application is not currently rejected.
func CanReapply(u *models.User, now time.Time) bool {
	if u == nil || u.Status() != models.ApprovalStatusRejected {
		return false
	}
	if u.CanReapplyAt == nil {
		return true
	}
	return !u.CanReapplyAt.After(now)
}

// ComputeCooldown returns when a rejected applicant may reapply, or nil for no cooldown.
func ComputeCooldown(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	at := now.AddDate(0, 0, days)
	return &at
}

// Remaining is the time left before u may reapply; zero once eligible or when
// no cooldown applies.
func Remaining(u *models.User, now time.Time) time.Duration {
	if u == nil || u.CanReapplyAt == nil || u.Status() != models.ApprovalStatusRejected {
		return 0
	}
	if d := u.CanReapplyAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// DaysRemaining rounds Remaining up to whole days.
func DaysRemaining(u *models.User, now time.Time) int {
	d := Remaining(u, now)
	if d <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((d + day - 1) / day)
}
