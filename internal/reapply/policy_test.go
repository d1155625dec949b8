package reapply

import (
	"testing"
	"time"

	"bizdir/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rejectedUser(canReapplyAt *time.Time) *models.User {
	status := models.ApprovalStatusRejected
	return &models.User{ID: 1, SalespersonStatus: &status, CanReapplyAt: canReapplyAt}
}

func TestComputeCooldown(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, ComputeCooldown(now, 0))
	assert.Nil(t, ComputeCooldown(now, -3))

	got := ComputeCooldown(now, 7)
	require.NotNil(t, got)
	assert.True(t, got.Equal(now.Add(7*24*time.Hour)))
}

func TestCanReapply(t *testing.T) {
	t.Parallel()
	rejectedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("seven day cooldown", func(t *testing.T) {
		t.Parallel()
		u := rejectedUser(ComputeCooldown(rejectedAt, 7))
		assert.False(t, CanReapply(u, rejectedAt.Add(24*time.Hour)))
		assert.True(t, CanReapply(u, rejectedAt.Add(8*24*time.Hour)))
		assert.True(t, CanReapply(u, *u.CanReapplyAt), "boundary is inclusive")
	})

	t.Run("zero day cooldown allows immediate reapply", func(t *testing.T) {
		t.Parallel()
		u := rejectedUser(ComputeCooldown(rejectedAt, 0))
		assert.Nil(t, u.CanReapplyAt)
		assert.True(t, CanReapply(u, rejectedAt))
	})

	t.Run("not applicable unless rejected", func(t *testing.T) {
		t.Parallel()
		pending := models.ApprovalStatusPending
		approved := models.ApprovalStatusApproved
		assert.False(t, CanReapply(&models.User{}, rejectedAt))
		assert.False(t, CanReapply(&models.User{SalespersonStatus: &pending}, rejectedAt))
		assert.False(t, CanReapply(&models.User{SalespersonStatus: &approved}, rejectedAt))
		assert.False(t, CanReapply(nil, rejectedAt))
	})
}

func TestDaysRemaining(t *testing.T) {
	t.Parallel()
	rejectedAt := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	u := rejectedUser(ComputeCooldown(rejectedAt, 7))

	assert.Equal(t, 7, DaysRemaining(u, rejectedAt))
	assert.Equal(t, 6, DaysRemaining(u, rejectedAt.Add(25*time.Hour)))
	assert.Equal(t, 1, DaysRemaining(u, rejectedAt.Add(6*24*time.Hour+time.Hour)))
	assert.Equal(t, 0, DaysRemaining(u, rejectedAt.Add(8*24*time.Hour)))
	assert.Equal(t, time.Duration(0), Remaining(rejectedUser(nil), rejectedAt))
}
